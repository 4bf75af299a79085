package triage

import "strings"

// MiscCategory is where files land when no keyword or type rule matches.
const MiscCategory = "Misc"

// ProjectPrefix is prepended to a project keyword to form its category.
const ProjectPrefix = "Project_"

// TypeRule maps a sniffed type fragment to a category path.
// "image" matches "image/png" because matching is by containment.
type TypeRule struct {
	Prefix   string
	Category string
}

// Matches reports whether the rule applies to the sniffed type.
func (r TypeRule) Matches(sniffed string) bool {
	return r.Prefix != "" && strings.Contains(sniffed, r.Prefix)
}

// ProjectCategory returns the category for a project keyword, keeping its casing.
func ProjectCategory(keyword string) string {
	return ProjectPrefix + keyword
}

// Rules is the classification policy. It is built once from configuration
// and shared read-only by the engine and the watcher.
type Rules struct {
	TypeRules     []TypeRule
	Keywords      []string
	MetadataNames []string
	TempSuffixes  []string
}

// IsExcluded reports whether a file name must never be classified:
// hidden files and OS generated metadata files.
func (r *Rules) IsExcluded(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return true
	}
	for _, meta := range r.MetadataNames {
		if name == meta {
			return true
		}
	}
	return false
}

// IsTemporary reports whether a file name carries an in-progress download or temp suffix.
func (r *Rules) IsTemporary(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range r.TempSuffixes {
		if suffix != "" && strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}
