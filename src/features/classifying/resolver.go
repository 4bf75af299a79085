package classifying

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/contre95/dropsort/src/triage"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxImageBytes caps how much of an image is handed to the text extractor.
const maxImageBytes = 64 << 20

// Reason tells which step of the decision order picked a category.
type Reason string

const (
	ReasonFilename Reason = "filename"
	ReasonContent  Reason = "content"
	ReasonType     Reason = "type"
	ReasonFallback Reason = "fallback"
)

// Resolution is the category chosen for a file and why.
type Resolution struct {
	Category string `json:"category"`
	Reason   Reason `json:"reason"`
	Keyword  string `json:"keyword,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Resolver maps a file to its destination category. Project keywords found in the
// name win over keywords found in image text, which win over type rules.
type Resolver struct {
	rules     *triage.Rules
	sniffer   triage.TypeSniffer
	extractor triage.TextExtractor
	keywords  []string
}

// NewResolver creates a resolver. extractor may be nil, which disables content matching.
func NewResolver(rules *triage.Rules, sniffer triage.TypeSniffer, extractor triage.TextExtractor) *Resolver {
	lowered := make([]string, len(rules.Keywords))
	for i, keyword := range rules.Keywords {
		lowered[i] = lower(keyword)
	}
	return &Resolver{
		rules:     rules,
		sniffer:   sniffer,
		extractor: extractor,
		keywords:  lowered,
	}
}

// Resolve returns the category for file. It never fails: sniffing and extraction
// errors only remove candidates from the decision order.
func (r *Resolver) Resolve(ctx context.Context, file *triage.CandidateFile) Resolution {
	if keyword, ok := r.matchKeyword(file.Name); ok {
		return Resolution{Category: triage.ProjectCategory(keyword), Reason: ReasonFilename, Keyword: keyword}
	}

	sniffed, sniffErr := r.sniff(ctx, file.Path)

	if sniffErr == nil && strings.Contains(sniffed, "image") {
		if text := r.extractText(ctx, file); text != "" {
			if keyword, ok := r.matchKeyword(text); ok {
				slog.Debug("Project keyword found in image text", "file", file.Name, "keyword", keyword)
				return Resolution{Category: triage.ProjectCategory(keyword), Reason: ReasonContent, Keyword: keyword, Type: sniffed}
			}
		}
	}

	if sniffErr == nil {
		for _, rule := range r.rules.TypeRules {
			if rule.Matches(sniffed) {
				return Resolution{Category: rule.Category, Reason: ReasonType, Type: sniffed}
			}
		}
	}

	return Resolution{Category: triage.MiscCategory, Reason: ReasonFallback, Type: sniffed}
}

// matchKeyword returns the first configured keyword, in configuration order, found in s.
func (r *Resolver) matchKeyword(s string) (string, bool) {
	haystack := lower(s)
	for i, keyword := range r.keywords {
		if keyword != "" && strings.Contains(haystack, keyword) {
			return r.rules.Keywords[i], true
		}
	}
	return "", false
}

func (r *Resolver) sniff(ctx context.Context, path string) (sniffed string, err error) {
	if r.sniffer == nil {
		return "", fmt.Errorf("no type sniffer configured")
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("type sniffer panicked: %v", p)
		}
		if err != nil {
			slog.Debug("Type sniffing failed", "path", path, "error", err)
		}
	}()
	return r.sniffer.Sniff(ctx, path)
}

func (r *Resolver) extractText(ctx context.Context, file *triage.CandidateFile) (text string) {
	if r.extractor == nil {
		return ""
	}
	data, err := readLimited(file.Path, maxImageBytes)
	if err != nil {
		slog.Debug("Skipping text extraction", "file", file.Name, "error", err)
		return ""
	}
	defer func() {
		if p := recover(); p != nil {
			slog.Warn("Text extractor panicked", "file", file.Name, "panic", p)
			text = ""
		}
	}()
	return r.extractor.Extract(ctx, data)
}

func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("image larger than %d bytes", limit)
	}
	return data, nil
}

// lower lowercases s. A Caser holds state, so one is built per call.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}
