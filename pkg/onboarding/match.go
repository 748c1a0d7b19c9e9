package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/MisreadableMind/word-to-site-ai/pkg/ai"
	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/templates"
)

// defaultTemplateSlug is chosen when neither the model nor the keyword
// fallback finds a better fit. It is also the catalog's fallback entry.
const defaultTemplateSlug = "flexify"

const matchSystemPrompt = `You match businesses to website templates. Respond with a single JSON object:
{"candidates":[{"slug":"...","confidence":0.0,"reason":"..."}]}
Rank up to three candidates by fit, confidence between 0 and 1. Use only slugs from the provided list. JSON only, no markdown.`

// Matcher picks a catalog template for a brief: model scoring first,
// industry keywords second, the default template last.
type Matcher struct {
	catalog   *templates.Catalog
	completer ai.Completer
	model     string
}

// NewMatcher builds a matcher. completer may be nil; matching then
// skips straight to the keyword fallback.
func NewMatcher(catalog *templates.Catalog, completer ai.Completer, model string) *Matcher {
	return &Matcher{catalog: catalog, completer: completer, model: model}
}

// Match never fails: every fallback chain ends at a usable template.
func (m *Matcher) Match(ctx context.Context, brief Brief) models.TemplateMatch {
	available := m.catalog.Templates(ctx)

	if m.completer != nil {
		if match, ok := m.matchWithModel(ctx, brief, available); ok {
			return match
		}
	}

	if t := templates.MatchByIndustry(available, brief.Industry); t != nil {
		return models.TemplateMatch{
			Slug:       t.Slug,
			Skin:       t.Skin,
			Variation:  firstVariation(t),
			Confidence: 0.5,
			Reason:     "industry keyword match",
		}
	}

	fallback := pickDefault(available)
	return models.TemplateMatch{
		Slug:       fallback.Slug,
		Skin:       fallback.Skin,
		Variation:  firstVariation(&fallback),
		Confidence: 0.25,
		Reason:     "default template",
	}
}

type matchCandidate struct {
	Slug       string  `json:"slug"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

func (m *Matcher) matchWithModel(ctx context.Context, brief Brief, available []templates.Template) (models.TemplateMatch, bool) {
	resp, err := m.completer.Complete(ctx, ai.Request{
		Model: m.model,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: matchSystemPrompt},
			{Role: ai.RoleUser, Content: matchPrompt(brief, available)},
		},
		MaxTokens: ai.Int(512),
	})
	if err != nil {
		slog.Warn("Template match model call failed, falling back to keywords", "error", err)
		return models.TemplateMatch{}, false
	}

	var parsed struct {
		Candidates []matchCandidate `json:"candidates"`
	}
	if err := json.Unmarshal([]byte(ai.ExtractJSON(resp.Content)), &parsed); err != nil {
		slog.Warn("Template match reply unparseable, falling back to keywords", "error", err)
		return models.TemplateMatch{}, false
	}

	bySlug := make(map[string]templates.Template, len(available))
	for _, t := range available {
		bySlug[t.Slug] = t
	}

	// Keep only candidates naming real templates, best first. The sort
	// is stable so the model's own ordering breaks remaining ties after
	// the industry preference.
	candidates := parsed.Candidates[:0]
	for _, c := range parsed.Candidates {
		if _, ok := bySlug[c.Slug]; ok {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		slog.Warn("Template match reply named no known slugs, falling back to keywords")
		return models.TemplateMatch{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	top := candidates[0].Confidence
	var tied []templates.Template
	reasons := make(map[string]string)
	for _, c := range candidates {
		if c.Confidence != top {
			break
		}
		tied = append(tied, bySlug[c.Slug])
		reasons[c.Slug] = c.Reason
	}

	chosen := templates.PreferIndustry(tied, brief.Industry)
	return models.TemplateMatch{
		Slug:       chosen.Slug,
		Skin:       chosen.Skin,
		Variation:  firstVariation(chosen),
		Confidence: top,
		Reason:     reasons[chosen.Slug],
	}, true
}

func matchPrompt(brief Brief, available []templates.Template) string {
	var b strings.Builder
	b.WriteString("Templates:\n")
	for _, t := range available {
		fmt.Fprintf(&b, "- slug: %s; industries: %s; description: %s\n",
			t.Slug, strings.Join(t.Industries, ", "), t.Description)
	}
	b.WriteString("\nBusiness brief:\n")
	b.WriteString(brief.describe())
	return b.String()
}

func pickDefault(available []templates.Template) templates.Template {
	for _, t := range available {
		if t.Slug == defaultTemplateSlug {
			return t
		}
	}
	return available[0]
}

func firstVariation(t *templates.Template) string {
	if len(t.Variations) > 0 {
		return t.Variations[0]
	}
	return ""
}
