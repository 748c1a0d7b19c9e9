package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MisreadableMind/word-to-site-ai/pkg/ai"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/firecrawl"
)

// Analysis is what the analyzer concluded about the source site.
type Analysis struct {
	Industry string `json:"industry,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Tone     string `json:"tone,omitempty"`

	// Source names the path that produced the analysis: vision, text
	// or heuristic.
	Source string `json:"source"`
}

const analysisPrompt = `Analyze this business website. Respond with a single JSON object:
{"industry":"one or two words","summary":"two sentences describing the business","tone":"professional|friendly|casual|formal"}
JSON only, no markdown.`

// allowedTones mirrors the content context's tone validation set.
var allowedTones = map[string]bool{
	"professional": true,
	"friendly":     true,
	"casual":       true,
	"formal":       true,
}

// analyzer runs the site-analysis step of the COPY variant. Vision is
// preferred when a screenshot came back; the text model reads the
// markdown rendition otherwise; with no AI configured the metadata
// heuristic stands in.
type analyzer struct {
	vision      ai.VisionCompleter
	visionModel string
	completer   ai.Completer
	textModel   string
}

func (a *analyzer) analyze(ctx context.Context, scraped *firecrawl.ScrapeResult) (*Analysis, error) {
	if a.vision != nil && scraped.Screenshot != "" {
		analysis, err := a.analyzeVision(ctx, scraped.Screenshot)
		if err == nil {
			return analysis, nil
		}
		if a.completer == nil {
			return heuristicAnalysis(scraped), err
		}
	}
	if a.completer != nil {
		analysis, err := a.analyzeText(ctx, scraped)
		if err == nil {
			return analysis, nil
		}
		return heuristicAnalysis(scraped), err
	}
	return heuristicAnalysis(scraped), nil
}

func (a *analyzer) analyzeVision(ctx context.Context, screenshotURL string) (*Analysis, error) {
	resp, err := a.vision.CompleteVision(ctx, ai.VisionRequest{
		Model:     a.visionModel,
		Prompt:    analysisPrompt,
		ImageURL:  screenshotURL,
		MaxTokens: ai.Int(512),
	})
	if err != nil {
		return nil, err
	}
	return parseAnalysis(resp.Content, "vision")
}

func (a *analyzer) analyzeText(ctx context.Context, scraped *firecrawl.ScrapeResult) (*Analysis, error) {
	excerpt := scraped.Markdown
	if len(excerpt) > 4000 {
		excerpt = excerpt[:4000]
	}
	resp, err := a.completer.Complete(ctx, ai.Request{
		Model: a.textModel,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: analysisPrompt},
			{Role: ai.RoleUser, Content: excerpt},
		},
		MaxTokens: ai.Int(512),
	})
	if err != nil {
		return nil, err
	}
	return parseAnalysis(resp.Content, "text")
}

func parseAnalysis(reply, source string) (*Analysis, error) {
	var analysis Analysis
	if err := json.Unmarshal([]byte(ai.ExtractJSON(reply)), &analysis); err != nil {
		return nil, fmt.Errorf("parse analysis: %w", err)
	}
	analysis.Source = source
	analysis.Tone = strings.ToLower(strings.TrimSpace(analysis.Tone))
	if !allowedTones[analysis.Tone] {
		analysis.Tone = ""
	}
	return &analysis, nil
}

// heuristicAnalysis builds an analysis from scrape metadata alone.
func heuristicAnalysis(scraped *firecrawl.ScrapeResult) *Analysis {
	return &Analysis{
		Summary: strings.TrimSpace(scraped.Metadata.Description),
		Source:  "heuristic",
	}
}

// businessNameFromTitle takes the leading segment of a page title,
// cutting at the usual separator characters. "Luna Bakery | Fresh
// Bread" yields "Luna Bakery".
func businessNameFromTitle(title string) string {
	name := strings.TrimSpace(title)
	for _, sep := range []string{"|", " – ", " — ", " - ", "::"} {
		if i := strings.Index(name, sep); i > 0 {
			name = name[:i]
		}
	}
	return strings.TrimSpace(name)
}
