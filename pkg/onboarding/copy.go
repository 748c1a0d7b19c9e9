package onboarding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/progress"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/firecrawl"
)

// RunCopy onboards from an existing site: scrape, brand extraction,
// model analysis, template match, context build. Only the scrape and
// the final validation are fatal.
func (s *Service) RunCopy(ctx context.Context, sourceURL string, sink progress.Sink) *models.WorkflowRun {
	r := newObRun(models.KindOnboardingCopy, "copy", sink)
	slog.Info("Onboarding run started",
		"run_id", r.ID,
		"variant", "copy",
		"url", sourceURL)

	r.emit(progress.StageScrapingSite, "Scraping source site", map[string]any{"url": sourceURL})
	scraped, err := s.scraper.Scrape(ctx, sourceURL, firecrawl.ScrapeOptions{
		Screenshot: s.analyzer.vision != nil,
	})
	if err != nil {
		if ctx.Err() != nil {
			return r.cancelled(ctx)
		}
		return r.fail(fmt.Sprintf("Scrape failed: %v", err))
	}
	r.record(progress.StepScrapeCompleted, true, map[string]any{
		"url":   sourceURL,
		"links": len(scraped.Links),
	}, nil)

	if ctx.Err() != nil {
		return r.cancelled(ctx)
	}
	r.emit(progress.StageExtractingBrand, "Extracting brand elements", nil)
	brand := extractBrand(sourceURL, scraped.HTML, scraped.Metadata)
	r.record(progress.StepBrandExtracted, true, map[string]any{
		"palette": brand.Palette,
		"logo":    brand.LogoURL != "",
	}, nil)

	if ctx.Err() != nil {
		return r.cancelled(ctx)
	}
	r.emit(progress.StageAnalyzingSite, "Analyzing site", nil)
	analysis, analyzeErr := s.analyzer.analyze(ctx, scraped)
	if analyzeErr != nil {
		// Analysis enriches the brief but never gates the run; the
		// heuristic result stands in.
		slog.Warn("Site analysis failed, continuing with heuristics",
			"run_id", r.ID,
			"error", analyzeErr)
		r.record(progress.StepSiteAnalyzed, false, map[string]any{
			"source": analysis.Source,
		}, analyzeErr)
	} else {
		r.record(progress.StepSiteAnalyzed, true, map[string]any{
			"source": analysis.Source,
		}, nil)
	}

	brief := briefFromScrape(scraped, analysis)

	attach := func(content *models.ContentContext) {
		content.SourceAnalysis = &models.SourceAnalysis{
			URL:         sourceURL,
			Title:       scraped.Metadata.Title,
			Description: scraped.Metadata.Description,
			Industry:    analysis.Industry,
			Summary:     analysis.Summary,
			Palette:     brand.Palette,
		}
	}
	return s.matchAndBuild(ctx, r, brief, &brand, analysis, attach)
}

// briefFromScrape lifts the scrape into the brief shape the shared
// tail consumes. The business name comes from the metadata title
// prefix; OG values stand in when the plain tags are missing.
func briefFromScrape(scraped *firecrawl.ScrapeResult, analysis *Analysis) Brief {
	title := scraped.Metadata.Title
	if title == "" {
		title = scraped.Metadata.OGTitle
	}
	return Brief{
		BusinessName: businessNameFromTitle(title),
		Industry:     analysis.Industry,
	}
}
