package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MisreadableMind/word-to-site-ai/pkg/ai"
	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/progress"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers"
)

// SiteAPI is the slice of the site REST surface the applicator needs.
// *Client implements it.
type SiteAPI interface {
	UpdateSettings(ctx context.Context, updates map[string]any) error
	CreatePage(ctx context.Context, params PageParams) (*Page, error)
	UploadMediaFromURL(ctx context.Context, sourceURL, filename string) (*Media, error)
	InstallPlugin(ctx context.Context, slug string) error
	ActivatePlugin(ctx context.Context, slug string) error
	SetCustomCSS(ctx context.Context, css string) error
}

// GeneratedPage is one page's HTML ready to push, with a flag telling
// whether the fixed fallback produced it.
type GeneratedPage struct {
	Spec     models.PageSpec
	HTML     string
	Fallback bool
}

// Applicator turns deployment and content contexts into REST calls
// against a provisioned site. A nil completer disables AI generation
// and every page gets its fixed per-slug fallback.
type Applicator struct {
	completer ai.Completer
	model     string
}

func NewApplicator(completer ai.Completer, model string) *Applicator {
	return &Applicator{completer: completer, model: model}
}

// Apply runs the full pipeline: settings and customizer and plugins,
// then content generation, then page creation with the front-page
// pointer. Subtask failures accumulate as outcomes; only a completely
// empty run is an error.
func (a *Applicator) Apply(ctx context.Context, site SiteAPI, deployment *models.DeploymentContext, content *models.ContentContext, sink progress.Sink) (*models.ApplyResult, error) {
	if sink == nil {
		sink = progress.NopSink{}
	}
	result := &models.ApplyResult{Success: true, PageIDs: map[string]int{}}

	if deployment != nil {
		sink.Emit(progress.NewEvent(progress.StageApplyingDeployment, "Applying deployment settings", nil))
		result.Outcomes = append(result.Outcomes, a.ApplyDeployment(ctx, site, deployment, content)...)
	}

	if content != nil {
		sink.Emit(progress.NewEvent(progress.StageGeneratingContent, "Generating page content", map[string]any{
			"pages": len(content.Pages),
		}))
		pages := a.GeneratePages(ctx, content)

		sink.Emit(progress.NewEvent(progress.StagePushingContent, "Publishing pages", nil))
		pageIDs, frontPageID, outcomes := a.PushPages(ctx, site, pages)
		result.PageIDs = pageIDs
		result.FrontPageID = frontPageID
		result.Outcomes = append(result.Outcomes, outcomes...)
	}

	for _, outcome := range result.Outcomes {
		if !outcome.Success {
			result.Success = false
			break
		}
	}
	return result, nil
}

// ApplyDeployment pushes settings, customizer assets and plugins. Every
// subtask records an outcome; none aborts the batch.
func (a *Applicator) ApplyDeployment(ctx context.Context, site SiteAPI, deployment *models.DeploymentContext, content *models.ContentContext) []models.StepOutcome {
	var outcomes []models.StepOutcome

	if updates := settingsUpdates(content); len(updates) > 0 {
		outcomes = append(outcomes, outcomeOf("settings", site.UpdateSettings(ctx, updates)))
	}

	outcomes = append(outcomes, a.applyCustomizer(ctx, site, deployment.Branding)...)

	for _, plugin := range deployment.Plugins {
		outcomes = append(outcomes, a.applyPlugin(ctx, site, plugin))
	}
	return outcomes
}

// settingsUpdates builds the {title, tagline} patch from the business
// block.
func settingsUpdates(content *models.ContentContext) map[string]any {
	updates := map[string]any{}
	if content != nil {
		if content.Business.Name != "" {
			updates["title"] = content.Business.Name
		}
		if content.Business.Tagline != "" {
			updates["description"] = content.Business.Tagline
		}
	}
	return updates
}

func (a *Applicator) applyCustomizer(ctx context.Context, site SiteAPI, branding models.Branding) []models.StepOutcome {
	var outcomes []models.StepOutcome

	if branding.LogoURL != "" {
		outcome := models.StepOutcome{Task: "customizer:logo"}
		media, err := site.UploadMediaFromURL(ctx, branding.LogoURL, "logo")
		if err == nil {
			err = site.UpdateSettings(ctx, map[string]any{"site_logo": media.ID})
		}
		if err != nil {
			slog.Warn("Logo upload failed", "url", branding.LogoURL, "error", err)
			outcome.Error = err.Error()
		} else {
			outcome.Success = true
			outcome.Detail = fmt.Sprintf("media %d", media.ID)
		}
		outcomes = append(outcomes, outcome)
	}

	if branding.FaviconURL != "" {
		outcome := models.StepOutcome{Task: "customizer:favicon"}
		media, err := site.UploadMediaFromURL(ctx, branding.FaviconURL, "favicon")
		if err == nil {
			err = site.UpdateSettings(ctx, map[string]any{"site_icon": media.ID})
		}
		if err != nil {
			slog.Warn("Favicon upload failed", "url", branding.FaviconURL, "error", err)
			outcome.Error = err.Error()
		} else {
			outcome.Success = true
			outcome.Detail = fmt.Sprintf("media %d", media.ID)
		}
		outcomes = append(outcomes, outcome)
	}

	if branding.PrimaryColor != "" {
		css := fmt.Sprintf(":root { --primary-color: %s; }", branding.PrimaryColor)
		if branding.SecondaryColor != "" {
			css = fmt.Sprintf(":root { --primary-color: %s; --secondary-color: %s; }",
				branding.PrimaryColor, branding.SecondaryColor)
		}
		outcomes = append(outcomes, outcomeOf("customizer:css", site.SetCustomCSS(ctx, css)))
	}
	return outcomes
}

// applyPlugin installs the plugin, falling back to activation when the
// host already has it.
func (a *Applicator) applyPlugin(ctx context.Context, site SiteAPI, plugin models.PluginSpec) models.StepOutcome {
	task := "plugin:" + plugin.Slug
	err := site.InstallPlugin(ctx, plugin.Slug)
	if err != nil && providers.KindOf(err) == providers.KindConflict {
		slog.Info("Plugin already installed, activating", "plugin", plugin.Slug)
		err = site.ActivatePlugin(ctx, plugin.Slug)
	}
	return outcomeOf(task, err)
}

// GeneratePages produces HTML for every page in the content context,
// falling back to the fixed per-slug template whenever generation
// fails. Pages default when the context lists none.
func (a *Applicator) GeneratePages(ctx context.Context, content *models.ContentContext) []GeneratedPage {
	specs := content.Pages
	if len(specs) == 0 {
		specs = models.DefaultPages()
	}

	pages := make([]GeneratedPage, 0, len(specs))
	for _, spec := range specs {
		page := GeneratedPage{Spec: spec}
		if a.completer != nil {
			sections, err := generatePageSections(ctx, a.completer, a.model, spec, content)
			if err == nil {
				page.HTML = serializeSections(sections)
				pages = append(pages, page)
				continue
			}
			slog.Warn("Page generation failed, using fallback content",
				"page", spec.Slug,
				"error", err)
		}
		page.HTML = serializeSections(fallbackSections(spec.Slug, content.Business))
		page.Fallback = true
		pages = append(pages, page)
	}
	return pages
}

// PushPages publishes the generated pages and points the front page at
// the home slug. Returns slug→id for created pages.
func (a *Applicator) PushPages(ctx context.Context, site SiteAPI, pages []GeneratedPage) (map[string]int, int, []models.StepOutcome) {
	pageIDs := make(map[string]int, len(pages))
	var outcomes []models.StepOutcome
	frontPageID := 0

	for _, page := range pages {
		task := "page:" + page.Spec.Slug
		created, err := site.CreatePage(ctx, PageParams{
			Title:   page.Spec.Title,
			Content: page.HTML,
			Slug:    page.Spec.Slug,
			Status:  "publish",
		})
		if err != nil {
			slog.Warn("Page creation failed", "page", page.Spec.Slug, "error", err)
			outcomes = append(outcomes, models.StepOutcome{Task: task, Error: err.Error()})
			continue
		}
		pageIDs[page.Spec.Slug] = created.ID
		detail := fmt.Sprintf("id %d", created.ID)
		if page.Fallback {
			detail += " (fallback content)"
		}
		outcomes = append(outcomes, models.StepOutcome{Task: task, Success: true, Detail: detail})

		if page.Spec.Slug == "home" {
			frontPageID = created.ID
		}
	}

	if frontPageID != 0 {
		err := site.UpdateSettings(ctx, map[string]any{
			"show_on_front": "page",
			"page_on_front": frontPageID,
		})
		outcomes = append(outcomes, outcomeOf("front-page", err))
	}
	return pageIDs, frontPageID, outcomes
}

func outcomeOf(task string, err error) models.StepOutcome {
	if err != nil {
		return models.StepOutcome{Task: task, Error: err.Error()}
	}
	return models.StepOutcome{Task: task, Success: true}
}
