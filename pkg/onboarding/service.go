package onboarding

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MisreadableMind/word-to-site-ai/pkg/ai"
	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/progress"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/firecrawl"
	"github.com/MisreadableMind/word-to-site-ai/pkg/templates"
)

// Options tune the onboarding service. Zero values are usable: model
// names fall back to the clients' defaults and Defaults to built-ins.
type Options struct {
	TextModel   string
	VisionModel string
	Defaults    Defaults
}

// Service runs both onboarding variants. One instance serves many
// concurrent runs.
type Service struct {
	scraper  firecrawl.Scraper
	matcher  *Matcher
	analyzer *analyzer
	defaults Defaults
}

// NewService wires the onboarding flows. completer and vision may be
// nil; every AI-assisted step then falls back to its heuristic.
func NewService(scraper firecrawl.Scraper, catalog *templates.Catalog, completer ai.Completer, vision ai.VisionCompleter, opts Options) *Service {
	return &Service{
		scraper: scraper,
		matcher: NewMatcher(catalog, completer, opts.TextModel),
		analyzer: &analyzer{
			vision:      vision,
			visionModel: opts.VisionModel,
			completer:   completer,
			textModel:   opts.TextModel,
		},
		defaults: opts.Defaults,
	}
}

// obRun is the per-run state shared by both variants.
type obRun struct {
	*models.WorkflowRun
	sink    progress.Sink
	variant string
}

func newObRun(kind models.WorkflowKind, variant string, sink progress.Sink) *obRun {
	if sink == nil {
		sink = progress.NopSink{}
	}
	return &obRun{
		WorkflowRun: &models.WorkflowRun{
			ID:        uuid.NewString(),
			Kind:      kind,
			StartedAt: time.Now().UTC(),
		},
		sink:    sink,
		variant: variant,
	}
}

func (r *obRun) emit(stage, message string, payload map[string]any) {
	r.sink.Emit(progress.NewEvent(stage, message, payload))
}

func (r *obRun) record(step string, success bool, data map[string]any, stepErr error) {
	rec := models.StepRecord{Step: step, Success: success, Data: data}
	if stepErr != nil {
		rec.Error = stepErr.Error()
	}
	r.Steps = append(r.Steps, rec)
}

func (r *obRun) fail(message string) *models.WorkflowRun {
	r.Error = message
	r.Success = false
	r.EndedAt = time.Now().UTC()
	r.emit(progress.StageError, message, nil)
	slog.Error("Onboarding run failed",
		"run_id", r.ID,
		"variant", r.variant,
		"error", message)
	return r.WorkflowRun
}

func (r *obRun) cancelled(ctx context.Context) *models.WorkflowRun {
	r.record(progress.StepCancelled, false, nil, ctx.Err())
	r.Error = "cancelled: " + ctx.Err().Error()
	r.Success = false
	r.EndedAt = time.Now().UTC()
	r.emit(progress.StageCancelled, r.Error, nil)
	slog.Warn("Onboarding run cancelled", "run_id", r.ID, "variant", r.variant)
	return r.WorkflowRun
}

// finish closes a successful run with the assembled contexts.
func (r *obRun) finish(match models.TemplateMatch, deployment *models.DeploymentContext, content *models.ContentContext) *models.WorkflowRun {
	r.Result = &models.OnboardingResult{
		Variant:       r.variant,
		TemplateMatch: match,
		Deployment:    deployment,
		Content:       content,
		Steps:         r.Steps,
	}
	r.Success = true
	r.EndedAt = time.Now().UTC()
	r.emit(progress.StageComplete, "Onboarding complete", map[string]any{
		"template": match.Slug,
	})
	slog.Info("Onboarding run complete",
		"run_id", r.ID,
		"variant", r.variant,
		"template", match.Slug)
	return r.WorkflowRun
}

// matchAndBuild is the tail both variants share: template match,
// context construction, aggregate validation.
func (s *Service) matchAndBuild(ctx context.Context, r *obRun, brief Brief, brand *Brand, analysis *Analysis, attach func(*models.ContentContext)) *models.WorkflowRun {
	if ctx.Err() != nil {
		return r.cancelled(ctx)
	}
	r.emit(progress.StageMatchingTemplate, "Matching template", map[string]any{
		"industry": brief.Industry,
	})
	match := s.matcher.Match(ctx, brief)
	r.record(progress.StepTemplateMatched, true, map[string]any{
		"slug":       match.Slug,
		"confidence": match.Confidence,
	}, nil)

	r.emit(progress.StageBuildingContexts, "Building contexts", nil)
	deployment, content := buildContexts(match, brief, brand, analysis, s.defaults)
	if attach != nil {
		attach(content)
	}
	r.record(progress.StepContextsBuilt, true, map[string]any{
		"pages": len(content.Pages),
	}, nil)

	r.emit(progress.StageValidatingContexts, "Validating contexts", nil)
	if err := validateContexts(deployment, content); err != nil {
		return r.fail(err.Error())
	}
	r.record(progress.StepContextsValidated, true, nil, nil)

	return r.finish(match, deployment, content)
}
