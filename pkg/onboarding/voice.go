package onboarding

import (
	"context"
	"log/slog"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/progress"
)

// RunVoice onboards from an interview transcript: the answer map is
// normalized into a Brief, then the shared match-and-build tail runs.
func (s *Service) RunVoice(ctx context.Context, answers map[string]string, sink progress.Sink) *models.WorkflowRun {
	r := newObRun(models.KindOnboardingVoice, "voice", sink)
	slog.Info("Onboarding run started",
		"run_id", r.ID,
		"variant", "voice",
		"answers", len(answers))

	r.emit(progress.StageProcessingAnswers, "Processing interview answers", map[string]any{
		"answers": len(answers),
	})
	brief := buildBrief(answers)
	r.record(progress.StepBriefBuilt, true, map[string]any{
		"business": brief.BusinessName,
		"services": len(brief.Services),
	}, nil)

	attach := func(content *models.ContentContext) {
		content.VoiceInterview = &models.VoiceInterview{Answers: answers}
	}
	return s.matchAndBuild(ctx, r, brief, nil, nil, attach)
}
