package onboarding

import (
	"errors"
	"strings"

	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
)

// builtinFaviconURL stands in when the operator configured no default.
const builtinFaviconURL = "https://wordtosite.ai/assets/default-favicon.png"

const (
	maxMetaTitle       = 60
	maxMetaDescription = 160
)

// Defaults are operator-configured fallback values for fields the
// source material may not provide.
type Defaults struct {
	FaviconURL string
}

func (d Defaults) faviconURL() string {
	if d.FaviconURL != "" {
		return d.FaviconURL
	}
	return builtinFaviconURL
}

// buildContexts assembles both contexts from whatever the variant
// collected. brand and analysis are nil for VOICE runs.
func buildContexts(match models.TemplateMatch, brief Brief, brand *Brand, analysis *Analysis, defaults Defaults) (*models.DeploymentContext, *models.ContentContext) {
	deployment := &models.DeploymentContext{
		Template: models.TemplateSelection{
			Slug:      match.Slug,
			Skin:      match.Skin,
			Variation: match.Variation,
		},
	}

	var colorSource []string
	if brand != nil {
		colorSource = brand.Palette
		deployment.Branding.LogoURL = brand.LogoURL
		deployment.Branding.FaviconURL = brand.FaviconURL
	}
	if len(colorSource) == 0 {
		colorSource = brief.Colors
	}
	primary, secondary := pickBrandColors(colorSource)
	deployment.Branding.PrimaryColor = primary
	deployment.Branding.SecondaryColor = secondary

	// The favicon is the one branding field that must always be set.
	if deployment.Branding.FaviconURL == "" {
		deployment.Branding.FaviconURL = defaults.faviconURL()
	}
	deployment.NormalizeArrays()

	industry := brief.Industry
	tone := ""
	summary := ""
	if analysis != nil {
		if industry == "" {
			industry = analysis.Industry
		}
		tone = analysis.Tone
		summary = analysis.Summary
	}

	content := &models.ContentContext{
		Business: models.Business{
			Name:                brief.BusinessName,
			Tagline:             brief.Tagline,
			Industry:            industry,
			Services:            brief.Services,
			TargetAudience:      brief.TargetAudience,
			UniqueSellingPoints: brief.USPs,
			Location:            brief.Location,
			ContactInfo: models.ContactInfo{
				Phone: brief.ContactPhone,
				Email: brief.ContactEmail,
			},
		},
		Tone:  tone,
		Pages: models.DefaultPages(),
		SEO: models.SEO{
			MetaTitle:       truncateRunes(brief.BusinessName, maxMetaTitle),
			MetaDescription: truncateRunes(summary, maxMetaDescription),
		},
	}

	return deployment, content
}

// pickBrandColors takes the first two candidates that pass the hex
// check, normalizing a missing leading hash.
func pickBrandColors(candidates []string) (primary, secondary string) {
	for _, raw := range candidates {
		color := strings.TrimSpace(raw)
		if color == "" {
			continue
		}
		if !strings.HasPrefix(color, "#") {
			color = "#" + color
		}
		if !models.IsBrandColor(color) {
			continue
		}
		if primary == "" {
			primary = color
			continue
		}
		if color != primary {
			secondary = color
			return primary, secondary
		}
	}
	return primary, secondary
}

// validateContexts aggregates validation failures from both contexts
// into one error list.
func validateContexts(deployment *models.DeploymentContext, content *models.ContentContext) error {
	var all models.ValidationErrors
	for _, err := range []error{
		models.ValidateDeploymentContext(deployment),
		models.ValidateContentContext(content),
	} {
		if err == nil {
			continue
		}
		var list models.ValidationErrors
		if errors.As(err, &list) {
			all = append(all, list...)
			continue
		}
		var single *models.ValidationError
		if errors.As(err, &single) {
			all = append(all, single)
			continue
		}
		all = append(all, models.NewValidationError("context", err.Error()))
	}
	if len(all) == 0 {
		return nil
	}
	return all
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max]))
}
