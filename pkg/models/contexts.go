package models

// TemplateSelection picks a catalog template plus optional skin/variation.
type TemplateSelection struct {
	Slug      string `json:"slug" validate:"required"`
	Skin      string `json:"skin,omitempty"`
	Variation string `json:"variation,omitempty"`
}

// PluginSpec describes one plugin to install on the provisioned site.
type PluginSpec struct {
	Slug     string         `json:"slug" validate:"required"`
	Activate bool           `json:"activate"`
	Config   map[string]any `json:"config,omitempty"`
}

// DemoContent controls template demo-content import.
type DemoContent struct {
	Import       bool              `json:"import"`
	Pages        []string          `json:"pages"`
	ContentSlots map[string]string `json:"contentSlots,omitempty"`
}

// Branding holds visual identity values applied through the customizer.
// Colors must be 6-digit hex with a leading hash.
type Branding struct {
	PrimaryColor   string `json:"primaryColor,omitempty" validate:"omitempty,brandcolor"`
	SecondaryColor string `json:"secondaryColor,omitempty" validate:"omitempty,brandcolor"`
	LogoURL        string `json:"logoUrl,omitempty" validate:"omitempty,url"`
	FaviconURL     string `json:"faviconUrl,omitempty" validate:"omitempty,url"`
}

// DeploymentContext drives host-side configuration: template, plugins, demo
// content, and branding.
type DeploymentContext struct {
	Template    TemplateSelection `json:"template" validate:"required"`
	Plugins     []PluginSpec      `json:"plugins" validate:"dive"`
	DemoContent DemoContent       `json:"demoContent"`
	Branding    Branding          `json:"branding"`
	Features    []string          `json:"features"`
}

// NormalizeArrays replaces nil slices with empty ones so the JSON encoding
// always carries arrays.
func (d *DeploymentContext) NormalizeArrays() {
	if d.Plugins == nil {
		d.Plugins = []PluginSpec{}
	}
	if d.Features == nil {
		d.Features = []string{}
	}
	if d.DemoContent.Pages == nil {
		d.DemoContent.Pages = []string{}
	}
}

// ContactInfo is the business contact block inside a ContentContext.
type ContactInfo struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Address string `json:"address,omitempty"`
}

// Business describes the tenant's business for content generation.
type Business struct {
	Name                string      `json:"name" validate:"required"`
	Tagline             string      `json:"tagline,omitempty"`
	Industry            string      `json:"industry,omitempty"`
	Services            []string    `json:"services,omitempty"`
	TargetAudience      string      `json:"targetAudience,omitempty"`
	UniqueSellingPoints []string    `json:"uniqueSellingPoints,omitempty"`
	Location            string      `json:"location,omitempty"`
	ContactInfo         ContactInfo `json:"contactInfo"`
}

// Language selects the primary content language plus any additional ones.
type Language struct {
	Primary    string   `json:"primary,omitempty"`
	Additional []string `json:"additional,omitempty"`
}

// PageSpec names one page the content pipeline must produce.
type PageSpec struct {
	Slug     string   `json:"slug" validate:"required"`
	Title    string   `json:"title" validate:"required"`
	Sections []string `json:"sections,omitempty"`
}

// SEO carries metadata limits enforced at validation time.
type SEO struct {
	MetaTitle       string   `json:"metaTitle,omitempty" validate:"max=60"`
	MetaDescription string   `json:"metaDescription,omitempty" validate:"max=160"`
	Keywords        []string `json:"keywords,omitempty"`
}

// SourceAnalysis is attached to contexts built by the COPY variant.
type SourceAnalysis struct {
	URL         string   `json:"url"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Industry    string   `json:"industry,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Palette     []string `json:"palette,omitempty"`
}

// VoiceInterview is attached to contexts built by the VOICE variant.
type VoiceInterview struct {
	Answers map[string]string `json:"answers"`
}

// ContentContext drives AI content generation for the provisioned site.
type ContentContext struct {
	Business       Business        `json:"business"`
	Language       Language        `json:"language"`
	Tone           string          `json:"tone,omitempty" validate:"omitempty,oneof=professional friendly casual formal"`
	Pages          []PageSpec      `json:"pages" validate:"dive"`
	SEO            SEO             `json:"seo"`
	SourceAnalysis *SourceAnalysis `json:"sourceAnalysis,omitempty"`
	VoiceInterview *VoiceInterview `json:"voiceInterview,omitempty"`
}

// DefaultPageSlugs are used when neither the brief nor the scrape yields a
// page list.
var DefaultPageSlugs = []string{"home", "about", "services", "contact", "blog"}

// DefaultPages expands DefaultPageSlugs into full specs.
func DefaultPages() []PageSpec {
	titles := map[string]string{
		"home":     "Home",
		"about":    "About Us",
		"services": "Services",
		"contact":  "Contact",
		"blog":     "Blog",
	}
	pages := make([]PageSpec, 0, len(DefaultPageSlugs))
	for _, slug := range DefaultPageSlugs {
		pages = append(pages, PageSpec{Slug: slug, Title: titles[slug]})
	}
	return pages
}

// MergeDeploymentContexts overlays b onto a: non-zero fields of b win,
// everything else is kept from a. Merging a context with itself returns an
// equal context.
func MergeDeploymentContexts(a, b DeploymentContext) DeploymentContext {
	out := a

	if b.Template.Slug != "" {
		out.Template.Slug = b.Template.Slug
	}
	if b.Template.Skin != "" {
		out.Template.Skin = b.Template.Skin
	}
	if b.Template.Variation != "" {
		out.Template.Variation = b.Template.Variation
	}

	if len(b.Plugins) > 0 {
		out.Plugins = b.Plugins
	}
	if len(b.Features) > 0 {
		out.Features = b.Features
	}

	if b.DemoContent.Import {
		out.DemoContent.Import = true
	}
	if len(b.DemoContent.Pages) > 0 {
		out.DemoContent.Pages = b.DemoContent.Pages
	}
	if len(b.DemoContent.ContentSlots) > 0 {
		out.DemoContent.ContentSlots = b.DemoContent.ContentSlots
	}

	if b.Branding.PrimaryColor != "" {
		out.Branding.PrimaryColor = b.Branding.PrimaryColor
	}
	if b.Branding.SecondaryColor != "" {
		out.Branding.SecondaryColor = b.Branding.SecondaryColor
	}
	if b.Branding.LogoURL != "" {
		out.Branding.LogoURL = b.Branding.LogoURL
	}
	if b.Branding.FaviconURL != "" {
		out.Branding.FaviconURL = b.Branding.FaviconURL
	}

	return out
}
