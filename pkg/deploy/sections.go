package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/MisreadableMind/word-to-site-ai/pkg/ai"
	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
)

// Section types the serializer knows how to render. Anything outside
// this set coming back from the model is dropped.
const (
	SectionHero         = "hero"
	SectionFeatures     = "features"
	SectionAbout        = "about"
	SectionServices     = "services"
	SectionContact      = "contact"
	SectionCTA          = "cta"
	SectionTestimonials = "testimonials"
)

var knownSections = map[string]bool{
	SectionHero:         true,
	SectionFeatures:     true,
	SectionAbout:        true,
	SectionServices:     true,
	SectionContact:      true,
	SectionCTA:          true,
	SectionTestimonials: true,
}

// Section is one structured content block of a generated page.
type Section struct {
	Type    string        `json:"type"`
	Heading string        `json:"heading,omitempty"`
	Body    string        `json:"body,omitempty"`
	Items   []SectionItem `json:"items,omitempty"`
	CTAText string        `json:"ctaText,omitempty"`
	CTALink string        `json:"ctaLink,omitempty"`
}

// SectionItem is a list entry inside features, services or
// testimonials sections.
type SectionItem struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

const pageGenerationSystemPrompt = `You are a website copywriter. Respond with a single JSON object:
{"sections":[{"type":"hero|features|about|services|contact|cta|testimonials","heading":"...","body":"...","items":[{"title":"...","description":"..."}],"ctaText":"...","ctaLink":"..."}]}
Write concise, benefit-led copy. Use only the listed section types. No markdown, JSON only.`

// generatePageSections asks the model for structured page content.
func generatePageSections(ctx context.Context, completer ai.Completer, model string, page models.PageSpec, content *models.ContentContext) ([]Section, error) {
	prompt := buildPagePrompt(page, content)
	resp, err := completer.Complete(ctx, ai.Request{
		Model: model,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: pageGenerationSystemPrompt},
			{Role: ai.RoleUser, Content: prompt},
		},
		MaxTokens:   ai.Int(2048),
		Temperature: ai.Float(0.7),
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Sections []Section `json:"sections"`
	}
	if err := json.Unmarshal([]byte(ai.ExtractJSON(resp.Content)), &parsed); err != nil {
		return nil, fmt.Errorf("parse generated sections: %w", err)
	}

	sections := parsed.Sections[:0]
	for _, section := range parsed.Sections {
		if !knownSections[section.Type] {
			slog.Debug("Dropping unknown section type", "type", section.Type, "page", page.Slug)
			continue
		}
		sections = append(sections, section)
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("model returned no usable sections")
	}
	return sections, nil
}

func buildPagePrompt(page models.PageSpec, content *models.ContentContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the %q page (slug %s) for this business:\n", page.Title, page.Slug)
	fmt.Fprintf(&b, "Business: %s\n", content.Business.Name)
	if content.Business.Tagline != "" {
		fmt.Fprintf(&b, "Tagline: %s\n", content.Business.Tagline)
	}
	if content.Business.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", content.Business.Industry)
	}
	if len(content.Business.Services) > 0 {
		fmt.Fprintf(&b, "Services: %s\n", strings.Join(content.Business.Services, ", "))
	}
	if content.Business.TargetAudience != "" {
		fmt.Fprintf(&b, "Target audience: %s\n", content.Business.TargetAudience)
	}
	if len(content.Business.UniqueSellingPoints) > 0 {
		fmt.Fprintf(&b, "Selling points: %s\n", strings.Join(content.Business.UniqueSellingPoints, "; "))
	}
	if content.Business.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", content.Business.Location)
	}
	if content.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", content.Tone)
	}
	if len(page.Sections) > 0 {
		fmt.Fprintf(&b, "Requested sections: %s\n", strings.Join(page.Sections, ", "))
	}
	return b.String()
}

// serializeSections renders sections to the HTML pushed into the page.
func serializeSections(sections []Section) string {
	var b strings.Builder
	for _, section := range sections {
		switch section.Type {
		case SectionHero:
			b.WriteString(`<section class="hero">`)
			if section.Heading != "" {
				fmt.Fprintf(&b, "<h1>%s</h1>", html.EscapeString(section.Heading))
			}
			writeParagraph(&b, section.Body)
			writeCTA(&b, section)
			b.WriteString("</section>\n")
		case SectionFeatures, SectionServices, SectionTestimonials:
			fmt.Fprintf(&b, `<section class="%s">`, section.Type)
			writeHeading(&b, section.Heading)
			writeParagraph(&b, section.Body)
			if len(section.Items) > 0 {
				b.WriteString("<ul>")
				for _, item := range section.Items {
					b.WriteString("<li>")
					if item.Title != "" {
						fmt.Fprintf(&b, "<strong>%s</strong>", html.EscapeString(item.Title))
						if item.Description != "" {
							b.WriteString(": ")
						}
					}
					b.WriteString(html.EscapeString(item.Description))
					b.WriteString("</li>")
				}
				b.WriteString("</ul>")
			}
			b.WriteString("</section>\n")
		case SectionAbout, SectionContact:
			fmt.Fprintf(&b, `<section class="%s">`, section.Type)
			writeHeading(&b, section.Heading)
			writeParagraph(&b, section.Body)
			b.WriteString("</section>\n")
		case SectionCTA:
			b.WriteString(`<section class="cta">`)
			writeHeading(&b, section.Heading)
			writeParagraph(&b, section.Body)
			writeCTA(&b, section)
			b.WriteString("</section>\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeHeading(b *strings.Builder, heading string) {
	if heading != "" {
		fmt.Fprintf(b, "<h2>%s</h2>", html.EscapeString(heading))
	}
}

func writeParagraph(b *strings.Builder, body string) {
	if body != "" {
		fmt.Fprintf(b, "<p>%s</p>", html.EscapeString(body))
	}
}

func writeCTA(b *strings.Builder, section Section) {
	if section.CTAText == "" {
		return
	}
	link := section.CTALink
	if link == "" {
		link = "/contact"
	}
	fmt.Fprintf(b, `<a class="button" href="%s">%s</a>`, html.EscapeString(link), html.EscapeString(section.CTAText))
}

// fallbackSections is the fixed per-slug content used when generation
// fails or no model is configured.
func fallbackSections(slug string, business models.Business) []Section {
	name := business.Name
	if name == "" {
		name = "Our Business"
	}

	switch slug {
	case "home":
		hero := Section{
			Type:    SectionHero,
			Heading: name,
			Body:    "Welcome! We are glad you are here.",
			CTAText: "Get in touch",
			CTALink: "/contact",
		}
		if business.Tagline != "" {
			hero.Body = business.Tagline
		}
		sections := []Section{hero}
		if len(business.Services) > 0 {
			items := make([]SectionItem, 0, len(business.Services))
			for _, service := range business.Services {
				items = append(items, SectionItem{Title: service})
			}
			sections = append(sections, Section{Type: SectionServices, Heading: "What We Do", Items: items})
		}
		return sections
	case "about":
		return []Section{{
			Type:    SectionAbout,
			Heading: "About " + name,
			Body:    fmt.Sprintf("%s is dedicated to serving its customers with care and expertise.", name),
		}}
	case "services":
		items := make([]SectionItem, 0, len(business.Services))
		for _, service := range business.Services {
			items = append(items, SectionItem{Title: service})
		}
		if len(items) == 0 {
			items = append(items, SectionItem{Title: "Our Services", Description: "Contact us to learn more about what we offer."})
		}
		return []Section{{Type: SectionServices, Heading: "Services", Items: items}}
	case "contact":
		body := "We would love to hear from you."
		var details []string
		if business.ContactInfo.Phone != "" {
			details = append(details, "Phone: "+business.ContactInfo.Phone)
		}
		if business.ContactInfo.Email != "" {
			details = append(details, "Email: "+business.ContactInfo.Email)
		}
		if business.ContactInfo.Address != "" {
			details = append(details, "Address: "+business.ContactInfo.Address)
		}
		if len(details) > 0 {
			body = strings.Join(details, ". ")
		}
		return []Section{{Type: SectionContact, Heading: "Contact Us", Body: body}}
	case "blog":
		return []Section{{
			Type:    SectionAbout,
			Heading: "Blog",
			Body:    "News and updates from " + name + " will appear here.",
		}}
	default:
		return []Section{{
			Type:    SectionAbout,
			Heading: name,
			Body:    "Content for this page is on its way.",
		}}
	}
}
