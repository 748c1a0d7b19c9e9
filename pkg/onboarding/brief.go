package onboarding

import (
	"regexp"
	"strings"
)

// Brief is the normalized interview output the VOICE variant builds
// before matching a template.
type Brief struct {
	BusinessName   string   `json:"businessName"`
	Industry       string   `json:"industry,omitempty"`
	Tagline        string   `json:"tagline,omitempty"`
	Services       []string `json:"services,omitempty"`
	TargetAudience string   `json:"targetAudience,omitempty"`
	USPs           []string `json:"usps,omitempty"`
	ContactPhone   string   `json:"contactPhone,omitempty"`
	ContactEmail   string   `json:"contactEmail,omitempty"`
	Team           string   `json:"team,omitempty"`
	Location       string   `json:"location,omitempty"`
	Colors         []string `json:"colors,omitempty"`
}

var listSplitRe = regexp.MustCompile(`[,;]`)

// Interview question ids. The voice frontend sends free text keyed by
// these; unknown keys are ignored.
const (
	questionBusinessName   = "business_name"
	questionIndustry       = "industry"
	questionTagline        = "tagline"
	questionServices       = "services"
	questionTargetAudience = "target_audience"
	questionUSPs           = "unique_selling_points"
	questionContactPhone   = "contact_phone"
	questionContactEmail   = "contact_email"
	questionTeam           = "team"
	questionLocation       = "location"
	questionColors         = "brand_colors"
)

// buildBrief normalizes the answer map into a Brief. List-valued
// answers are split on commas and semicolons.
func buildBrief(answers map[string]string) Brief {
	get := func(key string) string {
		return strings.TrimSpace(answers[key])
	}
	return Brief{
		BusinessName:   get(questionBusinessName),
		Industry:       get(questionIndustry),
		Tagline:        get(questionTagline),
		Services:       splitList(get(questionServices)),
		TargetAudience: get(questionTargetAudience),
		USPs:           splitList(get(questionUSPs)),
		ContactPhone:   get(questionContactPhone),
		ContactEmail:   get(questionContactEmail),
		Team:           get(questionTeam),
		Location:       get(questionLocation),
		Colors:         splitList(get(questionColors)),
	}
}

func splitList(answer string) []string {
	if answer == "" {
		return nil
	}
	var items []string
	for _, part := range listSplitRe.Split(answer, -1) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// describe renders the brief as prompt input for the template matcher.
func (b Brief) describe() string {
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, label+": "+value)
		}
	}
	add("Business", b.BusinessName)
	add("Industry", b.Industry)
	add("Tagline", b.Tagline)
	add("Services", strings.Join(b.Services, ", "))
	add("Target audience", b.TargetAudience)
	add("Selling points", strings.Join(b.USPs, "; "))
	add("Team", b.Team)
	add("Location", b.Location)
	return strings.Join(lines, "\n")
}
