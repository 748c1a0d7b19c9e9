// Package onboarding turns a source site (COPY) or an interview
// transcript (VOICE) into the deployment and content contexts the
// provisioning pipeline consumes. Both variants share the template
// matcher and the context builder.
package onboarding

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/firecrawl"
)

// Brand holds the visual identity elements pattern-matched out of the
// scraped HTML.
type Brand struct {
	LogoURL     string   `json:"logoUrl,omitempty"`
	Palette     []string `json:"palette,omitempty"`
	NavLinks    []string `json:"navLinks,omitempty"`
	SocialLinks []string `json:"socialLinks,omitempty"`
	FaviconURL  string   `json:"faviconUrl,omitempty"`
}

var (
	hexColorRe = regexp.MustCompile(`#[0-9A-Fa-f]{6}\b`)
	logoImgRe  = regexp.MustCompile(`(?i)<img\b[^>]*(?:class|id|alt|src)=["'][^"']*logo[^"']*["'][^>]*>`)
	srcAttrRe  = regexp.MustCompile(`(?i)src=["']([^"']+)["']`)
	navBlockRe = regexp.MustCompile(`(?is)<nav\b[^>]*>(.*?)</nav>`)
	hrefRe     = regexp.MustCompile(`(?i)href=["']([^"'#]+)["']`)

	maxPaletteColors = 6
)

// socialHosts identify the outbound links kept as social profiles.
var socialHosts = []string{
	"facebook.com",
	"instagram.com",
	"linkedin.com",
	"twitter.com",
	"x.com",
	"youtube.com",
	"tiktok.com",
	"pinterest.com",
}

// extractBrand pattern-matches brand elements from raw HTML. Pure
// white and pure black are dropped from the palette; they appear on
// effectively every page and carry no identity.
func extractBrand(pageURL string, html string, meta firecrawl.Metadata) Brand {
	brand := Brand{
		FaviconURL: meta.Favicon,
		Palette:    extractPalette(html),
	}

	if m := logoImgRe.FindString(html); m != "" {
		if src := srcAttrRe.FindStringSubmatch(m); src != nil {
			brand.LogoURL = resolveAgainst(pageURL, src[1])
		}
	}
	if brand.LogoURL == "" && meta.OGImage != "" {
		brand.LogoURL = meta.OGImage
	}

	if nav := navBlockRe.FindStringSubmatch(html); nav != nil {
		brand.NavLinks = collectLinks(pageURL, nav[1], 12)
	}
	brand.SocialLinks = socialLinks(html)

	return brand
}

func extractPalette(html string) []string {
	seen := make(map[string]bool)
	var palette []string
	for _, raw := range hexColorRe.FindAllString(html, -1) {
		color := "#" + strings.ToUpper(raw[1:])
		if color == "#FFFFFF" || color == "#000000" {
			continue
		}
		if seen[color] {
			continue
		}
		seen[color] = true
		palette = append(palette, color)
		if len(palette) == maxPaletteColors {
			break
		}
	}
	return palette
}

func collectLinks(pageURL, fragment string, limit int) []string {
	seen := make(map[string]bool)
	var links []string
	for _, m := range hrefRe.FindAllStringSubmatch(fragment, -1) {
		link := resolveAgainst(pageURL, m[1])
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
		if len(links) == limit {
			break
		}
	}
	return links
}

func socialLinks(html string) []string {
	seen := make(map[string]bool)
	var links []string
	for _, m := range hrefRe.FindAllStringSubmatch(html, -1) {
		link := m[1]
		parsed, err := url.Parse(link)
		if err != nil || parsed.Host == "" {
			continue
		}
		host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
		for _, social := range socialHosts {
			if host == social || strings.HasSuffix(host, "."+social) {
				if !seen[link] {
					seen[link] = true
					links = append(links, link)
				}
				break
			}
		}
	}
	return links
}

// resolveAgainst resolves href relative to base, keeping only web URLs.
func resolveAgainst(base, href string) string {
	parsedBase, err := url.Parse(base)
	if err != nil {
		return ""
	}
	parsed, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	resolved := parsedBase.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}
