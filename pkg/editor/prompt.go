package editor

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/MisreadableMind/word-to-site-ai/pkg/deploy"
)

const pageExcerptLen = 200

var (
	promptTagRe   = regexp.MustCompile(`(?s)<[^>]*>`)
	promptSpaceRe = regexp.MustCompile(`\s+`)
)

// BuildSystemPrompt synthesizes the session's first message: who the
// assistant is, which site it edits, the current page inventory, and the
// action grammar the model must use to make changes. Passing no pages
// yields the bare prompt, used when the page fetch fails.
func BuildSystemPrompt(siteURL string, pages []deploy.Page) string {
	var sb strings.Builder

	sb.WriteString("You are a website editing assistant. You help the site owner change ")
	sb.WriteString("their website through conversation.\n")
	if siteURL != "" {
		fmt.Fprintf(&sb, "\nSite URL: %s\n", siteURL)
	}

	if len(pages) > 0 {
		sb.WriteString("\nCurrent pages:\n")
		for _, page := range pages {
			fmt.Fprintf(&sb, "- [ID:%d] %q — %s\n", page.ID, page.Title, pageExcerpt(page.Content))
		}
	}

	sb.WriteString(`
To change the site, include one or more action blocks in your reply. Each
block is the literal line ":::action", one JSON object, then the literal
line ":::". Supported actions:

:::action
{"type":"update_page","pageId":<id>,"updates":{"title":"...","content":"...","slug":"...","status":"..."}}
:::

:::action
{"type":"update_settings","settings":{"title":"...","tagline":"..."}}
:::

:::action
{"type":"create_page","page":{"title":"...","content":"...","slug":"...","status":"..."}}
:::

All updates fields are optional; include only what changes. Page content is
HTML. Text outside action blocks is shown to the user, so describe what you
are doing in plain language. Never mention the blocks themselves.`)

	return sb.String()
}

// pageExcerpt strips markup from page content and cuts it to the first
// 200 characters for the inventory line.
func pageExcerpt(content string) string {
	text := promptTagRe.ReplaceAllString(content, " ")
	text = html.UnescapeString(text)
	text = strings.TrimSpace(promptSpaceRe.ReplaceAllString(text, " "))

	runes := []rune(text)
	if len(runes) <= pageExcerptLen {
		return text
	}
	return string(runes[:pageExcerptLen]) + "..."
}
