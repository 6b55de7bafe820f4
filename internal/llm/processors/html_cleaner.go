package processors

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLCleaner strips search-results pages down to the content worth sending
// to an LLM
type HTMLCleaner struct {
	// Tags to remove completely
	removeTags []string
	// Attributes to keep (others will be removed)
	keepAttributes []string
}

// NewHTMLCleaner creates a new HTML cleaner instance
func NewHTMLCleaner() *HTMLCleaner {
	return &HTMLCleaner{
		removeTags: []string{
			"script", "style", "noscript", "iframe", "object", "embed",
			"applet", "input", "select", "textarea",
			"nav", "header", "footer", "aside", "menu", "menuitem",
			"svg", "path", "g", "defs", "use", "symbol",
			"meta", "link", "title", "base",
		},
		keepAttributes: []string{
			"class", "id", "href", "data-testid", "data-test", "aria-label", "title",
		},
	}
}

// CleanHTML removes unnecessary elements and clutter from HTML
func (hc *HTMLCleaner) CleanHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	for _, tag := range hc.removeTags {
		doc.Find(tag).Remove()
	}

	hc.cleanAttributes(doc)
	hc.removeEmptyElements(doc)

	cleanedHTML, err := doc.Html()
	if err != nil {
		return "", err
	}

	return hc.cleanText(cleanedHTML), nil
}

// ExtractResultsContent extracts the parts of a page likely to contain the
// list of search results. Links are kept because the job URL of each card is
// the one field the downstream extraction cannot infer.
func (hc *HTMLCleaner) ExtractResultsContent(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	for _, tag := range hc.removeTags {
		doc.Find(tag).Remove()
	}
	hc.cleanAttributes(doc)

	resultSelectors := []string{
		"main", "[role='main']", "#main", ".main",
		".job", ".job-card", ".jobsearch-ResultsList", ".job_seen_beacon",
		".result", ".results", ".search-results", ".listing", ".listings",
		"ul.jobs", "section.jobs",
		"article", "section[class*='job']", "section[class*='result']",
		"[data-testid*='job']", "[data-test*='job']", "[data-qa*='job']",
	}

	var contentParts []string
	for _, selector := range resultSelectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			fragment, err := goquery.OuterHtml(s)
			if err != nil {
				return
			}
			if text := strings.TrimSpace(s.Text()); len(text) > 50 {
				contentParts = append(contentParts, fragment)
			}
		})
	}

	// Fall back to the whole body when nothing matched
	if len(contentParts) == 0 {
		if bodyHTML, err := doc.Find("body").Html(); err == nil && bodyHTML != "" {
			contentParts = append(contentParts, bodyHTML)
		}
	}

	return hc.cleanText(strings.Join(contentParts, "\n\n")), nil
}

// cleanAttributes removes unwanted attributes from elements
func (hc *HTMLCleaner) cleanAttributes(doc *goquery.Document) {
	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		for _, attr := range s.Nodes[0].Attr {
			keep := false
			for _, keepAttr := range hc.keepAttributes {
				if attr.Key == keepAttr {
					keep = true
					break
				}
			}
			if !keep {
				s.RemoveAttr(attr.Key)
			}
		}
	})
}

// removeEmptyElements removes elements that are empty or contain only whitespace
func (hc *HTMLCleaner) removeEmptyElements(doc *goquery.Document) {
	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) == "" && s.Children().Length() == 0 {
			s.Remove()
		}
	})
}

// cleanText performs additional text cleaning
func (hc *HTMLCleaner) cleanText(html string) string {
	commentRegex := regexp.MustCompile(`<!--[\s\S]*?-->`)
	html = commentRegex.ReplaceAllString(html, "")

	whitespaceRegex := regexp.MustCompile(`[ \t]+`)
	html = whitespaceRegex.ReplaceAllString(html, " ")

	emptyLineRegex := regexp.MustCompile(`\n\s*\n`)
	html = emptyLineRegex.ReplaceAllString(html, "\n")

	return strings.TrimSpace(html)
}

// GetCleanTextLength returns the approximate token count for the cleaned text
func (hc *HTMLCleaner) GetCleanTextLength(text string) int {
	// Rough estimation: ~4 characters per token
	return len(text) / 4
}
