package tweet

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// referencePatterns is the ordered list of patterns tried against input
// text. The first pattern that matches wins and no further patterns are
// tried; keep that order when adding entries. Tweet ids are digits
// only; the platform has never issued anything else.
var referencePatterns = []*regexp.Regexp{
	// Canonical twitter.com status URL, scheme and www optional.
	regexp.MustCompile(`(?i)(?:(?:http|https):)?//(?:www\.)?twitter\.com/(?P<user>[a-zA-Z0-9_-]+)/(?:status|statuses)/(?P<id>\d+)`),
	// Post-rebrand x.com URLs.
	regexp.MustCompile(`(?i)(?:(?:http|https):)?//(?:www\.)?x\.com/(?P<user>[a-zA-Z0-9_-]+)/(?:status|statuses)/(?P<id>\d+)`),
}

// Match extracts a Reference from input text. The input may be a bare
// status URL or third-party embed markup containing such a URL anywhere
// inside it. Returns false when nothing matches; that is a normal
// outcome for free text, not an error.
func Match(input string) (Reference, bool) {
	// Candidate strings to scan, most specific first. For markup we
	// pull anchor hrefs out via an HTML parse so entity-encoded URLs
	// still match, then fall back to scanning the raw text.
	candidates := []string{input}
	if strings.Contains(input, "<") {
		if hrefs := anchorHrefs(input); len(hrefs) > 0 {
			candidates = append(hrefs, input)
		}
	}

	for _, pat := range referencePatterns {
		for _, c := range candidates {
			m := pat.FindStringSubmatch(c)
			if m == nil {
				continue
			}
			ref := Reference{Span: m[0]}
			for i, name := range pat.SubexpNames() {
				switch name {
				case "user":
					ref.User = m[i]
				case "id":
					ref.ID = m[i]
				}
			}
			return ref, true
		}
	}
	return Reference{}, false
}

// ValidEmbedCode reports whether s contains a recognizable tweet
// reference. Intended for host-side input validation.
func ValidEmbedCode(s string) bool {
	_, ok := Match(s)
	return ok
}

// EmbedHTML renders the blockquote markup that the Twitter widget
// script activates in a browser. The script itself is the host's
// concern.
func EmbedHTML(ref Reference) string {
	return fmt.Sprintf(
		`<blockquote class="twitter-tweet element-hidden" data-conversation="none" lang="en"><a href="%s"></a></blockquote>`,
		html.EscapeString(ref.CanonicalURL()))
}

func anchorHrefs(markup string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && href != "" {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs
}
