package mentions

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	mapset "github.com/deckarep/golang-set/v2"
)

var defaultNamespaces = []string{
	"File", "Category", "Image", "Help", "Template", "Portal", "Special", "Draft",
	"Wikipedia", "WP", "User", "Talk", "MediaWiki", "Module", "Book",
	"Education_Program", "TimedText",
}

var (
	headingRE  = regexp.MustCompile(`(?m)^=+[^=\n].*?=+[ \t]*$`)
	commentRE  = regexp.MustCompile(`(?s)<!--.*?-->`)
	spaceRunRE = regexp.MustCompile(`[\s_]+`)
)

// Extractor pulls the lead section and its outgoing article links from raw wikitext.
type Extractor struct {
	excluded map[string]bool
}

// New builds an extractor excluding the standard non-article namespaces plus extra.
// Every namespace also excludes its "_talk" variant.
func New(extra ...string) *Extractor {
	e := &Extractor{excluded: map[string]bool{}}
	for _, ns := range append(append([]string{}, defaultNamespaces...), extra...) {
		key := namespaceKey(strings.TrimSuffix(strings.TrimSpace(ns), ":"))
		if key == "" {
			continue
		}
		e.excluded[key] = true
		if key != "talk" {
			e.excluded[key+"_talk"] = true
		}
	}
	return e
}

// Extract returns the raw lead section of body and the normalized titles it links to.
func (e *Extractor) Extract(body string) (string, mapset.Set[string]) {
	abstract := LeadSection(body)
	titles := mapset.NewThreadUnsafeSet[string]()
	for _, raw := range wikilinkTargets(abstract) {
		title := Normalize(raw)
		if title == "" || e.Excluded(title) {
			continue
		}
		titles.Add(title)
	}
	return abstract, titles
}

// Excluded reports whether a normalized title lives in a filtered namespace.
func (e *Extractor) Excluded(title string) bool {
	i := strings.IndexByte(title, ':')
	if i <= 0 {
		return false
	}
	return e.excluded[namespaceKey(title[:i])]
}

// LeadSection is everything before the first heading line. Comments are dropped first so
// a commented-out heading does not end the lead.
func LeadSection(body string) string {
	body = commentRE.ReplaceAllString(body, "")
	if loc := headingRE.FindStringIndex(body); loc != nil {
		return body[:loc[0]]
	}
	return body
}

// Normalize turns a link target into page-title form: "some  article#History" becomes
// "Some_article".
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, ":")
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(spaceRunRE.ReplaceAllString(strings.TrimSpace(s), "_"), "_")
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func namespaceKey(ns string) string {
	return strings.ToLower(spaceRunRE.ReplaceAllString(strings.TrimSpace(ns), "_"))
}

// wikilinkTargets scans [[target|label]] links, including links nested inside another
// link's label (image captions). Unbalanced brackets are ignored.
func wikilinkTargets(text string) []string {
	text = commentRE.ReplaceAllString(text, "")
	var (
		out   []string
		stack []int
	)
	for i := 0; i+1 < len(text); {
		switch {
		case text[i] == '[' && text[i+1] == '[':
			stack = append(stack, i+2)
			i += 2
		case text[i] == ']' && text[i+1] == ']' && len(stack) > 0:
			start := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			out = append(out, linkTarget(text[start:i]))
			i += 2
		default:
			i++
		}
	}
	return out
}

func linkTarget(inner string) string {
	end := len(inner)
	if i := strings.IndexByte(inner, '|'); i >= 0 && i < end {
		end = i
	}
	if i := strings.Index(inner, "[["); i >= 0 && i < end {
		end = i
	}
	return inner[:end]
}
