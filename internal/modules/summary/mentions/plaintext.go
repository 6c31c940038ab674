package mentions

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	refRE       = regexp.MustCompile(`(?is)<ref[^>]*?/>|<ref[^>]*>.*?</ref>`)
	extLinkRE   = regexp.MustCompile(`\[(?:https?:)?//[^\s\]]+\s*([^\]]*)\]`)
	urlRE       = regexp.MustCompile(`https?://\S+`)
	quotesRE    = regexp.MustCompile(`'{2,}`)
	whitespace  = regexp.MustCompile(`\s+`)
	fileLinkRE  = regexp.MustCompile(`(?i)^(file|image):`)
	tableOpenRE = regexp.MustCompile(`(?s)\{\|.*?\|\}`)
)

// PlainText renders wikitext as readable prose: templates, refs, tables, file embeds and
// markup are removed, links are replaced by their label and residual HTML is stripped.
func PlainText(raw string) string {
	s := strings.ReplaceAll(raw, `\n`, " ")
	s = commentRE.ReplaceAllString(s, "")
	s = refRE.ReplaceAllString(s, "")
	s = tableOpenRE.ReplaceAllString(s, "")
	s = stripTemplates(s)
	s = replaceWikilinks(s)
	s = extLinkRE.ReplaceAllString(s, "$1")
	s = urlRE.ReplaceAllString(s, "")
	s = quotesRE.ReplaceAllString(s, "")
	s = stripHTML(s)
	s = strings.NewReplacer("[[", " ", "]]", " ").Replace(s)
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// stripTemplates drops {{...}} blocks, honouring nesting.
func stripTemplates(s string) string {
	var b strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		if i+1 < len(s) && s[i] == '{' && s[i+1] == '{' {
			depth++
			i++
			continue
		}
		if depth > 0 && i+1 < len(s) && s[i] == '}' && s[i+1] == '}' {
			depth--
			i++
			continue
		}
		if depth == 0 {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// replaceWikilinks swaps each innermost link for its label until none remain, so caption
// links resolve before the file embed around them is dropped.
func replaceWikilinks(s string) string {
	for {
		open := -1
		replaced := false
		for i := 0; i+1 < len(s); i++ {
			if s[i] == '[' && s[i+1] == '[' {
				open = i
				i++
				continue
			}
			if s[i] == ']' && s[i+1] == ']' && open >= 0 {
				inner := s[open+2 : i]
				s = s[:open] + linkLabel(inner) + s[i+2:]
				replaced = true
				break
			}
		}
		if !replaced {
			return s
		}
	}
}

func linkLabel(inner string) string {
	target := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(inner), ":"))
	if fileLinkRE.MatchString(target) && !strings.HasPrefix(strings.TrimSpace(inner), ":") {
		return ""
	}
	parts := strings.Split(inner, "|")
	return strings.TrimSpace(parts[len(parts)-1])
}

func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return html.UnescapeString(s)
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml(" ")
	return doc.Find("body").Text()
}
