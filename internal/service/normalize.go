package service

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

var (
	urlPattern   = regexp.MustCompile(`(?:https?://|www\.)\S+`)
	emailPattern = regexp.MustCompile(`\S+@\S+`)
	gluedWords   = regexp.MustCompile(`(\p{Ll})(\p{Lu})`)
)

const blockElements = "p, div, li, br, tr, td, th, h1, h2, h3, h4, h5, h6, blockquote, pre, section, article"

// CleanText strips URLs and e-mail addresses, separates words glued by the
// scraper ("fooBar" becomes "foo Bar") and collapses whitespace.
func CleanText(text string) string {
	text = norm.NFC.String(text)
	text = urlPattern.ReplaceAllString(text, " ")
	text = emailPattern.ReplaceAllString(text, " ")
	text = gluedWords.ReplaceAllString(text, "$1 $2")
	return strings.Join(strings.Fields(text), " ")
}

// HTMLToText extracts the visible text of an HTML fragment. Every block
// element ends a sentence, so headings and list items are not glued to the
// text that follows them.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, template").Remove()

	// Innermost blocks first, so a parent sees its last child already
	// terminated and does not add a second stop.
	blocks := doc.Find(blockElements)
	for i := blocks.Length() - 1; i >= 0; i-- {
		block := blocks.Eq(i)
		words := strings.Fields(block.Text())
		if len(words) == 0 || endsSentence(words[len(words)-1]) {
			block.AppendHtml(" ")
			continue
		}
		block.AppendHtml(". ")
	}
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

// NormalizeBody returns the cleaned body text the chunker operates on.
// The HTML body is only consulted when the plain text body is empty.
func NormalizeBody(body, bodyHTML string) string {
	if strings.TrimSpace(body) == "" && strings.TrimSpace(bodyHTML) != "" {
		text, err := HTMLToText(bodyHTML)
		if err != nil {
			return ""
		}
		body = text
	}
	return CleanText(body)
}
