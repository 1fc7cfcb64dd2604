// Package suggest serves title prefix completions from a structure kept
// beside the index and updated on every upsert and delete.
package suggest

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Entry is one indexed title.
type Entry struct {
	ID    string
	Title string
}

// Suggester completes title prefixes. Matching is case and accent
// insensitive; results are ordered by folded title then title, and a title
// shared by several documents is returned once.
type Suggester interface {
	Add(ctx context.Context, id, title string) error
	Remove(ctx context.Context, id string) error
	Suggest(ctx context.Context, prefix string, size int) ([]string, error)
	Rebuild(ctx context.Context, entries []Entry) error
}

// Fold lowercases s and strips combining marks, so "Obsèques" and
// "OBSEQUES" share the key "obseques".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}
