// Package slug derives filesystem-safe identifiers from user titles.
package slug

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used when a title has no usable characters.
const Fallback = "untitled"

// Make lowercases title, folds accents, collapses every run of other
// characters into a single hyphen and trims hyphens at both ends.
func Make(title string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	if b.Len() == 0 {
		return Fallback
	}
	return b.String()
}

// NewID mints "{unixMillis}_{slug}" for title at t.
func NewID(t time.Time, title string) string {
	return fmt.Sprintf("%d_%s", t.UnixMilli(), Make(title))
}
