// Package localecmp compares user-facing strings in the order of a locale,
// ignoring case, accents and width.
package localecmp

import (
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultLocale is used when no locale is configured.
const DefaultLocale = "en"

// ParseTag parses a BCP 47 locale. An empty value selects DefaultLocale.
func ParseTag(locale string) (language.Tag, error) {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		locale = DefaultLocale
	}
	return language.Parse(locale)
}

// Collator is safe for concurrent use; the wrapped collate.Collator is not.
type Collator struct {
	mu  sync.Mutex
	tag language.Tag
	c   *collate.Collator
}

// New constructs a collator for locale, falling back to DefaultLocale when
// the locale cannot be parsed.
func New(locale string) *Collator {
	c := &Collator{}
	c.SetLocale(locale)
	return c
}

// SetLocale switches the collation order.
func (c *Collator) SetLocale(locale string) {
	tag, err := ParseTag(locale)
	if err != nil {
		tag = language.MustParse(DefaultLocale)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tag = tag
	c.c = collate.New(tag, collate.IgnoreCase, collate.IgnoreDiacritics, collate.IgnoreWidth)
}

// Locale returns the active locale.
func (c *Collator) Locale() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tag.String()
}

// Compare returns -1, 0 or 1.
func (c *Collator) Compare(a, b string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.c.CompareString(a, b)
}

// Sort orders values in place. Values equal under the collation keep a
// stable byte order so the result is deterministic.
func (c *Collator) Sort(values []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slices.SortFunc(values, func(a, b string) int {
		if r := c.c.CompareString(a, b); r != 0 {
			return r
		}
		return strings.Compare(a, b)
	})
}
