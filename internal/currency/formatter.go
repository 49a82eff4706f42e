// Package currency renders money amounts for display in a user's locale.
package currency

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const DefaultCacheSize = 64

type localeFormat struct {
	printer *message.Printer
	unit    currency.Unit
}

// Formatter formats amounts per locale. Printers are built once per locale and
// kept in a bounded LRU cache, so a Formatter is safe for concurrent use.
type Formatter struct {
	cache    *lru.Cache[string, localeFormat]
	fallback language.Tag
}

// NewFormatter returns a Formatter caching up to size locales. Unknown or
// malformed locales are formatted with fallback.
func NewFormatter(size int, fallback string) (*Formatter, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	tag, err := language.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("parse fallback locale %q: %w", fallback, err)
	}
	cache, err := lru.New[string, localeFormat](size)
	if err != nil {
		return nil, fmt.Errorf("create locale cache: %w", err)
	}
	return &Formatter{cache: cache, fallback: tag}, nil
}

func (f *Formatter) lookup(locale string) localeFormat {
	if lf, ok := f.cache.Get(locale); ok {
		return lf
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = f.fallback
	}
	unit, _ := currency.FromTag(tag)
	lf := localeFormat{printer: message.NewPrinter(tag), unit: unit}
	f.cache.Add(locale, lf)
	return lf
}

// Format renders amount with two decimal places and the locale's currency code,
// for example "USD 1,234.50" or "EUR 1.234,50".
func (f *Formatter) Format(amount decimal.Decimal, locale string) string {
	lf := f.lookup(locale)
	v, _ := amount.Round(2).Float64()
	return lf.printer.Sprintf("%s %v", lf.unit.String(), number.Decimal(v, number.Scale(2)))
}

// Locale picks the preferred locale from an Accept-Language header. It returns
// the fallback locale when the header is empty or unparsable.
func (f *Formatter) Locale(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return f.fallback.String()
	}
	return tags[0].String()
}

// Len reports how many locales are cached.
func (f *Formatter) Len() int {
	return f.cache.Len()
}
