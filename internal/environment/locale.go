package environment

import (
	"strings"

	"golang.org/x/text/language"
)

// Locale wraps a BCP 47 language tag, rendered in POSIX form
// (fr-FR becomes fr_FR) to match terminal conventions.
type Locale struct {
	tag language.Tag
}

// ParseLocale parses a locale from either BCP 47 (fr-FR) or POSIX
// (fr_FR) form.
func ParseLocale(s string) (Locale, error) {
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return Locale{}, err
	}
	return Locale{tag: tag}, nil
}

// MustParseLocale is ParseLocale for statically known locales.
func MustParseLocale(s string) Locale {
	l, err := ParseLocale(s)
	if err != nil {
		panic(err)
	}
	return l
}

// Tag returns the underlying language tag.
func (l Locale) Tag() language.Tag { return l.tag }

// IsZero reports whether the locale is unset.
func (l Locale) IsZero() bool { return l.tag == language.Tag{} }

func (l Locale) String() string {
	return strings.ReplaceAll(l.tag.String(), "-", "_")
}
