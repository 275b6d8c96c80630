package locale

import (
	"strings"

	"golang.org/x/text/language"
)

// Lang is a supported interface language.
type Lang string

const (
	RU Lang = "RU"
	EN Lang = "EN"
)

// Supported lists the interface languages in the order they are offered.
var Supported = []Lang{RU, EN}

var tags = map[Lang]language.Tag{
	RU: language.Russian,
	EN: language.English,
}

// Parse resolves a language code, tag, or callback payload to a supported Lang.
func Parse(value string) (Lang, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", false
	}
	tag, err := language.Parse(strings.ReplaceAll(trimmed, "_", "-"))
	if err != nil {
		return "", false
	}
	base, _ := tag.Base()
	for _, lang := range Supported {
		want, _ := tags[lang].Base()
		if base == want {
			return lang, true
		}
	}
	return "", false
}

// Tag returns the BCP 47 tag for the language.
func (l Lang) Tag() language.Tag {
	if tag, ok := tags[l]; ok {
		return tag
	}
	return language.Und
}

// Valid reports whether l is one of the supported languages.
func (l Lang) Valid() bool {
	_, ok := tags[l]
	return ok
}

func (l Lang) String() string {
	return string(l)
}
