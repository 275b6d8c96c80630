package locale

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var defaultMessages []byte

// Catalog maps languages and keys to message templates.
type Catalog struct {
	messages map[Lang]map[Key]string
	fallback Lang
}

// Default returns the embedded catalog. It panics only if the embedded file is
// malformed, which TestDefaultCatalogComplete guards against.
func Default() *Catalog {
	catalog, err := Load(defaultMessages, RU)
	if err != nil {
		panic(fmt.Sprintf("locale: embedded catalog: %v", err))
	}
	return catalog
}

// Load parses a YAML catalog and verifies every supported language defines every key.
func Load(data []byte, fallback Lang) (*Catalog, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	messages := make(map[Lang]map[Key]string, len(raw))
	for code, entries := range raw {
		lang, ok := Parse(code)
		if !ok {
			return nil, fmt.Errorf("catalog: unsupported language %q", code)
		}
		table := make(map[Key]string, len(entries))
		for key, text := range entries {
			table[Key(key)] = text
		}
		messages[lang] = table
	}

	var missing []string
	for _, lang := range Supported {
		table, ok := messages[lang]
		if !ok {
			missing = append(missing, string(lang)+".*")
			continue
		}
		for _, key := range AllKeys {
			if strings.TrimSpace(table[key]) == "" {
				missing = append(missing, string(lang)+"."+string(key))
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("catalog: missing messages: %s", strings.Join(missing, ", "))
	}
	if !fallback.Valid() {
		fallback = RU
	}
	return &Catalog{messages: messages, fallback: fallback}, nil
}

// Text renders key in lang, substituting {name} placeholders from vars.
func (c *Catalog) Text(lang Lang, key Key, vars map[string]string) string {
	table, ok := c.messages[lang]
	if !ok {
		table = c.messages[c.fallback]
	}
	text, ok := table[key]
	if !ok {
		return string(key)
	}
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// TextAll renders key in every supported language, separated by a blank line.
func (c *Catalog) TextAll(key Key, vars map[string]string) string {
	parts := make([]string, 0, len(Supported))
	for _, lang := range Supported {
		parts = append(parts, c.Text(lang, key, vars))
	}
	return strings.Join(parts, "\n\n")
}
