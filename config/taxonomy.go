package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

const fallbackLanguage = "en"

// Language is a supported locale
type Language struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Category is an issue category tag with its display label per locale
type Category struct {
	Key    string            `yaml:"key"`
	Labels map[string]string `yaml:"labels"`
}

// Taxonomy is the configuration-supplied set of category tags plus the
// locale string table used to talk to parties.
type Taxonomy struct {
	Languages  []Language                   `yaml:"languages"`
	Categories []Category                   `yaml:"categories"`
	Strings    map[string]map[string]string `yaml:"strings"`

	defaultLanguage string
}

// LoadTaxonomy reads the taxonomy from path, or the embedded default when
// path is empty.
func LoadTaxonomy(path, defaultLanguage string) (*Taxonomy, error) {
	raw := defaultTaxonomy
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read taxonomy: %w", err)
		}
		raw = b
	}
	return ParseTaxonomy(raw, defaultLanguage)
}

// ParseTaxonomy decodes and validates a yaml taxonomy document
func ParseTaxonomy(raw []byte, defaultLanguage string) (*Taxonomy, error) {
	t := &Taxonomy{}
	if err := yaml.Unmarshal(raw, t); err != nil {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}
	if len(t.Categories) == 0 {
		return nil, fmt.Errorf("taxonomy defines no categories")
	}
	seen := make(map[string]bool, len(t.Categories))
	for _, c := range t.Categories {
		if c.Key == "" {
			return nil, fmt.Errorf("taxonomy category without key")
		}
		if seen[c.Key] {
			return nil, fmt.Errorf("duplicate category %q", c.Key)
		}
		seen[c.Key] = true
	}
	if defaultLanguage == "" {
		defaultLanguage = fallbackLanguage
	}
	t.defaultLanguage = defaultLanguage
	return t, nil
}

// DefaultLanguage is the locale used when a party has not chosen one
func (t *Taxonomy) DefaultLanguage() string {
	return t.defaultLanguage
}

// HasLanguage reports whether code is a supported locale
func (t *Taxonomy) HasLanguage(code string) bool {
	for _, l := range t.Languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

// HasCategory reports whether key is a configured category tag
func (t *Taxonomy) HasCategory(key string) bool {
	for _, c := range t.Categories {
		if c.Key == key {
			return true
		}
	}
	return false
}

// CategoryKeys lists the configured tags in file order
func (t *Taxonomy) CategoryKeys() []string {
	keys := make([]string, 0, len(t.Categories))
	for _, c := range t.Categories {
		keys = append(keys, c.Key)
	}
	return keys
}

// Label returns the display label of a category, or the key itself
func (t *Taxonomy) Label(key, lang string) string {
	for _, c := range t.Categories {
		if c.Key == key {
			return t.pick(c.Labels, lang, key)
		}
	}
	return key
}

// Text renders the string for key in lang, replacing {name} placeholders
// with the given name/value pairs.
func (t *Taxonomy) Text(key, lang string, pairs ...string) string {
	s := t.pick(t.Strings[key], lang, key)
	if len(pairs) < 2 {
		return s
	}
	oldnew := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		oldnew = append(oldnew, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(oldnew...).Replace(s)
}

func (t *Taxonomy) pick(values map[string]string, lang, missing string) string {
	for _, l := range []string{lang, t.defaultLanguage, fallbackLanguage} {
		if v, ok := values[l]; ok && v != "" {
			return v
		}
	}
	return missing
}
