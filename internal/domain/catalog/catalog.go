// Package catalog holds the static copy of the product: item labels per
// locale, progress messages, archive naming and theme presets. The data is
// embedded as YAML so copy changes never touch code.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"partykit/internal/domain"
)

//go:embed catalog.yaml
var embedded []byte

// Messages is the user-facing copy of one locale.
type Messages struct {
	Preparing    string `yaml:"preparing"`
	Creating     string `yaml:"creating"`
	Complete     string `yaml:"complete"`
	RunFailed    string `yaml:"run_failed"`
	ExportFailed string `yaml:"export_failed"`
}

// CreatingStep renders the per-item progress message.
func (m Messages) CreatingStep(label string) string {
	if strings.Contains(m.Creating, "%s") {
		return fmt.Sprintf(m.Creating, label)
	}
	return strings.TrimSpace(m.Creating + " " + label)
}

// ArchiveNaming controls the folder and filename of exported kits.
type ArchiveNaming struct {
	Folder    string `yaml:"folder"`
	Prefix    string `yaml:"prefix"`
	AgePrefix string `yaml:"age_prefix"`
}

// Theme is a preset party theme.
type Theme struct {
	Name      string `yaml:"name" json:"name"`
	Primary   string `yaml:"primary" json:"primary"`
	Secondary string `yaml:"secondary" json:"secondary"`
	Accent    string `yaml:"accent" json:"accent"`
	Prompt    string `yaml:"prompt" json:"prompt"`
}

type localeData struct {
	Items    map[domain.ItemType]string `yaml:"items"`
	Messages Messages                   `yaml:"messages"`
	Archive  ArchiveNaming              `yaml:"archive"`
}

type document struct {
	DefaultLocale string                `yaml:"default_locale"`
	Locales       map[string]localeData `yaml:"locales"`
	Themes        []Theme               `yaml:"themes"`
}

// Catalog is the parsed, validated copy deck.
type Catalog struct {
	defaultLocale string
	locales       map[string]localeData
	tags          []string
	matcher       language.Matcher
	themes        []Theme
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		cat, err := Load(embedded)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded catalog invalid: %v", err))
		}
		defaultCat = cat
	})
	return defaultCat
}

// Load parses and validates a catalog document.
func Load(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if len(doc.Locales) == 0 {
		return nil, errors.New("catalog: no locales defined")
	}
	def := strings.TrimSpace(doc.DefaultLocale)
	if _, ok := doc.Locales[def]; !ok {
		return nil, fmt.Errorf("catalog: default locale %q not defined", def)
	}
	for name, loc := range doc.Locales {
		// Labels name the files inside an archive, so they must differ.
		seen := make(map[string]domain.ItemType, domain.KitSize)
		for _, t := range domain.ItemTypes() {
			label := strings.TrimSpace(loc.Items[t])
			if label == "" {
				return nil, fmt.Errorf("catalog: locale %s: missing label for %s", name, t)
			}
			key := strings.ToLower(strings.Join(strings.Fields(label), " "))
			if prev, dup := seen[key]; dup {
				return nil, fmt.Errorf("catalog: locale %s: %s and %s share label %q", name, prev, t, label)
			}
			seen[key] = t
		}
		if loc.Archive.Folder == "" || loc.Archive.Prefix == "" {
			return nil, fmt.Errorf("catalog: locale %s: archive naming incomplete", name)
		}
	}

	// The matcher falls back to its first tag, so the default locale leads.
	tags := []string{def}
	var rest []string
	for name := range doc.Locales {
		if name != def {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	tags = append(tags, rest...)

	langTags := make([]language.Tag, len(tags))
	for i, name := range tags {
		tag, err := language.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("catalog: locale %q: %w", name, err)
		}
		langTags[i] = tag
	}

	return &Catalog{
		defaultLocale: def,
		locales:       doc.Locales,
		tags:          tags,
		matcher:       language.NewMatcher(langTags),
		themes:        doc.Themes,
	}, nil
}

// DefaultLocale returns the canonical locale of the catalog.
func (c *Catalog) DefaultLocale() string {
	return c.defaultLocale
}

// Locales lists supported locales, default first.
func (c *Catalog) Locales() []string {
	return append([]string(nil), c.tags...)
}

// MatchLocale resolves an arbitrary locale or Accept-Language value to the
// closest supported locale.
func (c *Catalog) MatchLocale(raw ...string) string {
	var prefs []string
	for _, r := range raw {
		if r = strings.TrimSpace(r); r != "" {
			prefs = append(prefs, r)
		}
	}
	if len(prefs) == 0 {
		return c.defaultLocale
	}
	if _, ok := c.locales[prefs[0]]; ok {
		return prefs[0]
	}
	_, idx := language.MatchStrings(c.matcher, prefs...)
	if idx < 0 || idx >= len(c.tags) {
		return c.defaultLocale
	}
	return c.tags[idx]
}

func (c *Catalog) locale(raw string) localeData {
	return c.locales[c.MatchLocale(raw)]
}

// Items returns the eight kit item specs in canonical order, labelled for
// the given locale.
func (c *Catalog) Items(locale string) []domain.KitItemSpec {
	loc := c.locale(locale)
	out := make([]domain.KitItemSpec, 0, domain.KitSize)
	for _, t := range domain.ItemTypes() {
		out = append(out, domain.KitItemSpec{Type: t, Label: loc.Items[t]})
	}
	return out
}

// Label returns the display label of t for the locale.
func (c *Catalog) Label(locale string, t domain.ItemType) string {
	return c.locale(locale).Items[t]
}

// Messages returns the progress and error copy for the locale.
func (c *Catalog) Messages(locale string) Messages {
	return c.locale(locale).Messages
}

// Archive returns archive naming for the locale.
func (c *Catalog) Archive(locale string) ArchiveNaming {
	return c.locale(locale).Archive
}

// Themes returns the preset themes in catalog order.
func (c *Catalog) Themes() []Theme {
	return append([]Theme(nil), c.themes...)
}

// Theme looks up a preset by name, ignoring case and surrounding space.
func (c *Catalog) Theme(name string) (Theme, bool) {
	// Casers are stateful, so each lookup gets its own.
	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(name))
	if want == "" {
		return Theme{}, false
	}
	for _, t := range c.themes {
		if fold.String(t.Name) == want {
			return t, true
		}
	}
	return Theme{}, false
}

// WithDefaultLocale returns a catalog that falls back to locale instead of
// the document default. The locale must be defined.
func (c *Catalog) WithDefaultLocale(locale string) (*Catalog, error) {
	locale = strings.TrimSpace(locale)
	if locale == "" || locale == c.defaultLocale {
		return c, nil
	}
	if _, ok := c.locales[locale]; !ok {
		return nil, fmt.Errorf("catalog: default locale %q not defined", locale)
	}
	tags := []string{locale}
	langTags := []language.Tag{language.Make(locale)}
	for _, t := range c.tags {
		if t != locale {
			tags = append(tags, t)
			langTags = append(langTags, language.Make(t))
		}
	}
	return &Catalog{
		defaultLocale: locale,
		locales:       c.locales,
		tags:          tags,
		matcher:       language.NewMatcher(langTags),
		themes:        c.themes,
	}, nil
}
