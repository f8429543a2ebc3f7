// Package i18n renders message keys into user-facing text.
package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/khanhbq56/money-tracking/internal/apperr"
)

// DefaultLocale is used for keys a catalog does not define.
const DefaultLocale = "en"

//go:embed locales/*.yaml
var locales embed.FS

// Translator looks up a message by key. Params replace {name} placeholders.
type Translator interface {
	T(key string, params map[string]any) string
}

// Catalog is the message set of one locale.
type Catalog struct {
	locale   string
	messages map[string]string
	fallback *Catalog
}

// Parse reads a flat YAML map of key to message.
func Parse(locale string, data []byte) (*Catalog, error) {
	var messages map[string]string
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parsing %s catalog: %w", locale, err)
	}
	return &Catalog{locale: locale, messages: messages}, nil
}

// Load returns the embedded catalog for locale. Catalogs other than the
// default fall back to it for missing keys.
func Load(locale string) (*Catalog, error) {
	c, err := load(locale)
	if err != nil {
		return nil, err
	}
	if locale != DefaultLocale {
		fb, err := load(DefaultLocale)
		if err != nil {
			return nil, err
		}
		c.fallback = fb
	}
	return c, nil
}

func load(locale string) (*Catalog, error) {
	data, err := locales.ReadFile("locales/" + locale + ".yaml")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("unsupported locale %q (available: %s)", locale, strings.Join(Locales(), ", "))
		}
		return nil, fmt.Errorf("reading %s catalog: %w", locale, err)
	}
	return Parse(locale, data)
}

// Locales lists the embedded locales.
func Locales() []string {
	entries, _ := locales.ReadDir("locales")
	var out []string
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(out)
	return out
}

// Locale returns the catalog's locale.
func (c *Catalog) Locale() string { return c.locale }

// T renders key. Unknown keys render as the key itself.
func (c *Catalog) T(key string, params map[string]any) string {
	msg, ok := c.lookup(key)
	if !ok {
		return key
	}
	if len(params) == 0 {
		return msg
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, 2*len(names))
	for _, name := range names {
		pairs = append(pairs, "{"+name+"}", fmt.Sprint(params[name]))
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

func (c *Catalog) lookup(key string) (string, bool) {
	if msg, ok := c.messages[key]; ok {
		return msg, true
	}
	if c.fallback != nil {
		return c.fallback.lookup(key)
	}
	return "", false
}

// ErrorMessage renders err through its kind's message key.
func ErrorMessage(t Translator, err error) string {
	if err == nil {
		return ""
	}
	detail := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) && e.Message != "" {
		detail = e.Message
		if e.Field != "" {
			detail = e.Field + ": " + detail
		}
	}
	return t.T(apperr.KindOf(err).MessageKey(), map[string]any{"detail": detail})
}
