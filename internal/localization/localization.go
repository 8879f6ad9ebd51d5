// Package localization resolves message keys to display text.
// Transfer descriptions are built from a key plus ordered arguments; the
// catalog lives in locales/*.toml and is embedded at build time.
package localization

import (
	"embed"
	"fmt"
	"path"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Message keys used by the transfer tracker.
const (
	KeyTransferStart            = "transfer-start"
	KeyTransferProgressUpload   = "transfer-progress-upload"
	KeyTransferProgressDownload = "transfer-progress-download"
	KeyTransferFinishing        = "transfer-finishing"
	KeyTransferPaused           = "transfer-paused"
	KeyTransferCancelling       = "transfer-cancelling"
	KeyTransferError            = "transfer-error"
	KeyTransferFailedGeneric    = "transfer-failed-generic"
)

//go:embed locales/*.toml
var localeFS embed.FS

// Arg is one named template argument. Args are passed as an ordered list
// so callers read like the message they fill.
type Arg struct {
	Key   string
	Value string
}

// Localizer looks up display text. Implementations return the key itself
// when no message exists, so a missing translation is visible but harmless.
type Localizer interface {
	Lookup(key string) string
	LookupWithArgs(key string, args ...Arg) string
}

// Catalog is a go-i18n backed Localizer for one language.
type Catalog struct {
	localizer *i18n.Localizer
	lang      string
}

var (
	bundleOnce sync.Once
	bundle     *i18n.Bundle
	bundleErr  error
)

// loadBundle parses every embedded catalog once.
func loadBundle() (*i18n.Bundle, error) {
	bundleOnce.Do(func() {
		b := i18n.NewBundle(language.English)
		b.RegisterUnmarshalFunc("toml", toml.Unmarshal)

		entries, err := localeFS.ReadDir("locales")
		if err != nil {
			bundleErr = fmt.Errorf("failed to list message catalogs: %w", err)
			return
		}
		for _, entry := range entries {
			name := path.Join("locales", entry.Name())
			data, err := localeFS.ReadFile(name)
			if err != nil {
				bundleErr = fmt.Errorf("failed to read %s: %w", name, err)
				return
			}
			if _, err := b.ParseMessageFileBytes(data, entry.Name()); err != nil {
				bundleErr = fmt.Errorf("failed to parse %s: %w", name, err)
				return
			}
		}
		bundle = b
	})
	return bundle, bundleErr
}

// NewCatalog returns a Catalog for lang (a BCP 47 tag such as "en" or
// "fr-CA"). Unsupported languages fall back to English.
func NewCatalog(lang string) (*Catalog, error) {
	b, err := loadBundle()
	if err != nil {
		return nil, err
	}
	return &Catalog{
		localizer: i18n.NewLocalizer(b, lang, language.English.String()),
		lang:      lang,
	}, nil
}

// MustCatalog is NewCatalog for callers that cannot recover, such as tests
// and package-level defaults. The embedded catalog is part of the binary,
// so a failure here is a build defect.
func MustCatalog(lang string) *Catalog {
	c, err := NewCatalog(lang)
	if err != nil {
		panic(err)
	}
	return c
}

// Language returns the language the catalog was created for.
func (c *Catalog) Language() string {
	return c.lang
}

// Lookup returns the message for key.
func (c *Catalog) Lookup(key string) string {
	return c.LookupWithArgs(key)
}

// LookupWithArgs returns the message for key with args substituted.
func (c *Catalog) LookupWithArgs(key string, args ...Arg) string {
	var data map[string]string
	if len(args) > 0 {
		data = make(map[string]string, len(args))
		for _, a := range args {
			data[a.Key] = a.Value
		}
	}

	msg, err := c.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil || msg == "" {
		return key
	}
	return msg
}

// KeyOnly is a Localizer that renders "key" or "key(k=v, ...)". Useful when
// the text itself does not matter, e.g. in tests asserting on arguments.
type KeyOnly struct{}

func (KeyOnly) Lookup(key string) string { return key }

func (KeyOnly) LookupWithArgs(key string, args ...Arg) string {
	if len(args) == 0 {
		return key
	}
	s := key + "("
	for i, a := range args {
		if i > 0 {
			s += ", "
		}
		s += a.Key + "=" + a.Value
	}
	return s + ")"
}
