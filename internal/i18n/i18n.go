// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package i18n localizes the texts the service sends to users.
package i18n

import (
	"context"
	"embed"
	"io/fs"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed translations/*.toml
var translationFS embed.FS

// Supported lists the available languages; the first one is the fallback.
var Supported = []language.Tag{language.English, language.German}

var (
	bundle  *i18n.Bundle
	matcher = language.NewMatcher(Supported)
)

type localeContextKey struct{}
type localizerContextKey struct{}

// Init loads the embedded translation files.
func Init() error {
	b := i18n.NewBundle(Supported[0])
	b.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := fs.Glob(translationFS, "translations/active.*.toml")
	if err != nil {
		return err
	}
	for _, file := range files {
		if _, err := b.LoadMessageFileFS(translationFS, file); err != nil {
			return err
		}
	}

	bundle = b
	return nil
}

// WithLocale stores the locale and a matching localizer in ctx.
func WithLocale(ctx context.Context, lang language.Tag) context.Context {
	locale := lang.String()
	ctx = context.WithValue(ctx, localeContextKey{}, locale)
	return context.WithValue(ctx, localizerContextKey{}, i18n.NewLocalizer(bundle, locale))
}

// WithLocaleString is WithLocale for a stored locale string such as "de".
func WithLocaleString(ctx context.Context, locale string) context.Context {
	return WithLocale(ctx, MatchLanguage(locale))
}

// GetLocale returns the current locale from context.
func GetLocale(ctx context.Context) string {
	if locale, ok := ctx.Value(localeContextKey{}).(string); ok {
		return locale
	}
	return Supported[0].String()
}

// T translates a message by ID. Unknown IDs are returned unchanged.
func T(ctx context.Context, messageID string) string {
	return TData(ctx, messageID, nil)
}

// TData translates a message with template data.
func TData(ctx context.Context, messageID string, data map[string]any) string {
	msg, err := localizer(ctx).Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}

// MatchLanguage picks the best supported language for an Accept-Language value.
func MatchLanguage(acceptLanguage string) language.Tag {
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	base, _ := tag.Base()
	return language.Make(base.String())
}

func localizer(ctx context.Context) *i18n.Localizer {
	if l, ok := ctx.Value(localizerContextKey{}).(*i18n.Localizer); ok {
		return l
	}
	return i18n.NewLocalizer(bundle, Supported[0].String())
}
