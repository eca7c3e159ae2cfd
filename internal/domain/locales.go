package domain

import "slices"

// SupportedLocales is every locale a translation may be stored in.
var SupportedLocales = []string{"en", "fi", "sv", "ru"}

// RequiredLocales must all be present when a profile is created. It must
// contain "en": the slug is derived from the English title.
var RequiredLocales = []string{"en", "fi"}

// RequiredFields must be non-empty in every required locale at creation.
var RequiredFields = []string{"title", "full_description", "type"}

// SlugLocale is the locale whose title the slug is generated from.
const SlugLocale = "en"

// IsSupportedLocale reports whether locale is in SupportedLocales.
func IsSupportedLocale(locale string) bool {
	return slices.Contains(SupportedLocales, locale)
}
