package domain

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrInvalidPatch is wrapped by every ParseProfilePatch error.
var ErrInvalidPatch = errors.New("invalid update payload")

var jsonNull = []byte("null")

// Field is one member of a partial update. It tells apart a key that was not
// sent, a key sent as null and a key sent with a value, so zero values such
// as 0 or "" are still written.
type Field[T any] struct {
	Value   T
	Present bool
	Null    bool
}

// Set builds a present, non-null field.
func Set[T any](v T) Field[T] {
	return Field[T]{Value: v, Present: true}
}

// Null builds a field that was sent as JSON null.
func Null[T any]() Field[T] {
	return Field[T]{Present: true, Null: true}
}

func decodeField[T any](obj map[string]json.RawMessage, key string) (Field[T], error) {
	var f Field[T]
	raw, ok := obj[key]
	if !ok {
		return f, nil
	}
	f.Present = true
	if bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		f.Null = true
		return f, nil
	}
	if err := json.Unmarshal(raw, &f.Value); err != nil {
		return f, fmt.Errorf("%w: field %q: %v", ErrInvalidPatch, key, err)
	}
	return f, nil
}

// TranslationPatch lists the per-locale fields of an update.
type TranslationPatch struct {
	Title              Field[string]
	Description        Field[string]
	FullDescription    Field[string]
	Type               Field[string]
	ProductVariants    Field[json.RawMessage]
	SectionType        Field[json.RawMessage]
	DescriptionSection Field[json.RawMessage]
	Configuration      Field[json.RawMessage]
	Characteristics    Field[json.RawMessage]
}

// ProfilePatch is a parsed PATCH /api/profiles/{id} body.
type ProfilePatch struct {
	Slug            Field[string]
	CategoryID      Field[string]
	Images          Field[json.RawMessage]
	PriceList       Field[json.RawMessage]
	Videos          Field[json.RawMessage]
	Price           Field[json.RawMessage]
	ParametersImage Field[json.RawMessage]

	Translations map[string]TranslationPatch
}

// ParseProfilePatch decodes an update body. Keys that are not sent stay
// absent; unknown keys are ignored.
func ParseProfilePatch(body []byte) (*ProfilePatch, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: body must be an object", ErrInvalidPatch)
	}

	p := &ProfilePatch{}
	var err error
	if p.Slug, err = decodeField[string](obj, "slug"); err != nil {
		return nil, err
	}
	if p.CategoryID, err = decodeField[string](obj, "category_id"); err != nil {
		return nil, err
	}
	for key, dst := range map[string]*Field[json.RawMessage]{
		"images":           &p.Images,
		"price_list":       &p.PriceList,
		"videos":           &p.Videos,
		"price":            &p.Price,
		"parameters_image": &p.ParametersImage,
	} {
		if *dst, err = decodeField[json.RawMessage](obj, key); err != nil {
			return nil, err
		}
	}

	raw, ok := obj["translations"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return p, nil
	}
	var locales map[string]json.RawMessage
	if err := json.Unmarshal(raw, &locales); err != nil {
		return nil, fmt.Errorf("%w: translations must be an object", ErrInvalidPatch)
	}
	p.Translations = make(map[string]TranslationPatch, len(locales))
	for locale, rawLocale := range locales {
		tp, err := parseTranslationPatch(locale, rawLocale)
		if err != nil {
			return nil, err
		}
		p.Translations[locale] = tp
	}
	return p, nil
}

func parseTranslationPatch(locale string, raw json.RawMessage) (TranslationPatch, error) {
	var tp TranslationPatch
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return tp, fmt.Errorf("%w: translation for locale %s must be an object", ErrInvalidPatch, locale)
	}

	var err error
	for key, dst := range map[string]*Field[string]{
		"title":            &tp.Title,
		"description":      &tp.Description,
		"full_description": &tp.FullDescription,
		"type":             &tp.Type,
	} {
		if *dst, err = decodeField[string](obj, key); err != nil {
			return tp, err
		}
	}
	for key, dst := range map[string]*Field[json.RawMessage]{
		"product_variants":    &tp.ProductVariants,
		"section_type":        &tp.SectionType,
		"description_section": &tp.DescriptionSection,
		"configuration":       &tp.Configuration,
		"characteristics":     &tp.Characteristics,
	} {
		if *dst, err = decodeField[json.RawMessage](obj, key); err != nil {
			return tp, err
		}
	}
	return tp, nil
}
