package domain

import (
	"time"

	"github.com/goccy/go-json"
)

// Category is read-only here; it is managed outside this service.
type Category struct {
	ID     string  `json:"id"`
	NameFI *string `json:"name_fi"`
	NameEN *string `json:"name_en"`
}

// Profile is the locale-independent part of a catalog entry.
// The commercial attributes are arbitrary JSON documents stored as-is.
type Profile struct {
	ID              string          `json:"id"`
	Slug            string          `json:"slug"`
	CategoryID      *string         `json:"category_id,omitempty"`
	Images          json.RawMessage `json:"images,omitempty"`
	PriceList       json.RawMessage `json:"price_list,omitempty"`
	Videos          json.RawMessage `json:"videos,omitempty"`
	Price           json.RawMessage `json:"price,omitempty"`
	ParametersImage json.RawMessage `json:"parameters_image,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ProfileTranslation is the content of a profile in one locale.
type ProfileTranslation struct {
	ID                 string          `json:"id"`
	ProfileID          string          `json:"profile_id"`
	Locale             string          `json:"locale"`
	Title              string          `json:"title"`
	Description        *string         `json:"description"`
	FullDescription    string          `json:"full_description"`
	Type               string          `json:"type"`
	ProductVariants    json.RawMessage `json:"product_variants"`
	SectionType        json.RawMessage `json:"section_type"`
	DescriptionSection json.RawMessage `json:"description_section"`
	Configuration      json.RawMessage `json:"configuration"`
	Characteristics    json.RawMessage `json:"characteristics"`
}

// ProfileView is a profile joined with its translation for one locale and the
// category name in that locale. Translation and category fields are null when
// the joined row is missing.
type ProfileView struct {
	ID              string          `json:"id"`
	Slug            string          `json:"slug"`
	Images          json.RawMessage `json:"images"`
	PriceList       json.RawMessage `json:"price_list"`
	Videos          json.RawMessage `json:"videos"`
	Price           json.RawMessage `json:"price"`
	ParametersImage json.RawMessage `json:"parameters_image"`

	Locale             *string         `json:"locale"`
	Title              *string         `json:"title"`
	Description        *string         `json:"description"`
	FullDescription    *string         `json:"full_description"`
	Type               *string         `json:"type"`
	ProductVariants    json.RawMessage `json:"product_variants"`
	SectionType        json.RawMessage `json:"section_type"`
	DescriptionSection json.RawMessage `json:"description_section"`
	Configuration      json.RawMessage `json:"configuration"`
	Characteristics    json.RawMessage `json:"characteristics"`

	Category   *string `json:"category"`
	CategoryID *string `json:"category_id"`
}

// TranslationInput is one locale entry of a create request.
type TranslationInput struct {
	Title              string          `json:"title"`
	Description        *string         `json:"description"`
	FullDescription    string          `json:"full_description"`
	Type               string          `json:"type"`
	ProductVariants    json.RawMessage `json:"product_variants"`
	SectionType        json.RawMessage `json:"section_type"`
	DescriptionSection json.RawMessage `json:"description_section"`
	Configuration      json.RawMessage `json:"configuration"`
	Characteristics    json.RawMessage `json:"characteristics"`
}

// Field returns the named text field, or "" for unknown names.
func (t TranslationInput) Field(name string) string {
	switch name {
	case "title":
		return t.Title
	case "full_description":
		return t.FullDescription
	case "type":
		return t.Type
	case "description":
		if t.Description != nil {
			return *t.Description
		}
	}
	return ""
}

// NewProfile carries a validated create request to the store.
type NewProfile struct {
	CategoryID      *string
	Images          json.RawMessage
	PriceList       json.RawMessage
	Videos          json.RawMessage
	Price           json.RawMessage
	ParametersImage json.RawMessage
	Translations    map[string]TranslationInput
}
