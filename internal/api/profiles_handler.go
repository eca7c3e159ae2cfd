package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/kraabmod/profiles-service/internal/domain"
	"github.com/kraabmod/profiles-service/internal/logging"
	"github.com/kraabmod/profiles-service/internal/store"
)

const maxJSONBodyBytes = 5 << 20

// readLocale validates the required locale query parameter. It writes the 400
// response itself and reports false when the request must stop.
func readLocale(w http.ResponseWriter, r *http.Request) (string, bool) {
	locale := r.URL.Query().Get("locale")
	if locale == "" {
		respondWithError(w, http.StatusBadRequest, "locale is required")
		return "", false
	}
	if !domain.IsSupportedLocale(locale) {
		respondWithError(w, http.StatusBadRequest, "Unsupported locale: "+locale)
		return "", false
	}
	return locale, true
}

// profileID returns the id path parameter and whether it can name a profile.
// Ids are UUIDs, so anything else is answered as a missing profile without
// reaching the store.
func (h *HTTPHandler) profileID(r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	return id, h.validate.Var(id, "required,uuid") == nil
}

// --- Profile Handlers ---

func (h *HTTPHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	locale, ok := readLocale(w, r)
	if !ok {
		return
	}

	params := store.ListProfilesParams{Locale: locale}
	if values := r.URL.Query()["categoryId"]; len(values) > 0 {
		categoryID := values[0]
		if len(values) > 1 || h.validate.Var(categoryID, "omitempty,uuid") != nil {
			respondWithError(w, http.StatusBadRequest, "categoryId must be a string (UUID)")
			return
		}
		if categoryID != "" {
			params.CategoryID = &categoryID
		}
	}

	profiles, err := h.profileStore.ListProfiles(r.Context(), params)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("locale", locale).Msg("ListProfiles store operation failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve profiles")
		return
	}
	if profiles == nil {
		profiles = []domain.ProfileView{}
	}

	respondWithJSON(w, http.StatusOK, profiles)
}

func (h *HTTPHandler) GetProfileByID(w http.ResponseWriter, r *http.Request) {
	id, validID := h.profileID(r)
	locale, ok := readLocale(w, r)
	if !ok {
		return
	}
	if !validID {
		respondWithError(w, http.StatusNotFound, "Profile not found")
		return
	}

	profile, err := h.profileStore.GetProfileByID(r.Context(), id, locale)
	h.respondWithProfile(w, r, profile, err)
}

func (h *HTTPHandler) GetProfileBySlug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		respondWithError(w, http.StatusBadRequest, "slug is required")
		return
	}
	locale, ok := readLocale(w, r)
	if !ok {
		return
	}

	profile, err := h.profileStore.GetProfileBySlug(r.Context(), slug, locale)
	h.respondWithProfile(w, r, profile, err)
}

func (h *HTTPHandler) respondWithProfile(w http.ResponseWriter, r *http.Request, profile *domain.ProfileView, err error) {
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			respondWithError(w, http.StatusNotFound, "Profile not found")
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("GetProfile store operation failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve profile")
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}

// ProfileCreateInput defines the expected input for creating a profile.
// Translations are validated by hand so the error names the locale and field.
type ProfileCreateInput struct {
	Translations    json.RawMessage `json:"translations"`
	CategoryID      *string         `json:"category_id" validate:"omitempty,uuid"`
	Images          json.RawMessage `json:"images"`
	PriceList       json.RawMessage `json:"price_list"`
	Videos          json.RawMessage `json:"videos"`
	Price           json.RawMessage `json:"price"`
	ParametersImage json.RawMessage `json:"parameters_image"`
}

// ProfileCreatedResponse is the body of a successful create.
type ProfileCreatedResponse struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}

func (h *HTTPHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var input ProfileCreateInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	translations, msg := parseTranslations(input.Translations)
	if msg != "" {
		respondWithError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	created, err := h.profileStore.CreateProfile(r.Context(), &domain.NewProfile{
		CategoryID:      input.CategoryID,
		Images:          input.Images,
		PriceList:       input.PriceList,
		Videos:          input.Videos,
		Price:           input.Price,
		ParametersImage: input.ParametersImage,
		Translations:    translations,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrSlugExists):
			respondWithError(w, http.StatusConflict, "Profile slug already exists")
		case errors.Is(err, store.ErrCategoryNotFound):
			respondWithError(w, http.StatusBadRequest, "Unknown category_id")
		default:
			logging.Ctx(r.Context()).Error().Err(err).Msg("CreateProfile store operation failed")
			respondWithError(w, http.StatusInternalServerError, "Failed to create profile")
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, ProfileCreatedResponse{ID: created.ID, Slug: created.Slug})
}

// parseTranslations checks the translations object in this order: it must be
// an object; every required locale must be an object carrying every required
// field; every other locale must be supported. The returned message is empty
// when the input is valid.
func parseTranslations(raw json.RawMessage) (map[string]domain.TranslationInput, string) {
	if !isJSONObject(raw) {
		return nil, "translations are required"
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, "translations are required"
	}

	translations := make(map[string]domain.TranslationInput, len(entries))
	for _, locale := range domain.RequiredLocales {
		entry, ok := entries[locale]
		if !ok || !isJSONObject(entry) {
			return nil, "Missing translation for locale: " + locale
		}
		var t domain.TranslationInput
		if err := json.Unmarshal(entry, &t); err != nil {
			return nil, "Invalid translation for locale: " + locale
		}
		for _, field := range domain.RequiredFields {
			if t.Field(field) == "" {
				return nil, fmt.Sprintf("Missing field %q in locale: %s", field, locale)
			}
		}
		translations[locale] = t
	}

	for locale, entry := range entries {
		if _, done := translations[locale]; done {
			continue
		}
		if !domain.IsSupportedLocale(locale) {
			return nil, "Unsupported locale: " + locale
		}
		var t domain.TranslationInput
		if !isJSONObject(entry) || json.Unmarshal(entry, &t) != nil {
			return nil, "Invalid translation for locale: " + locale
		}
		translations[locale] = t
	}
	return translations, ""
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func (h *HTTPHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, validID := h.profileID(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	patch, err := domain.ParseProfilePatch(body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := h.validatePatch(patch); msg != "" {
		respondWithError(w, http.StatusBadRequest, msg)
		return
	}

	// Success is reported even when no row matched id.
	if !validID {
		respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Profile updated successfully"})
		return
	}

	if err := h.profileStore.UpdateProfile(r.Context(), id, patch); err != nil {
		switch {
		case errors.Is(err, store.ErrSlugExists):
			respondWithError(w, http.StatusConflict, "Profile slug already exists")
		case errors.Is(err, store.ErrCategoryNotFound):
			respondWithError(w, http.StatusBadRequest, "Unknown category_id")
		default:
			logging.Ctx(r.Context()).Error().Err(err).Str("profile_id", id).Msg("UpdateProfile store operation failed")
			respondWithError(w, http.StatusInternalServerError, "Failed to update profile")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Profile updated successfully"})
}

func (h *HTTPHandler) validatePatch(p *domain.ProfilePatch) string {
	if p.Slug.Present && (p.Slug.Null || p.Slug.Value == "") {
		return "slug cannot be empty"
	}
	if p.CategoryID.Present && !p.CategoryID.Null && h.validate.Var(p.CategoryID.Value, "uuid") != nil {
		return "category_id must be a UUID"
	}
	for locale, t := range p.Translations {
		if !domain.IsSupportedLocale(locale) {
			return "Unsupported locale: " + locale
		}
		if t.Title.Present && (t.Title.Null || t.Title.Value == "") {
			return "Missing field \"title\" in locale: " + locale
		}
	}
	return ""
}

// DeleteProfileResponse reports the outcome of a delete.
type DeleteProfileResponse struct {
	Message    string `json:"message"`
	Successful bool   `json:"successful"`
}

func (h *HTTPHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, validID := h.profileID(r)
	if !validID {
		respondWithJSON(w, http.StatusNotFound, DeleteProfileResponse{Message: "Profile not found", Successful: false})
		return
	}

	err := h.profileStore.DeleteProfile(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			respondWithJSON(w, http.StatusNotFound, DeleteProfileResponse{Message: "Profile not found", Successful: false})
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Str("profile_id", id).Msg("DeleteProfile store operation failed")
		respondWithError(w, http.StatusInternalServerError, "Failed to delete profile")
		return
	}

	respondWithJSON(w, http.StatusOK, DeleteProfileResponse{Message: "Profile deleted successfully", Successful: true})
}
