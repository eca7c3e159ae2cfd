package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/kraabmod/profiles-service/internal/database"
	"github.com/kraabmod/profiles-service/internal/domain"
	"github.com/kraabmod/profiles-service/internal/slug"
)

// Predefined errors for store operations
var (
	ErrProfileNotFound  = errors.New("store: profile not found")
	ErrSlugExists       = errors.New("store: profile slug already exists")
	ErrCategoryNotFound = errors.New("store: category does not exist")
	ErrMissingSlugTitle = errors.New("store: english title is required to generate a slug")
)

const slugConstraint = "profiles_slug_key"

// DB is the part of the connection manager the store depends on.
type DB interface {
	database.Executor
	database.Transactor
}

// PostgresStore implements ProfileStorer on top of the connection manager.
type PostgresStore struct {
	db      DB
	newID   func() string
	newSlug func(title string) string
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		newID:   uuid.NewString,
		newSlug: slug.Generate,
	}
}

// categoryColumn picks the category display name for locale.
func categoryColumn(locale string) string {
	if locale == "fi" {
		return "c.name_fi"
	}
	return "c.name_en"
}

// selectProfileView is shared by list and get. The translation join is
// restricted to one locale, so profiles without that translation still come
// back with null translation columns.
func selectProfileView(locale string) string {
	return fmt.Sprintf(`
		SELECT
			p.id, p.slug, p.images, p.price_list, p.videos, p.price, p.parameters_image,
			pt.locale, pt.title, pt.description, pt.full_description, pt.type,
			pt.product_variants, pt.section_type, pt.description_section, pt.configuration, pt.characteristics,
			%s AS category,
			c.id AS category_id
		FROM profiles p
		LEFT JOIN profile_translations pt ON pt.profile_id = p.id AND pt.locale = $1
		LEFT JOIN categories c ON c.id = p.category_id`, categoryColumn(locale))
}

func viewFromRow(row database.Row) domain.ProfileView {
	return domain.ProfileView{
		ID:                 row.String("id"),
		Slug:               row.String("slug"),
		Images:             row.JSON("images"),
		PriceList:          row.JSON("price_list"),
		Videos:             row.JSON("videos"),
		Price:              row.JSON("price"),
		ParametersImage:    row.JSON("parameters_image"),
		Locale:             row.StringPtr("locale"),
		Title:              row.StringPtr("title"),
		Description:        row.StringPtr("description"),
		FullDescription:    row.StringPtr("full_description"),
		Type:               row.StringPtr("type"),
		ProductVariants:    row.JSON("product_variants"),
		SectionType:        row.JSON("section_type"),
		DescriptionSection: row.JSON("description_section"),
		Configuration:      row.JSON("configuration"),
		Characteristics:    row.JSON("characteristics"),
		Category:           row.StringPtr("category"),
		CategoryID:         row.StringPtr("category_id"),
	}
}

// ListProfiles returns the profiles joined with their params.Locale translation,
// newest first. No match yields an empty, non-nil slice.
func (s *PostgresStore) ListProfiles(ctx context.Context, params ListProfilesParams) ([]domain.ProfileView, error) {
	args := []any{params.Locale}
	argID := 2

	var filters []string
	if params.CategoryID != nil {
		filters = append(filters, fmt.Sprintf("p.category_id = $%d", argID))
		args = append(args, *params.CategoryID)
		argID++
	}

	query := selectProfileView(params.Locale)
	if len(filters) > 0 {
		query += "\n\t\tWHERE " + strings.Join(filters, " AND ")
	}
	query += "\n\t\tORDER BY p.created_at DESC"

	rows, err := s.db.Select(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: ListProfiles failed: %w", err)
	}

	profiles := make([]domain.ProfileView, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, viewFromRow(row))
	}
	return profiles, nil
}

// GetProfileByID returns ErrProfileNotFound when no profile has id.
func (s *PostgresStore) GetProfileByID(ctx context.Context, id, locale string) (*domain.ProfileView, error) {
	return s.getProfile(ctx, "p.id", id, locale)
}

// GetProfileBySlug returns ErrProfileNotFound when no profile has slug.
func (s *PostgresStore) GetProfileBySlug(ctx context.Context, slug, locale string) (*domain.ProfileView, error) {
	return s.getProfile(ctx, "p.slug", slug, locale)
}

func (s *PostgresStore) getProfile(ctx context.Context, column, key, locale string) (*domain.ProfileView, error) {
	query := selectProfileView(locale) + fmt.Sprintf("\n\t\tWHERE %s = $2", column)

	row, err := s.db.SelectOne(ctx, query, locale, key)
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("store: get profile by %s failed: %w", column, err)
	}
	view := viewFromRow(row)
	return &view, nil
}

const insertProfileQuery = `
		INSERT INTO profiles (id, slug, category_id, price_list, videos, images, price, parameters_image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, slug, created_at`

const insertTranslationQuery = `
		INSERT INTO profile_translations
			(id, profile_id, locale, title, description, full_description, type,
			 product_variants, section_type, description_section, configuration, characteristics)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// CreateProfile inserts the profile and one translation row per locale that
// has a title. Everything runs in one transaction: on any failure nothing is
// stored.
func (s *PostgresStore) CreateProfile(ctx context.Context, np *domain.NewProfile) (*domain.Profile, error) {
	en, ok := np.Translations[domain.SlugLocale]
	if !ok || en.Title == "" {
		return nil, ErrMissingSlugTitle
	}

	profile := &domain.Profile{
		ID:              s.newID(),
		Slug:            s.newSlug(en.Title),
		CategoryID:      np.CategoryID,
		Images:          np.Images,
		PriceList:       np.PriceList,
		Videos:          np.Videos,
		Price:           np.Price,
		ParametersImage: np.ParametersImage,
	}

	err := s.db.WithTx(ctx, func(tx database.Executor) error {
		rows, err := tx.Insert(ctx, insertProfileQuery,
			profile.ID,
			profile.Slug,
			profile.CategoryID,
			jsonArg(profile.PriceList),
			jsonArg(profile.Videos),
			jsonArg(profile.Images),
			jsonArg(profile.Price),
			jsonArg(profile.ParametersImage),
		)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return errors.New("store: profile insert returned no rows")
		}
		profile.CreatedAt = rows[0].Time("created_at")

		for _, locale := range slices.Sorted(maps.Keys(np.Translations)) {
			t := np.Translations[locale]
			if t.Title == "" {
				continue
			}
			if _, err := tx.Insert(ctx, insertTranslationQuery,
				s.newID(),
				profile.ID,
				locale,
				t.Title,
				t.Description,
				nullString(t.FullDescription),
				nullString(t.Type),
				jsonArg(t.ProductVariants),
				jsonArg(t.SectionType),
				jsonArg(t.DescriptionSection),
				jsonArg(t.Configuration),
				jsonArg(t.Characteristics),
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, classifyWriteError("CreateProfile", err)
	}
	return profile, nil
}

// UpdateProfile writes only the fields present in patch. A nonexistent id is
// not an error. A locale that has no translation row yet gets one inserted when
// the patch carries its title.
func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, patch *domain.ProfilePatch) error {
	err := s.db.WithTx(ctx, func(tx database.Executor) error {
		var a assignments
		addText(&a, "slug", patch.Slug)
		addText(&a, "category_id", patch.CategoryID)
		addJSON(&a, "images", patch.Images)
		addJSON(&a, "price_list", patch.PriceList)
		addJSON(&a, "videos", patch.Videos)
		addJSON(&a, "price", patch.Price)
		addJSON(&a, "parameters_image", patch.ParametersImage)

		if !a.empty() {
			query := fmt.Sprintf(`UPDATE profiles SET %s WHERE id = $%d`, a.set(), a.next())
			if _, err := tx.Update(ctx, query, append(a.args, id)...); err != nil {
				return err
			}
		}

		for _, locale := range slices.Sorted(maps.Keys(patch.Translations)) {
			if err := s.updateTranslation(ctx, tx, id, locale, patch.Translations[locale]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return classifyWriteError("UpdateProfile", err)
	}
	return nil
}

func (s *PostgresStore) updateTranslation(ctx context.Context, tx database.Executor, profileID, locale string, tp domain.TranslationPatch) error {
	var a assignments
	addText(&a, "title", tp.Title)
	addText(&a, "description", tp.Description)
	addText(&a, "full_description", tp.FullDescription)
	addText(&a, "type", tp.Type)
	addJSON(&a, "product_variants", tp.ProductVariants)
	addJSON(&a, "section_type", tp.SectionType)
	addJSON(&a, "description_section", tp.DescriptionSection)
	addJSON(&a, "configuration", tp.Configuration)
	addJSON(&a, "characteristics", tp.Characteristics)
	if a.empty() {
		return nil
	}

	argID := a.next()
	query := fmt.Sprintf(`UPDATE profile_translations SET %s WHERE profile_id = $%d AND locale = $%d`,
		a.set(), argID, argID+1)
	updated, err := tx.Update(ctx, query, append(a.args, profileID, locale)...)
	if err != nil || updated {
		return err
	}
	if !tp.Title.Present || tp.Title.Null || tp.Title.Value == "" {
		return nil
	}

	// No row for this locale yet; add one unless the profile itself is missing.
	if _, err := tx.SelectOne(ctx, `SELECT 1 FROM profiles WHERE id = $1`, profileID); err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return nil
		}
		return err
	}
	columns := append([]string{"id", "profile_id", "locale"}, a.columns...)
	args := append([]any{s.newID(), profileID, locale}, a.args...)
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	insert := fmt.Sprintf(`INSERT INTO profile_translations (%s) VALUES (%s)`,
		strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	_, err = tx.Insert(ctx, insert, args...)
	return err
}

// DeleteProfile removes the profile; its translations go with it through the
// ON DELETE CASCADE foreign key.
func (s *PostgresStore) DeleteProfile(ctx context.Context, id string) error {
	deleted, err := s.db.Delete(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: DeleteProfile failed: %w", err)
	}
	if !deleted {
		return ErrProfileNotFound
	}
	return nil
}

func classifyWriteError(op string, err error) error {
	switch {
	case database.IsUniqueViolation(err, slugConstraint):
		return ErrSlugExists
	case database.IsForeignKeyViolation(err):
		return ErrCategoryNotFound
	default:
		return fmt.Errorf("store: %s failed: %w", op, err)
	}
}

// assignments accumulates "column = $n" pairs with their arguments.
type assignments struct {
	columns []string
	args    []any
}

func (a *assignments) add(column string, value any) {
	a.columns = append(a.columns, column)
	a.args = append(a.args, value)
}

func (a *assignments) empty() bool { return len(a.columns) == 0 }

// next is the placeholder index following the last assignment.
func (a *assignments) next() int { return len(a.args) + 1 }

func (a *assignments) set() string {
	parts := make([]string, len(a.columns))
	for i, c := range a.columns {
		parts[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	return strings.Join(parts, ", ")
}

func addText(a *assignments, column string, f domain.Field[string]) {
	if !f.Present {
		return
	}
	if f.Null {
		a.add(column, nil)
		return
	}
	a.add(column, f.Value)
}

func addJSON(a *assignments, column string, f domain.Field[json.RawMessage]) {
	if !f.Present {
		return
	}
	a.add(column, jsonArg(f.Value))
}

// jsonArg converts a JSON document into a JSONB parameter. lib/pq sends []byte
// as bytea, so the document goes over the wire as text; empty and null become SQL NULL.
func jsonArg(raw json.RawMessage) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return string(trimmed)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
