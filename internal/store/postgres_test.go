package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/goccy/go-json"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraabmod/profiles-service/internal/config"
	"github.com/kraabmod/profiles-service/internal/database"
	"github.com/kraabmod/profiles-service/internal/domain"
	"github.com/kraabmod/profiles-service/internal/slug"
)

var viewColumns = []string{
	"id", "slug", "images", "price_list", "videos", "price", "parameters_image",
	"locale", "title", "description", "full_description", "type",
	"product_variants", "section_type", "description_section", "configuration", "characteristics",
	"category", "category_id",
}

// Helper function to create a sqlmock-backed connection manager and PostgresStore for testing.
// IDs are handed out as id-1, id-2, ... and slugs get a fixed suffix.
func newMockStore(t *testing.T) (sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")

	cfg := config.PostgresConfig{User: "u", Host: "h", Database: "d", Password: "p", Port: "5432"}
	m, err := database.NewManager(cfg, database.WithOpener(func(config.PostgresConfig) (*sql.DB, error) {
		return db, nil
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewPostgresStore(m)
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	s.newSlug = func(title string) string { return slug.Base(title) + "-abcdef12" }
	return mock, s
}

func PtrTo[T any](v T) *T {
	return &v
}

func TestPostgresStore_ListProfiles(t *testing.T) {
	mock, s := newMockStore(t)

	query := regexp.QuoteMeta("c.name_en AS category") + ".*" +
		regexp.QuoteMeta("LEFT JOIN profile_translations pt ON pt.profile_id = p.id AND pt.locale = $1") + ".*" +
		regexp.QuoteMeta("ORDER BY p.created_at DESC")
	rows := sqlmock.NewRows(viewColumns).
		AddRow("p1", "steel-ceiling-1a2b3c4d", []byte(`["a.jpg"]`), nil, nil, []byte(`12.5`), nil,
			"en", "Steel Ceiling", nil, "Full text", "panel",
			nil, nil, nil, []byte(`{"rows":2}`), nil,
			"Ceilings", "c1").
		AddRow("p2", "untranslated-9f8e7d6c", nil, nil, nil, nil, nil,
			nil, nil, nil, nil, nil,
			nil, nil, nil, nil, nil,
			nil, nil)
	mock.ExpectQuery(query).WithArgs("en").WillReturnRows(rows)

	profiles, err := s.ListProfiles(context.Background(), ListProfilesParams{Locale: "en"})
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	assert.Equal(t, "p1", profiles[0].ID)
	assert.Equal(t, "Steel Ceiling", *profiles[0].Title)
	assert.Equal(t, "Ceilings", *profiles[0].Category)
	assert.JSONEq(t, `12.5`, string(profiles[0].Price))
	assert.JSONEq(t, `{"rows":2}`, string(profiles[0].Configuration))

	assert.Equal(t, "p2", profiles[1].ID)
	assert.Nil(t, profiles[1].Title, "profile without the locale is still listed")
	assert.Nil(t, profiles[1].Category)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProfiles_CategoryFilterFinnish(t *testing.T) {
	mock, s := newMockStore(t)

	query := regexp.QuoteMeta("c.name_fi AS category") + ".*" +
		regexp.QuoteMeta("WHERE p.category_id = $2") + ".*" +
		regexp.QuoteMeta("ORDER BY p.created_at DESC")
	mock.ExpectQuery(query).WithArgs("fi", "c1").WillReturnRows(sqlmock.NewRows(viewColumns))

	profiles, err := s.ListProfiles(context.Background(), ListProfilesParams{Locale: "fi", CategoryID: PtrTo("c1")})
	require.NoError(t, err)
	assert.NotNil(t, profiles)
	assert.Empty(t, profiles)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProfiles_Failure(t *testing.T) {
	mock, s := newMockStore(t)
	mock.ExpectQuery("FROM profiles p").WillReturnError(errors.New("connection reset by peer"))

	profiles, err := s.ListProfiles(context.Background(), ListProfilesParams{Locale: "sv"})
	require.Error(t, err)
	assert.Nil(t, profiles)
	assert.True(t, errors.Is(err, database.ErrExecFailed))
}

func TestPostgresStore_GetProfileByID(t *testing.T) {
	mock, s := newMockStore(t)

	query := regexp.QuoteMeta("c.name_fi AS category") + ".*" + regexp.QuoteMeta("WHERE p.id = $2")
	rows := sqlmock.NewRows(viewColumns).
		AddRow("p1", "steel-ceiling-1a2b3c4d", nil, nil, nil, nil, nil,
			"fi", "Teräskatto", nil, "Koko teksti", "panel",
			nil, nil, nil, nil, nil,
			"Katot", "c1")
	mock.ExpectQuery(query).WithArgs("fi", "p1").WillReturnRows(rows)

	profile, err := s.GetProfileByID(context.Background(), "p1", "fi")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Teräskatto", *profile.Title)
	assert.Equal(t, "Katot", *profile.Category)
	assert.Equal(t, "c1", *profile.CategoryID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProfileByID_NotFound(t *testing.T) {
	mock, s := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.id = $2")).WithArgs("en", "missing").WillReturnRows(sqlmock.NewRows(viewColumns))

	profile, err := s.GetProfileByID(context.Background(), "missing", "en")
	assert.Nil(t, profile)
	assert.True(t, errors.Is(err, ErrProfileNotFound))
}

func TestPostgresStore_GetProfileByID_Failure(t *testing.T) {
	mock, s := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.id = $2")).WillReturnError(errors.New("timeout"))

	profile, err := s.GetProfileByID(context.Background(), "p1", "en")
	assert.Nil(t, profile)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrProfileNotFound))
	assert.True(t, errors.Is(err, database.ErrExecFailed))
}

func TestPostgresStore_GetProfileBySlug(t *testing.T) {
	mock, s := newMockStore(t)

	rows := sqlmock.NewRows(viewColumns).
		AddRow("p1", "steel-ceiling-1a2b3c4d", nil, nil, nil, nil, nil,
			"ru", "Стальной потолок", nil, nil, nil,
			nil, nil, nil, nil, nil,
			nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("c.name_en AS category")+".*"+regexp.QuoteMeta("WHERE p.slug = $2")).
		WithArgs("ru", "steel-ceiling-1a2b3c4d").WillReturnRows(rows)

	profile, err := s.GetProfileBySlug(context.Background(), "steel-ceiling-1a2b3c4d", "ru")
	require.NoError(t, err)
	assert.Equal(t, "p1", profile.ID)
	assert.Nil(t, profile.FullDescription)
	require.NoError(t, mock.ExpectationsWereMet())
}

func newProfileInput() *domain.NewProfile {
	return &domain.NewProfile{
		Images: json.RawMessage(`["a.jpg"]`),
		Price:  json.RawMessage(`0`),
		Translations: map[string]domain.TranslationInput{
			"fi": {Title: "Teräskatto", FullDescription: "Koko", Type: "panel"},
			"en": {Title: "Steel Ceiling", FullDescription: "Full", Type: "panel", Configuration: json.RawMessage(`{"a":1}`)},
			"sv": {Description: PtrTo("no title, skipped")},
		},
	}
}

func TestPostgresStore_CreateProfile(t *testing.T) {
	mock, s := newMockStore(t)
	now := time.Now().Truncate(time.Millisecond)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO profiles (id, slug, category_id, price_list, videos, images, price, parameters_image)")).
		WithArgs("id-1", "steel-ceiling-abcdef12", nil, nil, nil, `["a.jpg"]`, "0", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "created_at"}).AddRow("id-1", "steel-ceiling-abcdef12", now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO profile_translations")).
		WithArgs("id-2", "id-1", "en", "Steel Ceiling", nil, "Full", "panel", nil, nil, nil, `{"a":1}`, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO profile_translations")).
		WithArgs("id-3", "id-1", "fi", "Teräskatto", nil, "Koko", "panel", nil, nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	profile, err := s.CreateProfile(context.Background(), newProfileInput())
	require.NoError(t, err)
	assert.Equal(t, "id-1", profile.ID)
	assert.Equal(t, "steel-ceiling-abcdef12", profile.Slug)
	assert.Equal(t, now, profile.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateProfile_TranslationFailureRollsBack(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO profiles")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "created_at"}).AddRow("id-1", "steel-ceiling-abcdef12", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO profile_translations")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO profile_translations")).
		WillReturnError(errors.New("value too long for type character varying"))
	mock.ExpectRollback()

	profile, err := s.CreateProfile(context.Background(), newProfileInput())
	require.Error(t, err)
	assert.Nil(t, profile)
	assert.True(t, errors.Is(err, database.ErrExecFailed))
	require.NoError(t, mock.ExpectationsWereMet(), "no commit after a failed translation insert")
}

func TestPostgresStore_CreateProfile_SlugCollision(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO profiles")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "profiles_slug_key"})
	mock.ExpectRollback()

	_, err := s.CreateProfile(context.Background(), newProfileInput())
	assert.Equal(t, ErrSlugExists, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateProfile_UnknownCategory(t *testing.T) {
	mock, s := newMockStore(t)
	input := newProfileInput()
	input.CategoryID = PtrTo("9b2f4c8e-0000-4000-8000-000000000000")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO profiles")).
		WithArgs("id-1", "steel-ceiling-abcdef12", *input.CategoryID, nil, nil, `["a.jpg"]`, "0", nil).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "profiles_category_id_fkey"})
	mock.ExpectRollback()

	_, err := s.CreateProfile(context.Background(), input)
	assert.Equal(t, ErrCategoryNotFound, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateProfile_MissingEnglishTitle(t *testing.T) {
	mock, s := newMockStore(t)

	_, err := s.CreateProfile(context.Background(), &domain.NewProfile{
		Translations: map[string]domain.TranslationInput{"fi": {Title: "Teräskatto"}},
	})
	assert.Equal(t, ErrMissingSlugTitle, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProfile_PresenceNotTruthiness(t *testing.T) {
	mock, s := newMockStore(t)

	patch := &domain.ProfilePatch{
		CategoryID: domain.Null[string](),
		Price:      domain.Set(json.RawMessage(`0`)),
		Translations: map[string]domain.TranslationPatch{
			"fi": {
				Title:       domain.Set("Teräskatto"),
				Description: domain.Null[string](),
				SectionType: domain.Set(json.RawMessage(`["hero"]`)),
			},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE profiles SET category_id = $1, price = $2 WHERE id = $3`)).
		WithArgs(nil, "0", "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE profile_translations SET title = $1, description = $2, section_type = $3 WHERE profile_id = $4 AND locale = $5`)).
		WithArgs("Teräskatto", nil, `["hero"]`, "p1", "fi").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.UpdateProfile(context.Background(), "p1", patch))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProfile_AddsMissingLocale(t *testing.T) {
	mock, s := newMockStore(t)

	patch := &domain.ProfilePatch{
		Translations: map[string]domain.TranslationPatch{
			"sv": {Title: domain.Set("Ståltak"), Type: domain.Set("panel")},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE profile_translations SET title = $1, type = $2 WHERE profile_id = $3 AND locale = $4`)).
		WithArgs("Ståltak", "panel", "p1", "sv").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM profiles WHERE id = $1`)).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO profile_translations (id, profile_id, locale, title, type) VALUES ($1, $2, $3, $4, $5)`)).
		WithArgs("id-1", "p1", "sv", "Ståltak", "panel").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	require.NoError(t, s.UpdateProfile(context.Background(), "p1", patch))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProfile_NonexistentIDIsNoop(t *testing.T) {
	mock, s := newMockStore(t)

	patch := &domain.ProfilePatch{
		Slug: domain.Set("new-slug"),
		Translations: map[string]domain.TranslationPatch{
			"en": {Title: domain.Set("Title")},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE profiles SET slug = $1 WHERE id = $2`)).
		WithArgs("new-slug", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE profile_translations SET title = $1 WHERE profile_id = $2 AND locale = $3`)).
		WithArgs("Title", "ghost", "en").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM profiles WHERE id = $1`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectCommit()

	require.NoError(t, s.UpdateProfile(context.Background(), "ghost", patch))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProfile_EmptyPatchSkipsStatements(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := s.UpdateProfile(context.Background(), "p1", &domain.ProfilePatch{
		Translations: map[string]domain.TranslationPatch{"fi": {}},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProfile_FailureRollsBack(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE profiles SET videos = $1 WHERE id = $2`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE profile_translations`)).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := s.UpdateProfile(context.Background(), "p1", &domain.ProfilePatch{
		Videos: domain.Set(json.RawMessage(`[]`)),
		Translations: map[string]domain.TranslationPatch{
			"en": {Type: domain.Set("")},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, database.ErrExecFailed))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProfile_SlugTaken(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE profiles SET slug = $1 WHERE id = $2`)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "profiles_slug_key"})
	mock.ExpectRollback()

	err := s.UpdateProfile(context.Background(), "p1", &domain.ProfilePatch{Slug: domain.Set("taken")})
	assert.Equal(t, ErrSlugExists, err)
}

func TestPostgresStore_DeleteProfile(t *testing.T) {
	mock, s := newMockStore(t)
	query := regexp.QuoteMeta(`DELETE FROM profiles WHERE id = $1`)

	t.Run("deleted", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, s.DeleteProfile(context.Background(), "p1"))
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs("p2").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.Equal(t, ErrProfileNotFound, s.DeleteProfile(context.Background(), "p2"))
	})

	t.Run("failure", func(t *testing.T) {
		mock.ExpectExec(query).WithArgs("p3").WillReturnError(errors.New("server closed the connection"))
		err := s.DeleteProfile(context.Background(), "p3")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrProfileNotFound))
		assert.True(t, errors.Is(err, database.ErrExecFailed))
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJSONArg(t *testing.T) {
	assert.Nil(t, jsonArg(nil))
	assert.Nil(t, jsonArg(json.RawMessage(` null `)))
	assert.Equal(t, `{"a":1}`, jsonArg(json.RawMessage(` {"a":1} `)))
	assert.Equal(t, "0", jsonArg(json.RawMessage(`0`)))
}

func TestSchemaDeclaresConstraints(t *testing.T) {
	assert.Contains(t, Schema, "CONSTRAINT profiles_slug_key UNIQUE (slug)")
	assert.Contains(t, Schema, "ON DELETE CASCADE")
	assert.Contains(t, Schema, "UNIQUE (profile_id, locale)")
}
