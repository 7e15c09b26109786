package orgs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/hiregate/pkg/apperr"
	"github.com/platinummonkey/hiregate/pkg/storage/storagetest"
)

func TestSearchOrganizations(t *testing.T) {
	store, db := newSQLiteStore(t)
	ctx := context.Background()

	storagetest.CreateOrganization(t, db, "Acme Corp", "acme")
	storagetest.CreateOrganization(t, db, "Acme Labs", "acme-labs")
	storagetest.CreateOrganization(t, db, "100% Hiring", "hundred")
	storagetest.CreateOrganization(t, db, "Beta", "beta")
	storagetest.CreateOrganization(t, db, "Gamma_Works", "gamma")

	tests := []struct {
		name     string
		term     string
		expected []string
	}{
		{"partial name, case-insensitive", "ACME", []string{"acme", "acme-labs"}},
		{"exact slug", "hundred", []string{"hundred"}},
		{"percent is literal", "100%", []string{"hundred"}},
		{"lone percent is too short", "%", []string{}},
		{"percent does not match everything", "%%", []string{}},
		{"underscore is literal", "a_w", []string{"gamma"}},
		{"underscore does not match any char", "e_a", []string{}},
		{"trimmed", "  beta  ", []string{"beta"}},
		{"too short", "a", []string{}},
		{"no match", "zeta", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := store.SearchOrganizations(ctx, tt.term)
			require.NoError(t, err)

			slugs := []string{}
			for _, r := range results {
				slugs = append(slugs, r.Slug)
			}
			assert.ElementsMatch(t, tt.expected, slugs)
		})
	}
}

func TestSearchOrganizations_Limit(t *testing.T) {
	store, db := newSQLiteStore(t)
	for i := 0; i < 8; i++ {
		storagetest.CreateOrganization(t, db, fmt.Sprintf("Team %d", i), fmt.Sprintf("team-%d", i))
	}

	results, err := store.SearchOrganizations(context.Background(), "team")
	require.NoError(t, err)
	assert.Len(t, results, MaxSearchResults)
}

func TestSearchOrganizations_Query(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("escapes wildcards", func(t *testing.T) {
		mock.ExpectQuery(`WHERE slug = \$1 OR LOWER\(name\) LIKE \$2 ESCAPE`).
			WithArgs(`50%_off\`, `%50\%\_off\\%`, MaxSearchResults).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug"}))

		results, err := store.SearchOrganizations(context.Background(), `50%_OFF\`)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery(`FROM organizations`).
			WillReturnError(errors.New("connection refused"))

		_, err := store.SearchOrganizations(context.Background(), "acme")
		assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
