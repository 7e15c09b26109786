package orgs

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/hiregate/pkg/apperr"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchOrganizations finds organizations by exact slug or partial,
// case-insensitive name match. Terms shorter than MinSearchLength return nothing.
func (s *Store) SearchOrganizations(ctx context.Context, term string) ([]SearchResult, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if len([]rune(term)) < MinSearchLength {
		return []SearchResult{}, nil
	}

	pattern := "%" + likeEscaper.Replace(term) + "%"

	rows, err := s.reader().QueryContext(ctx, `
		SELECT id, name, slug
		FROM organizations
		WHERE slug = $1 OR LOWER(name) LIKE $2 ESCAPE '\'
		ORDER BY name ASC
		LIMIT $3
	`, term, pattern, MaxSearchResults)
	if err != nil {
		return nil, apperr.FromStore("orgs.SearchOrganizations", fmt.Errorf("failed to search organizations: %w", err))
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Name, &r.Slug); err != nil {
			return nil, apperr.FromStore("orgs.SearchOrganizations", fmt.Errorf("failed to scan organization: %w", err))
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromStore("orgs.SearchOrganizations", err)
	}

	return results, nil
}
