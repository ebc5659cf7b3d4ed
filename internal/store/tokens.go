package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/lib/pq"

	"github.com/lexvault/lexvault/internal/vocab"
	apperrors "github.com/lexvault/lexvault/pkg/errors"
)

// TokenInfo is one vocabulary entry.
type TokenInfo struct {
	ID      int64
	Surface string
	Kind    string
	Label   string
}

// VocabStats summarizes the shared vocabulary for the info operation.
type VocabStats struct {
	Words        int64
	VarLabels    int64
	SurfaceChars int64
}

// EnsureTokens upserts every distinct token surface and returns the mapping
// from surface to vocabulary id. Existing surfaces keep their ids; the
// vocabulary is insert-only. Surfaces are processed in sorted order so
// concurrent ingests touching overlapping vocabularies cannot deadlock.
func (s *Store) EnsureTokens(ctx context.Context, tokens []vocab.Token) (map[string]int64, error) {
	distinct := make(map[string]vocab.Token, len(tokens))
	for _, tok := range tokens {
		distinct[tok.Surface] = tok
	}
	surfaces := make([]string, 0, len(distinct))
	for surface := range distinct {
		surfaces = append(surfaces, surface)
	}
	slices.Sort(surfaces)

	ids := make(map[string]int64, len(surfaces))
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, surface := range surfaces {
			tok := distinct[surface]
			var id int64
			// The no-op DO UPDATE makes RETURNING yield the id on
			// conflict as well as on insert.
			err := tx.QueryRowContext(ctx,
				`INSERT INTO tokens (surface, kind, label) VALUES ($1, $2, $3)
				ON CONFLICT (surface) DO UPDATE SET surface = EXCLUDED.surface
				RETURNING id`,
				surface, tok.Kind, tok.Label,
			).Scan(&id)
			if err != nil {
				return fmt.Errorf("upserting token %q: %w", surface, err)
			}
			ids[surface] = id
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Storef("ensuring tokens: %v", err)
	}
	return ids, nil
}

// TokenBySurface looks up one vocabulary entry by its exact surface.
func (s *Store) TokenBySurface(ctx context.Context, surface string) (*TokenInfo, error) {
	var info TokenInfo
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, surface, kind, label FROM tokens WHERE surface = $1`,
		surface,
	).Scan(&info.ID, &info.Surface, &info.Kind, &info.Label)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("token %q", surface)
	}
	if err != nil {
		return nil, apperrors.Storef("querying token %q: %v", surface, err)
	}
	return &info, nil
}

// TokensByID resolves vocabulary ids to their entries. Ids absent from the
// vocabulary are silently missing from the result map.
func (s *Store) TokensByID(ctx context.Context, ids []int64) (map[int64]TokenInfo, error) {
	if len(ids) == 0 {
		return map[int64]TokenInfo{}, nil
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, surface, kind, label FROM tokens WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, apperrors.Storef("querying tokens by id: %v", err)
	}
	defer rows.Close()

	out := make(map[int64]TokenInfo, len(ids))
	for rows.Next() {
		var info TokenInfo
		if err := rows.Scan(&info.ID, &info.Surface, &info.Kind, &info.Label); err != nil {
			return nil, apperrors.Storef("scanning token row: %v", err)
		}
		out[info.ID] = info
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storef("reading token rows: %v", err)
	}
	return out, nil
}

// Vocabulary reports aggregate vocabulary statistics.
func (s *Store) Vocabulary(ctx context.Context) (VocabStats, error) {
	var stats VocabStats
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE kind = 'word'),
			COUNT(DISTINCT label) FILTER (WHERE kind = 'var'),
			COALESCE(SUM(LENGTH(surface)) FILTER (WHERE kind = 'word'), 0)
		FROM tokens`,
	).Scan(&stats.Words, &stats.VarLabels, &stats.SurfaceChars)
	if err != nil {
		return VocabStats{}, apperrors.Storef("querying vocabulary stats: %v", err)
	}
	return stats, nil
}
