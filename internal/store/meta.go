package store

import (
	"context"
	"database/sql"
	"slices"

	"github.com/lib/pq"

	apperrors "github.com/lexvault/lexvault/pkg/errors"
)

// Meta returns a document's metadata fields. A known document without
// metadata yields an empty map; an unknown address is a not-found error.
func (s *Store) Meta(ctx context.Context, addr DocumentAddress) (map[string]string, error) {
	if err := s.exists(ctx, addr); err != nil {
		return nil, err
	}

	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT key, value FROM doc_meta
		WHERE century = $1 AND bucket = $2 AND seq = $3`,
		addr.Century, addr.Bucket, addr.Seq,
	)
	if err != nil {
		return nil, apperrors.Storef("querying meta for %s: %v", addr, err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, apperrors.Storef("scanning meta row: %v", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storef("reading meta rows: %v", err)
	}
	return meta, nil
}

// UpdateMeta applies field sets and removals in one transaction and returns
// how many fields were written and how many removals actually deleted a
// row. Removing an absent key is not an error.
func (s *Store) UpdateMeta(ctx context.Context, addr DocumentAddress, set map[string]string, remove []string) (int, int, error) {
	if err := s.exists(ctx, addr); err != nil {
		return 0, 0, err
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	removed := 0
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO doc_meta (century, bucket, seq, key, value)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (century, bucket, seq, key)
				DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
				addr.Century, addr.Bucket, addr.Seq, k, set[k],
			)
			if err != nil {
				return apperrors.Storef("setting meta %q on %s: %v", k, addr, err)
			}
		}
		if len(remove) > 0 {
			res, err := tx.ExecContext(ctx,
				`DELETE FROM doc_meta
				WHERE century = $1 AND bucket = $2 AND seq = $3 AND key = ANY($4)`,
				addr.Century, addr.Bucket, addr.Seq, pq.Array(remove),
			)
			if err != nil {
				return apperrors.Storef("removing meta on %s: %v", addr, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return apperrors.Storef("counting removed meta rows: %v", err)
			}
			removed = int(n)
		}
		return nil
	})
	if err != nil {
		if apperrors.Kind(err) != "internal" {
			return 0, 0, err
		}
		return 0, 0, apperrors.Storef("updating meta on %s: %v", addr, err)
	}
	return len(keys), removed, nil
}

// exists checks that a document row is present.
func (s *Store) exists(ctx context.Context, addr DocumentAddress) error {
	var one int
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE century = $1 AND bucket = $2 AND seq = $3`,
		addr.Century, addr.Bucket, addr.Seq,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return apperrors.NotFoundf("document %s", addr)
	}
	if err != nil {
		return apperrors.Storef("checking document %s: %v", addr, err)
	}
	return nil
}
