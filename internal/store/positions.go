package store

import (
	"context"
	"fmt"

	"github.com/lexvault/lexvault/internal/codec"
	apperrors "github.com/lexvault/lexvault/pkg/errors"
)

// LoadPositions returns the decoded position table and slot width of one
// document. A known document with no claimed tokens yields an empty map;
// an unknown address is a not-found error.
func (s *Store) LoadPositions(ctx context.Context, addr DocumentAddress) (map[int64][]int, int, error) {
	doc, err := s.GetDocument(ctx, addr)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT token_id, slots FROM positions
		WHERE century = $1 AND bucket = $2 AND seq = $3`,
		addr.Century, addr.Bucket, addr.Seq,
	)
	if err != nil {
		return nil, 0, apperrors.Storef("querying positions for %s: %v", addr, err)
	}
	defer rows.Close()

	positions := make(map[int64][]int)
	for rows.Next() {
		var id int64
		var encoded string
		if err := rows.Scan(&id, &encoded); err != nil {
			return nil, 0, apperrors.Storef("scanning position row: %v", err)
		}
		slots, err := codec.Decode(encoded)
		if err != nil {
			return nil, 0, fmt.Errorf("decoding positions for token %d in %s: %w", id, addr, err)
		}
		positions[id] = slots
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.Storef("reading position rows: %v", err)
	}
	return positions, doc.TotalSlots, nil
}
