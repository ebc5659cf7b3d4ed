package store

import (
	"context"

	"github.com/lexvault/lexvault/internal/bond"
	apperrors "github.com/lexvault/lexvault/pkg/errors"
)

// TokenBond is one outgoing bond with its target surface resolved.
type TokenBond struct {
	TokenB  int64
	Surface string
	Count   int
}

// DocBonds returns every bond pair of one document as a bond map ready for
// traversal, with the mandatory start edge taken from the document record.
func (s *Store) DocBonds(ctx context.Context, addr DocumentAddress) (bond.PBM[int64], error) {
	doc, err := s.GetDocument(ctx, addr)
	if err != nil {
		return bond.PBM[int64]{}, err
	}

	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT token_a, token_b, count FROM doc_bonds
		WHERE century = $1 AND bucket = $2 AND seq = $3`,
		addr.Century, addr.Bucket, addr.Seq,
	)
	if err != nil {
		return bond.PBM[int64]{}, apperrors.Storef("querying bonds for %s: %v", addr, err)
	}
	defer rows.Close()

	p := bond.PBM[int64]{FirstA: doc.FirstA, FirstB: doc.FirstB}
	for rows.Next() {
		var b bond.Bond[int64]
		if err := rows.Scan(&b.A, &b.B, &b.Count); err != nil {
			return bond.PBM[int64]{}, apperrors.Storef("scanning bond row: %v", err)
		}
		p.Bonds = append(p.Bonds, b)
	}
	if err := rows.Err(); err != nil {
		return bond.PBM[int64]{}, apperrors.Storef("reading bond rows: %v", err)
	}
	return p, nil
}

// BondsForToken returns the outgoing bonds of one token within a document,
// strongest first, ties by target surface.
func (s *Store) BondsForToken(ctx context.Context, addr DocumentAddress, tokenID int64) ([]TokenBond, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT b.token_b, t.surface, b.count
		FROM doc_bonds b JOIN tokens t ON t.id = b.token_b
		WHERE b.century = $1 AND b.bucket = $2 AND b.seq = $3 AND b.token_a = $4
		ORDER BY b.count DESC, t.surface ASC`,
		addr.Century, addr.Bucket, addr.Seq, tokenID,
	)
	if err != nil {
		return nil, apperrors.Storef("querying bonds for token %d in %s: %v", tokenID, addr, err)
	}
	defer rows.Close()

	var out []TokenBond
	for rows.Next() {
		var tb TokenBond
		if err := rows.Scan(&tb.TokenB, &tb.Surface, &tb.Count); err != nil {
			return nil, apperrors.Storef("scanning token bond row: %v", err)
		}
		out = append(out, tb)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storef("reading token bond rows: %v", err)
	}
	return out, nil
}
