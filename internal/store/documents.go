package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/lib/pq"

	"github.com/lexvault/lexvault/internal/bond"
	"github.com/lexvault/lexvault/internal/codec"
	apperrors "github.com/lexvault/lexvault/pkg/errors"
)

// NewDocument carries everything one ingest persists. Positions maps
// vocabulary ids to ascending claimed slots; Bonds are the distinct
// adjacent pairs with multiplicities. FirstA and FirstB are zero when the
// document has fewer than two claimed tokens.
type NewDocument struct {
	Name         string
	Century      string
	TotalSlots   int
	TokenCount   int
	UniqueTokens int
	StarterCount int
	Positions    map[int64][]int
	Bonds        []bond.Bond[int64]
	FirstA       int64
	FirstB       int64
	VarLabels    []string
	SourceChars  int
	Codec        string
	Tokenizer    string
}

// Document is the stored record for one document.
type Document struct {
	Address      DocumentAddress
	Name         string
	TotalSlots   int
	TokenCount   int
	UniqueTokens int
	StarterCount int
	BondCount    int
	FirstA       int64
	FirstB       int64
	VarLabels    []string
	SourceChars  int
	Codec        string
	Tokenizer    string
	IngestedAt   time.Time
}

// DocumentSummary is the listing row.
type DocumentSummary struct {
	Address      DocumentAddress
	Name         string
	StarterCount int
	BondCount    int
}

// StoreDocument allocates the next sequence in the document's bucket and
// writes the document record, its encoded position table, and its bond
// pairs in one transaction. Nothing is visible until commit, so a failed
// ingest leaves no partial document behind.
func (s *Store) StoreDocument(ctx context.Context, doc NewDocument) (DocumentAddress, error) {
	addr := DocumentAddress{
		Century: doc.Century,
		Bucket:  AssignBucket(doc.Name, s.buckets),
	}
	if doc.VarLabels == nil {
		doc.VarLabels = []string{}
	}

	tokenIDs := make([]int64, 0, len(doc.Positions))
	for id := range doc.Positions {
		tokenIDs = append(tokenIDs, id)
	}
	slices.Sort(tokenIDs)

	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO doc_sequences (century, bucket, next_seq) VALUES ($1, $2, 1)
			ON CONFLICT (century, bucket) DO UPDATE SET next_seq = doc_sequences.next_seq + 1
			RETURNING next_seq`,
			addr.Century, addr.Bucket,
		).Scan(&addr.Seq)
		if err != nil {
			return apperrors.Storef("allocating sequence for %s/%d: %v", addr.Century, addr.Bucket, err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents
				(century, bucket, seq, name, total_slots, token_count, unique_tokens,
				 starter_count, bond_count, first_a, first_b, var_labels, source_chars,
				 codec, tokenizer)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			addr.Century, addr.Bucket, addr.Seq, doc.Name, doc.TotalSlots, doc.TokenCount,
			doc.UniqueTokens, doc.StarterCount, len(doc.Bonds),
			nullableID(doc.FirstA), nullableID(doc.FirstB),
			pq.Array(doc.VarLabels), doc.SourceChars, doc.Codec, doc.Tokenizer,
		)
		if err != nil {
			return apperrors.Storef("inserting document %s: %v", addr, err)
		}

		for _, id := range tokenIDs {
			encoded, err := codec.Encode(doc.Positions[id])
			if err != nil {
				return fmt.Errorf("encoding positions for token %d: %w", id, err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO positions (century, bucket, seq, token_id, slots)
				VALUES ($1, $2, $3, $4, $5)`,
				addr.Century, addr.Bucket, addr.Seq, id, encoded,
			)
			if err != nil {
				return apperrors.Storef("inserting positions for token %d: %v", id, err)
			}
		}

		for _, b := range doc.Bonds {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO doc_bonds (century, bucket, seq, token_a, token_b, count)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				addr.Century, addr.Bucket, addr.Seq, b.A, b.B, b.Count,
			)
			if err != nil {
				return apperrors.Storef("inserting bond %d->%d: %v", b.A, b.B, err)
			}
		}
		return nil
	})
	if err != nil {
		if apperrors.Kind(err) != "internal" {
			return DocumentAddress{}, err
		}
		return DocumentAddress{}, apperrors.Storef("storing document %q: %v", doc.Name, err)
	}

	s.logger.Info("document stored",
		"address", addr.String(),
		"name", doc.Name,
		"tokens", doc.TokenCount,
		"slots", doc.TotalSlots,
		"bonds", len(doc.Bonds),
	)
	return addr, nil
}

// GetDocument loads one document record.
func (s *Store) GetDocument(ctx context.Context, addr DocumentAddress) (*Document, error) {
	doc := Document{Address: addr}
	var firstA, firstB sql.NullInt64
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT name, total_slots, token_count, unique_tokens, starter_count,
			bond_count, first_a, first_b, var_labels, source_chars, codec,
			tokenizer, ingested_at
		FROM documents WHERE century = $1 AND bucket = $2 AND seq = $3`,
		addr.Century, addr.Bucket, addr.Seq,
	).Scan(&doc.Name, &doc.TotalSlots, &doc.TokenCount, &doc.UniqueTokens,
		&doc.StarterCount, &doc.BondCount, &firstA, &firstB,
		pq.Array(&doc.VarLabels), &doc.SourceChars, &doc.Codec,
		&doc.Tokenizer, &doc.IngestedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundf("document %s", addr)
	}
	if err != nil {
		return nil, apperrors.Storef("querying document %s: %v", addr, err)
	}
	doc.FirstA = firstA.Int64
	doc.FirstB = firstB.Int64
	return &doc, nil
}

// ListDocuments returns every stored document ordered by address.
func (s *Store) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT century, bucket, seq, name, starter_count, bond_count
		FROM documents ORDER BY century, bucket, seq`,
	)
	if err != nil {
		return nil, apperrors.Storef("listing documents: %v", err)
	}
	defer rows.Close()

	var out []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		if err := rows.Scan(&d.Address.Century, &d.Address.Bucket, &d.Address.Seq,
			&d.Name, &d.StarterCount, &d.BondCount); err != nil {
			return nil, apperrors.Storef("scanning document row: %v", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storef("reading document rows: %v", err)
	}
	return out, nil
}

// CountDocuments reports the stored document total.
func (s *Store) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, apperrors.Storef("counting documents: %v", err)
	}
	return n, nil
}

// nullableID converts a vocabulary id to its column form, treating zero as
// NULL.
func nullableID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}
