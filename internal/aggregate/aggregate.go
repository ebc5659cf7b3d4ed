// Package aggregate folds per-document bond events into the corpus-wide
// bond graph. The corpus table is a pure accumulation: counts only grow,
// and a replayed event at worst inflates counts, which the at-least-once
// consumer accepts in exchange for never losing a fold.
package aggregate

import (
	"context"
	"database/sql"
	"log/slog"
	"slices"

	"github.com/lexvault/lexvault/internal/events"
	apperrors "github.com/lexvault/lexvault/pkg/errors"
	"github.com/lexvault/lexvault/pkg/kafka"
	"github.com/lexvault/lexvault/pkg/metrics"
	"github.com/lexvault/lexvault/pkg/postgres"
)

// Aggregator consumes document events and maintains corpus bond counts.
type Aggregator struct {
	db      *postgres.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Aggregator. m may be nil in tests.
func New(db *postgres.Client, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		db:      db,
		metrics: m,
		logger:  slog.Default().With("component", "aggregate"),
	}
}

// HandleEvent is the Kafka handler for the documents topic. Malformed
// payloads are logged and skipped so a poison message cannot wedge the
// partition; fold failures are returned so the message is redelivered.
func (a *Aggregator) HandleEvent(ctx context.Context, key, value []byte) error {
	ev, err := kafka.DecodeJSON[events.DocumentIngested](value)
	if err != nil {
		a.mark("malformed")
		a.logger.Error("skipping malformed document event", "key", string(key), "error", err)
		return nil
	}
	if err := a.Fold(ctx, ev.Bonds); err != nil {
		a.mark("error")
		return err
	}
	a.mark("ok")
	a.logger.Debug("document event folded", "address", ev.Address, "bonds", len(ev.Bonds))
	return nil
}

// Fold accumulates bond counts into the corpus graph in one transaction.
// Pairs are applied in (a, b) order so concurrent folds touching the same
// pairs cannot deadlock.
func (a *Aggregator) Fold(ctx context.Context, bonds []events.BondCount) error {
	if len(bonds) == 0 {
		return nil
	}
	sorted := slices.Clone(bonds)
	slices.SortFunc(sorted, func(x, y events.BondCount) int {
		if x.A != y.A {
			if x.A < y.A {
				return -1
			}
			return 1
		}
		if x.B < y.B {
			return -1
		}
		if x.B > y.B {
			return 1
		}
		return 0
	})

	err := a.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, b := range sorted {
			if b.Count < 1 {
				continue
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO corpus_bonds (token_a, token_b, count) VALUES ($1, $2, $3)
				ON CONFLICT (token_a, token_b)
				DO UPDATE SET count = corpus_bonds.count + EXCLUDED.count`,
				b.A, b.B, b.Count,
			)
			if err != nil {
				return apperrors.Storef("folding bond %d->%d: %v", b.A, b.B, err)
			}
		}
		return nil
	})
	if err != nil {
		if apperrors.Kind(err) != "internal" {
			return err
		}
		return apperrors.Storef("folding corpus bonds: %v", err)
	}
	return nil
}

// CorpusCount returns the corpus-wide count for one bond pair, zero when
// the pair has never been seen.
func (a *Aggregator) CorpusCount(ctx context.Context, tokenA, tokenB int64) (int64, error) {
	var count int64
	err := a.db.DB.QueryRowContext(ctx,
		`SELECT count FROM corpus_bonds WHERE token_a = $1 AND token_b = $2`,
		tokenA, tokenB,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.Storef("querying corpus bond %d->%d: %v", tokenA, tokenB, err)
	}
	return count, nil
}

func (a *Aggregator) mark(status string) {
	if a.metrics != nil {
		a.metrics.FoldsTotal.WithLabelValues(status).Inc()
	}
}
