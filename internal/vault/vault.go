// Package vault implements the document vault's operations over the
// positional store, the cache-fill resolver, and the event emitter. It
// owns input validation and the mapping from stored state to protocol
// responses; persistence and reconstruction mechanics live in the
// packages it composes.
package vault

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/lexvault/lexvault/internal/bond"
	"github.com/lexvault/lexvault/internal/codec"
	"github.com/lexvault/lexvault/internal/events"
	"github.com/lexvault/lexvault/internal/protocol"
	"github.com/lexvault/lexvault/internal/reassembly"
	"github.com/lexvault/lexvault/internal/resolver"
	"github.com/lexvault/lexvault/internal/store"
	"github.com/lexvault/lexvault/internal/vocab"
	"github.com/lexvault/lexvault/pkg/config"
	"github.com/lexvault/lexvault/pkg/logger"
	"github.com/lexvault/lexvault/pkg/metrics"
)

// Store is the authoritative-store surface the vault writes and reads
// directly; immutable read paths go through Reads instead.
type Store interface {
	EnsureTokens(ctx context.Context, tokens []vocab.Token) (map[string]int64, error)
	StoreDocument(ctx context.Context, doc store.NewDocument) (store.DocumentAddress, error)
	ListDocuments(ctx context.Context) ([]store.DocumentSummary, error)
	UpdateMeta(ctx context.Context, addr store.DocumentAddress, set map[string]string, remove []string) (int, int, error)
	DocBonds(ctx context.Context, addr store.DocumentAddress) (bond.PBM[int64], error)
	BondsForToken(ctx context.Context, addr store.DocumentAddress, tokenID int64) ([]store.TokenBond, error)
	TokensByID(ctx context.Context, ids []int64) (map[int64]store.TokenInfo, error)
	Vocabulary(ctx context.Context) (store.VocabStats, error)
}

// Reads is the cache-fronted read surface.
type Reads interface {
	Document(ctx context.Context, addr store.DocumentAddress) (*store.Document, error)
	Positions(ctx context.Context, addr store.DocumentAddress) (map[int64][]int, int, error)
	Token(ctx context.Context, surface string) (*store.TokenInfo, error)
	Meta(ctx context.Context, addr store.DocumentAddress) (map[string]string, error)
	Invalidate(ctx context.Context, keys ...string)
}

// Service implements the vault operations.
type Service struct {
	store   Store
	reads   Reads
	emitter *events.Emitter
	cfg     config.VaultConfig
	metrics *metrics.Metrics
	nodeID  string
	logger  *slog.Logger
}

// New creates a Service. emitter may be nil when event publishing is
// disabled; m may be nil in tests.
func New(st Store, reads Reads, emitter *events.Emitter, cfg config.VaultConfig, m *metrics.Metrics) *Service {
	nodeID, err := os.Hostname()
	if err != nil || nodeID == "" {
		nodeID = "lexvault"
	}
	return &Service{
		store:   st,
		reads:   reads,
		emitter: emitter,
		cfg:     cfg,
		metrics: m,
		nodeID:  nodeID,
		logger:  slog.Default().With("component", "vault"),
	}
}

// Health reports live vocabulary statistics, proving the store answers.
func (s *Service) Health(ctx context.Context) (*protocol.HealthResponse, error) {
	stats, err := s.store.Vocabulary(ctx)
	if err != nil {
		return nil, err
	}
	return &protocol.HealthResponse{
		Status:     protocol.StatusOK,
		WordCount:  stats.Words,
		LabelCount: stats.VarLabels,
		CharCount:  stats.SurfaceChars,
	}, nil
}

// Ingest tokenizes the text, persists the document in one transaction,
// and queues a document event for corpus aggregation.
func (s *Service) Ingest(ctx context.Context, req protocol.IngestRequest) (*protocol.IngestResponse, error) {
	if err := s.validateIngest(req); err != nil {
		return nil, err
	}

	res := vocab.Tokenize(req.Text)
	toks := make([]vocab.Token, len(res.Tokens))
	for i, occ := range res.Tokens {
		toks[i] = occ.Token
	}
	ids, err := s.store.EnsureTokens(ctx, toks)
	if err != nil {
		return nil, err
	}

	positions := make(map[int64][]int, res.Unique())
	stream := make([]int64, len(res.Tokens))
	for i, occ := range res.Tokens {
		id := ids[occ.Surface]
		positions[id] = append(positions[id], occ.Slot)
		stream[i] = id
	}
	pbm := bond.Derive(stream)
	bonds := pbm.Sorted()

	addr, err := s.store.StoreDocument(ctx, store.NewDocument{
		Name:         req.Name,
		Century:      req.Century,
		TotalSlots:   res.TotalSlots,
		TokenCount:   len(res.Tokens),
		UniqueTokens: res.Unique(),
		StarterCount: len(res.Starters),
		Positions:    positions,
		Bonds:        bonds,
		FirstA:       pbm.FirstA,
		FirstB:       pbm.FirstB,
		VarLabels:    res.VarLabels(),
		SourceChars:  res.SourceChars,
		Codec:        codec.ID,
		Tokenizer:    vocab.ID,
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DocsIngestedTotal.Inc()
		s.metrics.TokensIngestedTotal.Add(float64(len(res.Tokens)))
		s.metrics.BondsIngestedTotal.Add(float64(len(bonds)))
	}
	s.emitDocument(addr, req, res, bonds, pbm)

	s.logger.Info("document ingested",
		"request_id", logger.RequestID(ctx),
		"address", addr.String(),
		"name", req.Name,
		"tokens", len(res.Tokens),
		"bonds", len(bonds),
	)
	return &protocol.IngestResponse{
		Status:      protocol.StatusOK,
		DocID:       addr.String(),
		TokenCount:  len(res.Tokens),
		UniqueCount: res.Unique(),
		BondCount:   len(bonds),
	}, nil
}

// Retrieve rebuilds a document's text exactly from its position table.
func (s *Service) Retrieve(ctx context.Context, req protocol.RetrieveRequest) (*protocol.RetrieveResponse, error) {
	addr, err := store.ParseAddress(req.DocID)
	if err != nil {
		return nil, err
	}
	positions, totalSlots, err := s.reads.Positions(ctx, addr)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(positions))
	tokenCount := 0
	for id, slots := range positions {
		ids = append(ids, id)
		tokenCount += len(slots)
	}
	infos, err := s.store.TokensByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	surfaces := make(map[int64]string, len(infos))
	for id, info := range infos {
		surfaces[id] = info.Surface
	}

	text, err := reassembly.Exact(positions, surfaces, totalSlots)
	if err != nil {
		return nil, err
	}
	return &protocol.RetrieveResponse{
		Status:     protocol.StatusOK,
		Text:       text,
		TokenCount: tokenCount,
	}, nil
}

// List enumerates every stored document in address order.
func (s *Service) List(ctx context.Context) (*protocol.ListResponse, error) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]protocol.DocumentEntry, len(docs))
	for i, d := range docs {
		entries[i] = protocol.DocumentEntry{
			DocID:        d.Address.String(),
			Name:         d.Name,
			StarterCount: d.StarterCount,
			BondCount:    d.BondCount,
		}
	}
	return &protocol.ListResponse{
		Status:    protocol.StatusOK,
		Count:     len(entries),
		Documents: entries,
	}, nil
}

// Tokenize is the dry run: identical counting to Ingest with nothing
// stored and nothing emitted.
func (s *Service) Tokenize(ctx context.Context, req protocol.TokenizeRequest) (*protocol.TokenizeResponse, error) {
	if len(req.Text) > s.maxTextBytes() {
		return nil, errTextTooLarge(len(req.Text), s.maxTextBytes())
	}
	res := vocab.Tokenize(req.Text)
	pbm := bond.Derive(res.Stream())
	return &protocol.TokenizeResponse{
		Status:      protocol.StatusOK,
		TokenCount:  len(res.Tokens),
		UniqueCount: res.Unique(),
		BondCount:   len(pbm.Bonds),
	}, nil
}

// Info reports a document's stored record, metadata, provenance, and a
// live traversability diagnosis of its bond graph.
func (s *Service) Info(ctx context.Context, req protocol.InfoRequest) (*protocol.InfoResponse, error) {
	addr, err := store.ParseAddress(req.DocID)
	if err != nil {
		return nil, err
	}
	doc, err := s.reads.Document(ctx, addr)
	if err != nil {
		return nil, err
	}
	meta, err := s.reads.Meta(ctx, addr)
	if err != nil {
		return nil, err
	}
	eulerian, err := s.diagnose(ctx, addr)
	if err != nil {
		return nil, err
	}

	unresolved := make([]string, 0)
	for _, label := range doc.VarLabels {
		if _, ok := meta[label]; !ok {
			unresolved = append(unresolved, label)
		}
	}
	slices.Sort(unresolved)

	return &protocol.InfoResponse{
		Status: protocol.StatusOK,
		Detail: protocol.InfoDetail{
			Name:         doc.Name,
			Century:      doc.Address.Century,
			DocID:        doc.Address.String(),
			TotalSlots:   doc.TotalSlots,
			TokenCount:   doc.TokenCount,
			UniqueCount:  doc.UniqueTokens,
			StarterCount: doc.StarterCount,
			BondCount:    doc.BondCount,
			Eulerian:     eulerian,
		},
		Metadata: meta,
		Provenance: protocol.InfoProvenance{
			IngestedAt:  doc.IngestedAt.UTC().Format(time.RFC3339),
			SourceChars: doc.SourceChars,
			Codec:       doc.Codec,
			Tokenizer:   doc.Tokenizer,
		},
		UnresolvedVars: unresolved,
	}, nil
}

// UpdateMeta applies metadata sets and removals, then invalidates the
// document's cached metadata locally and across the cluster.
func (s *Service) UpdateMeta(ctx context.Context, req protocol.UpdateMetaRequest) (*protocol.UpdateMetaResponse, error) {
	addr, err := store.ParseAddress(req.DocID)
	if err != nil {
		return nil, err
	}
	if err := validateMetaFields(req.Set, req.Remove); err != nil {
		return nil, err
	}

	set, removed, err := s.store.UpdateMeta(ctx, addr, req.Set, req.Remove)
	if err != nil {
		return nil, err
	}

	key := resolver.MetaKey(addr)
	s.reads.Invalidate(ctx, key)
	if s.emitter != nil {
		s.emitter.CacheInvalidate(events.CacheInvalidate{
			Keys:   []string{key},
			Origin: s.nodeID,
			At:     time.Now().UTC(),
		})
	}

	s.logger.Info("metadata updated",
		"request_id", logger.RequestID(ctx),
		"address", addr.String(),
		"set", set,
		"removed", removed,
	)
	return &protocol.UpdateMetaResponse{
		Status:        protocol.StatusOK,
		FieldsSet:     set,
		FieldsRemoved: removed,
	}, nil
}

// Bonds lists a token's outgoing bonds within one document, strongest
// first.
func (s *Service) Bonds(ctx context.Context, req protocol.BondsRequest) (*protocol.BondsResponse, error) {
	addr, err := store.ParseAddress(req.DocID)
	if err != nil {
		return nil, err
	}
	if err := validateBondToken(req.Token); err != nil {
		return nil, err
	}
	// Existence first, so an unknown document is not an empty answer.
	if _, err := s.reads.Document(ctx, addr); err != nil {
		return nil, err
	}
	tok, err := s.reads.Token(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	bonds, err := s.store.BondsForToken(ctx, addr, tok.ID)
	if err != nil {
		return nil, err
	}
	entries := make([]protocol.BondEntry, len(bonds))
	for i, b := range bonds {
		entries[i] = protocol.BondEntry{Token: b.TokenB, Surface: b.Surface, Count: b.Count}
	}
	return &protocol.BondsResponse{Status: protocol.StatusOK, Bonds: entries}, nil
}

// diagnose runs the Eulerian degree diagnosis over the document's stored
// bond graph and renders the involved tokens as surfaces.
func (s *Service) diagnose(ctx context.Context, addr store.DocumentAddress) (protocol.EulerianInfo, error) {
	pbm, err := s.store.DocBonds(ctx, addr)
	if err != nil {
		return protocol.EulerianInfo{}, err
	}
	diag := bond.Diagnose(pbm)

	idSet := make(map[int64]struct{})
	if diag.Kind == bond.PathOpen {
		idSet[diag.Start] = struct{}{}
		idSet[diag.End] = struct{}{}
	}
	for _, id := range diag.Imbalanced {
		idSet[id] = struct{}{}
	}
	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	surfaces := map[int64]store.TokenInfo{}
	if len(ids) > 0 {
		surfaces, err = s.store.TokensByID(ctx, ids)
		if err != nil {
			return protocol.EulerianInfo{}, err
		}
	}

	info := protocol.EulerianInfo{
		PathExists: diag.PathExists(),
		Kind:       diag.Kind.String(),
	}
	if diag.Kind == bond.PathOpen {
		info.Start = surfaces[diag.Start].Surface
		info.End = surfaces[diag.End].Surface
	}
	for _, id := range diag.Imbalanced {
		info.Imbalanced = append(info.Imbalanced, surfaces[id].Surface)
	}
	slices.Sort(info.Imbalanced)
	return info, nil
}

// emitDocument queues the ingest event feeding corpus aggregation.
func (s *Service) emitDocument(addr store.DocumentAddress, req protocol.IngestRequest, res vocab.Result, bonds []bond.Bond[int64], pbm bond.PBM[int64]) {
	if s.emitter == nil {
		return
	}
	wire := make([]events.BondCount, len(bonds))
	for i, b := range bonds {
		wire[i] = events.BondCount{A: b.A, B: b.B, Count: b.Count}
	}
	s.emitter.DocumentIngested(events.DocumentIngested{
		Address:    addr.String(),
		Name:       req.Name,
		Century:    req.Century,
		TokenCount: len(res.Tokens),
		TotalSlots: res.TotalSlots,
		Bonds:      wire,
		FirstA:     pbm.FirstA,
		FirstB:     pbm.FirstB,
		IngestedAt: time.Now().UTC(),
	})
}
