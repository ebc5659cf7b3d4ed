package vault

import (
	"context"
	"encoding/json"

	"github.com/lexvault/lexvault/internal/protocol"
	apperrors "github.com/lexvault/lexvault/pkg/errors"
)

// Register wires every vault operation into the protocol server.
func (s *Service) Register(srv *protocol.Server) {
	srv.Register(protocol.OpHealth, func(ctx context.Context, raw json.RawMessage) (any, error) {
		return s.Health(ctx)
	})
	srv.Register(protocol.OpIngest, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req protocol.IngestRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		return s.Ingest(ctx, req)
	})
	srv.Register(protocol.OpRetrieve, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req protocol.RetrieveRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		return s.Retrieve(ctx, req)
	})
	srv.Register(protocol.OpList, func(ctx context.Context, raw json.RawMessage) (any, error) {
		return s.List(ctx)
	})
	srv.Register(protocol.OpTokenize, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req protocol.TokenizeRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		return s.Tokenize(ctx, req)
	})
	srv.Register(protocol.OpInfo, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req protocol.InfoRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		return s.Info(ctx, req)
	})
	srv.Register(protocol.OpUpdateMeta, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req protocol.UpdateMetaRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		return s.UpdateMeta(ctx, req)
	})
	srv.Register(protocol.OpBonds, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req protocol.BondsRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		return s.Bonds(ctx, req)
	})
}

func decode(raw json.RawMessage, into any) error {
	if err := json.Unmarshal(raw, into); err != nil {
		return apperrors.Formatf("decoding request: %v", err)
	}
	return nil
}
