package protocol

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexvault/lexvault/pkg/config"
	apperrors "github.com/lexvault/lexvault/pkg/errors"
)

type echoReply struct {
	Status string `json:"status"`
	Text   string `json:"text"`
}

// startServer runs a server on a random port with an "echo" operation
// and a "boom" operation that always fails with a not_found error.
func startServer(t *testing.T, cfg config.ServerConfig) *Server {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	srv := NewServer(cfg, nil)
	srv.Register("echo", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req TokenizeRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, apperrors.Formatf("decoding echo request: %v", err)
		}
		return echoReply{Status: StatusOK, Text: req.Text}, nil
	})
	srv.Register("boom", func(ctx context.Context, raw json.RawMessage) (any, error) {
		return nil, apperrors.NotFoundf("no document at 19/0/7")
	})

	require.NoError(t, srv.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)
	t.Cleanup(func() {
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		srv.Stop(stopCtx)
	})
	return srv
}

func dialServer(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendRaw(t *testing.T, conn net.Conn, payload []byte) {
	t.Helper()
	require.NoError(t, WriteFrame(conn, payload, DefaultMaxFrameBytes))
}

func readReply(t *testing.T, conn net.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	payload, err := ReadFrame(conn, DefaultMaxFrameBytes)
	require.NoError(t, err)
	var reply map[string]any
	require.NoError(t, json.Unmarshal(payload, &reply))
	return reply
}

func TestServerDispatchRoundTrip(t *testing.T) {
	srv := startServer(t, config.ServerConfig{})
	conn := dialServer(t, srv)

	sendRaw(t, conn, []byte(`{"op":"echo","text":"hello vault"}`))
	reply := readReply(t, conn)
	assert.Equal(t, "ok", reply["status"])
	assert.Equal(t, "hello vault", reply["text"])
}

func TestServerMalformedPayloadKeepsConnection(t *testing.T) {
	srv := startServer(t, config.ServerConfig{})
	conn := dialServer(t, srv)

	sendRaw(t, conn, []byte(`{"op": nope`))
	reply := readReply(t, conn)
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "format", reply["kind"])

	// The same connection must still serve well-formed requests.
	sendRaw(t, conn, []byte(`{"op":"echo","text":"still here"}`))
	reply = readReply(t, conn)
	assert.Equal(t, "ok", reply["status"])
	assert.Equal(t, "still here", reply["text"])
}

func TestServerUnknownOperationKeepsConnection(t *testing.T) {
	srv := startServer(t, config.ServerConfig{})
	conn := dialServer(t, srv)

	sendRaw(t, conn, []byte(`{"op":"vanish"}`))
	reply := readReply(t, conn)
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "format", reply["kind"])
	assert.Contains(t, reply["message"], "vanish")

	sendRaw(t, conn, []byte(`{"op":"echo","text":"alive"}`))
	reply = readReply(t, conn)
	assert.Equal(t, "ok", reply["status"])
}

func TestServerMissingOpIsRejected(t *testing.T) {
	srv := startServer(t, config.ServerConfig{})
	conn := dialServer(t, srv)

	sendRaw(t, conn, []byte(`{"text":"no op"}`))
	reply := readReply(t, conn)
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "format", reply["kind"])
}

func TestServerOversizeFrameClosesConnection(t *testing.T) {
	srv := startServer(t, config.ServerConfig{MaxFrameBytes: 64})
	conn := dialServer(t, srv)

	// Announce a frame far beyond the limit; the server cannot resync
	// and must drop the connection without reading the body.
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header, 1<<20)
	_, err := conn.Write(header)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = ReadFrame(conn, DefaultMaxFrameBytes)
	require.Error(t, err, "connection should be closed, not answered")
}

func TestServerHandlerErrorCarriesKindAndMessage(t *testing.T) {
	srv := startServer(t, config.ServerConfig{})
	conn := dialServer(t, srv)

	sendRaw(t, conn, []byte(`{"op":"boom"}`))
	reply := readReply(t, conn)
	assert.Equal(t, "error", reply["status"])
	assert.Equal(t, "not_found", reply["kind"])
	assert.Equal(t, "no document at 19/0/7", reply["message"])
}

func TestClientSurfacesServerError(t *testing.T) {
	srv := startServer(t, config.ServerConfig{})

	client, err := Dial(srv.Addr())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Retrieve("19/0/999")
	require.Error(t, err)
	var serr *ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "format", serr.Kind)
}

func TestClientRoundTripOverRealConnection(t *testing.T) {
	srv := startServer(t, config.ServerConfig{})

	client, err := Dial(srv.Addr())
	require.NoError(t, err)
	defer client.Close()

	var reply echoReply
	require.NoError(t, client.do(TokenizeRequest{Op: "echo", Text: "typed"}, &reply))
	assert.Equal(t, "typed", reply.Text)
}

func TestServerStopUnblocksServe(t *testing.T) {
	srv := NewServer(config.ServerConfig{Addr: "127.0.0.1:0"}, nil)
	require.NoError(t, srv.Listen())

	served := make(chan error, 1)
	go func() { served <- srv.Serve(context.Background()) }()

	// Give the accept loop a moment to start before stopping.
	time.Sleep(20 * time.Millisecond)
	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(stopCtx))

	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}
