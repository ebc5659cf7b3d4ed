package protocol

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
)

// Client speaks the vault protocol over a single persistent connection.
// Requests are serialized: one frame out, one frame in. Safe for
// concurrent use.
type Client struct {
	conn     net.Conn
	mu       sync.Mutex
	maxFrame int
}

// Dial connects to a vault server at the given address.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return &Client{
		conn:     conn,
		maxFrame: DefaultMaxFrameBytes,
	}, nil
}

// do sends one request frame and decodes the response into out. Error
// responses surface as *ServerError.
func (c *Client) do(req any, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := WriteFrame(c.conn, payload, c.maxFrame); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	resp, err := ReadFrame(c.conn, c.maxFrame)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var probe struct {
		Status  string `json:"status"`
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp, &probe); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if probe.Status == StatusError {
		return &ServerError{Kind: probe.Kind, Message: probe.Message}
	}

	if out != nil {
		if err := json.Unmarshal(resp, out); err != nil {
			return fmt.Errorf("decoding response body: %w", err)
		}
	}
	return nil
}

func (c *Client) Health() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(envelope{Op: OpHealth}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Ingest(name, century, text string) (*IngestResponse, error) {
	var resp IngestResponse
	req := IngestRequest{Op: OpIngest, Name: name, Century: century, Text: text}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Retrieve(docID string) (*RetrieveResponse, error) {
	var resp RetrieveResponse
	if err := c.do(RetrieveRequest{Op: OpRetrieve, DocID: docID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) List() (*ListResponse, error) {
	var resp ListResponse
	if err := c.do(envelope{Op: OpList}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Tokenize(text string) (*TokenizeResponse, error) {
	var resp TokenizeResponse
	if err := c.do(TokenizeRequest{Op: OpTokenize, Text: text}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Info(docID string) (*InfoResponse, error) {
	var resp InfoResponse
	if err := c.do(InfoRequest{Op: OpInfo, DocID: docID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) UpdateMeta(docID string, set map[string]string, remove []string) (*UpdateMetaResponse, error) {
	var resp UpdateMetaResponse
	req := UpdateMetaRequest{Op: OpUpdateMeta, DocID: docID, Set: set, Remove: remove}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Bonds(docID, token string) (*BondsResponse, error) {
	var resp BondsResponse
	if err := c.do(BondsRequest{Op: OpBonds, DocID: docID, Token: token}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
