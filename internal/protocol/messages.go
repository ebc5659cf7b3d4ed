// Package protocol implements the vault's wire protocol: length-prefixed
// JSON frames over a persistent TCP connection, an operation-dispatch
// server, and a typed client. Requests are flat objects carrying "op"
// plus that operation's fields; responses always carry "status".
package protocol

import "fmt"

// Operation names.
const (
	OpHealth     = "health"
	OpIngest     = "ingest"
	OpRetrieve   = "retrieve"
	OpList       = "list"
	OpTokenize   = "tokenize"
	OpInfo       = "info"
	OpUpdateMeta = "update_meta"
	OpBonds      = "bonds"
)

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// envelope is the dispatch probe: only the operation name is read before
// the payload is handed to the operation's own decoder.
type envelope struct {
	Op string `json:"op"`
}

type IngestRequest struct {
	Op      string `json:"op"`
	Name    string `json:"name"`
	Century string `json:"century-code"`
	Text    string `json:"text"`
}

type RetrieveRequest struct {
	Op    string `json:"op"`
	DocID string `json:"doc-id"`
}

type TokenizeRequest struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

type InfoRequest struct {
	Op    string `json:"op"`
	DocID string `json:"doc-id"`
}

type UpdateMetaRequest struct {
	Op     string            `json:"op"`
	DocID  string            `json:"doc-id"`
	Set    map[string]string `json:"set"`
	Remove []string          `json:"remove"`
}

type BondsRequest struct {
	Op    string `json:"op"`
	DocID string `json:"doc-id"`
	Token string `json:"token"`
}

// ErrorResponse is returned for any failed operation. Kind names the
// error taxonomy bucket so clients can classify without parsing text.
type ErrorResponse struct {
	Status  string `json:"status"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status     string `json:"status"`
	WordCount  int64  `json:"word-count"`
	LabelCount int64  `json:"label-count"`
	CharCount  int64  `json:"char-count"`
}

type IngestResponse struct {
	Status      string `json:"status"`
	DocID       string `json:"doc-id"`
	TokenCount  int    `json:"token-count"`
	UniqueCount int    `json:"unique-count"`
	BondCount   int    `json:"bond-count"`
}

type RetrieveResponse struct {
	Status     string `json:"status"`
	Text       string `json:"text"`
	TokenCount int    `json:"token-count"`
}

type DocumentEntry struct {
	DocID        string `json:"doc-id"`
	Name         string `json:"name"`
	StarterCount int    `json:"starter-count"`
	BondCount    int    `json:"bond-count"`
}

type ListResponse struct {
	Status    string          `json:"status"`
	Count     int             `json:"count"`
	Documents []DocumentEntry `json:"documents"`
}

type TokenizeResponse struct {
	Status      string `json:"status"`
	TokenCount  int    `json:"token-count"`
	UniqueCount int    `json:"unique-count"`
	BondCount   int    `json:"bond-count"`
}

// EulerianInfo is the live traversability diagnosis of a document's bond
// graph. Start and End are token surfaces, set only for open paths;
// Imbalanced lists the offending surfaces when no path exists.
type EulerianInfo struct {
	PathExists bool     `json:"path-exists"`
	Kind       string   `json:"kind"`
	Start      string   `json:"start,omitempty"`
	End        string   `json:"end,omitempty"`
	Imbalanced []string `json:"imbalanced,omitempty"`
}

type InfoDetail struct {
	Name         string       `json:"name"`
	Century      string       `json:"century-code"`
	DocID        string       `json:"doc-id"`
	TotalSlots   int          `json:"total-slots"`
	TokenCount   int          `json:"token-count"`
	UniqueCount  int          `json:"unique-count"`
	StarterCount int          `json:"starter-count"`
	BondCount    int          `json:"bond-count"`
	Eulerian     EulerianInfo `json:"eulerian"`
}

type InfoProvenance struct {
	IngestedAt  string `json:"ingested-at"`
	SourceChars int    `json:"source-chars"`
	Codec       string `json:"codec"`
	Tokenizer   string `json:"tokenizer"`
}

type InfoResponse struct {
	Status         string            `json:"status"`
	Detail         InfoDetail        `json:"detail"`
	Metadata       map[string]string `json:"metadata"`
	Provenance     InfoProvenance    `json:"provenance"`
	UnresolvedVars []string          `json:"unresolved-vars"`
}

type UpdateMetaResponse struct {
	Status        string `json:"status"`
	FieldsSet     int    `json:"fields-set"`
	FieldsRemoved int    `json:"fields-removed"`
}

type BondEntry struct {
	Token   int64  `json:"token"`
	Surface string `json:"surface"`
	Count   int    `json:"count"`
}

type BondsResponse struct {
	Status string      `json:"status"`
	Bonds  []BondEntry `json:"bonds"`
}

// ServerError is what the client surfaces when a response carries an
// error status.
type ServerError struct {
	Kind    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
