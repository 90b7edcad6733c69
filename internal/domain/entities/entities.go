// Package entities contains core business entities.
// Pure domain objects with no knowledge of storage, transport or providers.
package entities

import (
	"path/filepath"
	"time"
)

// Metadata keys shared by loaders, the pipeline and the vector store payload.
const (
	MetaSource   = "source"
	MetaPrivate  = "private"
	MetaDocID    = "doc_id"
	MetaFileName = "file_name"
)

// UnknownSource is used when a document carries no source metadata.
const UnknownSource = "unknown"

// Document is a raw source unit produced by a loader (file, web page or DB row).
type Document struct {
	ID        string
	Name      string
	Path      string
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanonicalPath returns the absolute, cleaned form of a file path so the same
// file always maps to the same source.
func CanonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// Source returns the origin of the document, falling back to UnknownSource.
func (d *Document) Source() string {
	if d.Metadata != nil {
		if s := d.Metadata[MetaSource]; s != "" {
			return s
		}
	}
	if d.Path != "" {
		return d.Path
	}
	return UnknownSource
}

// Chunk is a piece of a document, the unit of embedding and retrieval.
type Chunk struct {
	ID          string // identity: stable for the same source and position
	DocumentID  string
	Content     string
	ContentHash string
	Index       int // position in document
	Metadata    map[string]string
	Embedding   []float32
}

// Source returns the chunk's origin as recorded in its metadata.
func (c *Chunk) Source() string {
	if s := c.Metadata[MetaSource]; s != "" {
		return s
	}
	return UnknownSource
}

// QueryResult is a ranked search hit.
type QueryResult struct {
	Chunk     Chunk
	Score     float64
	SourceDoc string // file name for citation
}

// DocRecord is the document store's last known state for a chunk identity.
type DocRecord struct {
	ID          string
	ContentHash string
	Source      string
	UpdatedAt   time.Time
}

// CollectionStats reports the size of a vector collection.
type CollectionStats struct {
	PointCount   uint64
	SegmentCount uint64
}

// Roles of a chat message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is a conversation turn sent to the model.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatRequest represents a query with conversation context.
type ChatRequest struct {
	Query   string
	History []ChatMessage
	Filter  *SearchFilter
}

// ChatResponse is the model's full answer with its sources.
type ChatResponse struct {
	Answer  string
	Sources []QueryResult
}

// SearchFilter scopes retrieval to a subset of the corpus.
type SearchFilter struct {
	DocIDs  []string
	Private *bool
}

// SearchOptions controls a similarity query.
type SearchOptions struct {
	TopK      int
	Threshold float64
	Filter    *SearchFilter
}

// User is an account that owns conversations.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Conversation groups the messages of one chat thread.
type Conversation struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
}

// Message is a persisted chat message. Messages are append-only.
type Message struct {
	ID             string
	ConversationID string
	UserID         string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// SourceRef is the client-facing citation for a streamed answer.
type SourceRef struct {
	FileName string  `json:"file_name"`
	Score    float64 `json:"score"`
	Source   string  `json:"source"`
}
