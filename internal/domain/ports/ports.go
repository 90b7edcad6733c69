// Package ports defines the boundaries of the domain.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMService generates text responses from a chat model.
type LLMService interface {
	// Generate produces the full response for a message list.
	Generate(ctx context.Context, messages []entities.ChatMessage) (string, error)

	// GenerateStream produces a token stream. The channel is closed after
	// a token with Done set or an Error.
	GenerateStream(ctx context.Context, messages []entities.ChatMessage) (<-chan StreamToken, error)
}

// VectorStore persists and queries chunk embeddings in one collection.
type VectorStore interface {
	// EnsureCollection creates the collection if missing. With forceRecreate
	// an existing collection is dropped first.
	EnsureCollection(ctx context.Context, forceRecreate bool) error

	// Upsert inserts or replaces chunks by identity.
	Upsert(ctx context.Context, chunks []entities.Chunk) error

	// Query returns chunks ranked by descending similarity.
	Query(ctx context.Context, embedding []float32, opts entities.SearchOptions) ([]entities.QueryResult, error)

	// Delete removes chunks by identity.
	Delete(ctx context.Context, chunkIDs []string) error

	// Stats reports point and segment counts.
	Stats(ctx context.Context) (entities.CollectionStats, error)

	// Name is the collection name, used to serialize reindex runs.
	Name() string
}

// DocumentStore records the last ingested state of every chunk identity.
type DocumentStore interface {
	Get(ctx context.Context, id string) (*entities.DocRecord, error)
	Put(ctx context.Context, rec entities.DocRecord) error
	Delete(ctx context.Context, id string) error
	IDs(ctx context.Context) ([]string, error)
	IDsBySource(ctx context.Context, source string) ([]string, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// DocumentLoader reads documents from a single path.
type DocumentLoader interface {
	// Load reads a document from the given path.
	Load(ctx context.Context, path string) (*entities.Document, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// DocumentParser extracts text from binary document formats.
type DocumentParser interface {
	Parse(ctx context.Context, data []byte, filename string) (string, error)
	SupportedFormats() []string
}

// StreamToken is a single token in a streaming LLM response.
type StreamToken struct {
	Content string
	Done    bool
	Error   error
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, u *entities.User) error
	GetByID(ctx context.Context, id string) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
}

// ConversationRepository persists conversations.
type ConversationRepository interface {
	Create(ctx context.Context, c *entities.Conversation) error
	Get(ctx context.Context, id string) (*entities.Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]entities.Conversation, error)
}

// MessageRepository persists the append-only chat log.
type MessageRepository interface {
	Append(ctx context.Context, m *entities.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]entities.Message, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenService issues and verifies bearer tokens.
type TokenService interface {
	Issue(userID string) (string, error)
	Verify(token string) (userID string, err error)
}
