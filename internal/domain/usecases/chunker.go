package usecases

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
)

// ChunkUnit selects how chunk size and overlap are measured.
type ChunkUnit string

const (
	UnitChars  ChunkUnit = "chars"
	UnitTokens ChunkUnit = "tokens"
)

const (
	DefaultChunkSize    = 1024
	DefaultChunkOverlap = 20
)

// Chunker splits documents into overlapping windows.
type Chunker struct {
	size    int
	overlap int
	unit    ChunkUnit
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithChunkSize sets the maximum window size.
func WithChunkSize(n int) ChunkerOption {
	return func(c *Chunker) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithOverlap sets how much consecutive windows share.
func WithOverlap(n int) ChunkerOption {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlap = n
		}
	}
}

// WithUnit sets the measuring unit.
func WithUnit(u ChunkUnit) ChunkerOption {
	return func(c *Chunker) {
		if u == UnitChars || u == UnitTokens {
			c.unit = u
		}
	}
}

// NewChunker creates a Chunker. Overlap is clamped below the window size.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap, unit: UnitChars}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

// Split partitions a document into chunks. Chunk identity depends only on the
// document source and the chunk position, so a rerun over the same input
// yields the same identities and a changed file yields changed content hashes.
// Documents without a source are keyed by their ID, or by their content.
func (c *Chunker) Split(doc *entities.Document) []entities.Chunk {
	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return nil
	}

	var parts []string
	if c.unit == UnitTokens {
		parts = c.splitTokens(content)
	} else {
		parts = c.splitChars(content)
	}

	source := doc.Source()
	key := identityKey(doc, source, content)
	docID := doc.ID
	if docID == "" {
		docID = hashString(key)[:16]
	}

	chunks := make([]entities.Chunk, 0, len(parts))
	for i, text := range parts {
		meta := make(map[string]string, len(doc.Metadata)+3)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		meta[entities.MetaSource] = source
		meta[entities.MetaDocID] = docID
		if _, ok := meta[entities.MetaFileName]; !ok && doc.Name != "" {
			meta[entities.MetaFileName] = doc.Name
		}
		chunks = append(chunks, entities.Chunk{
			ID:          ChunkID(key, i),
			DocumentID:  docID,
			Content:     text,
			ContentHash: hashString(text),
			Index:       i,
			Metadata:    meta,
		})
	}
	return chunks
}

// splitChars windows over runes, preferring to break at a space.
func (c *Chunker) splitChars(content string) []string {
	runes := []rune(content)
	var out []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		// Try to break at word boundary
		if end < len(runes) {
			if lastSpace := lastSpaceIndex(runes[start:end]); lastSpace > 0 {
				end = start + lastSpace
			}
		}

		if text := strings.TrimSpace(string(runes[start:end])); text != "" {
			out = append(out, text)
		}
		if end >= len(runes) {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func (c *Chunker) splitTokens(content string) []string {
	words := strings.Fields(content)
	var out []string
	step := c.size - c.overlap
	for start := 0; start < len(words); start += step {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return out
}

func lastSpaceIndex(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '\t' {
			return i
		}
	}
	return -1
}

// ChunkID derives the identity of the chunk at position index of source.
func ChunkID(source string, index int) string {
	return hashString(source + "\x00" + strconv.Itoa(index))[:32]
}

// identityKey is the document-level part of a chunk identity.
func identityKey(doc *entities.Document, source, content string) string {
	if source != entities.UnknownSource {
		return source
	}
	if doc.ID != "" {
		return "id:" + doc.ID
	}
	return "content:" + hashString(content)
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// EstimateTokens approximates the token count of s at four characters per token.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
