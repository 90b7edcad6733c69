// Package loader provides document loading adapters for files, web pages and
// database rows.
package loader

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

// SupportedExtensions lists every file type accepted for upload and indexing.
var SupportedExtensions = []string{
	".pdf", ".txt", ".md", ".docx", ".doc", ".csv",
	".xlsx", ".xls", ".json", ".html", ".htm",
}

// IsSupported reports whether path has a supported extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

var _ ports.DocumentLoader = (*FileLoader)(nil)

type extractFunc func(ctx context.Context, path string) (string, error)

// FileLoader reads a local file and extracts its text based on extension.
type FileLoader struct {
	extractors map[string]extractFunc
}

// NewFileLoader creates a FileLoader. pdf may be nil, in which case PDF
// files fail to load with ErrUnsupportedType.
func NewFileLoader(pdf ports.DocumentParser) *FileLoader {
	l := &FileLoader{extractors: map[string]extractFunc{
		".txt":  readText,
		".md":   readText,
		".csv":  readText,
		".json": readText,
		".html": readHTML,
		".htm":  readHTML,
		".xlsx": readSpreadsheet,
		".docx": readDocx,
	}}
	if pdf != nil {
		l.extractors[".pdf"] = func(ctx context.Context, path string) (string, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return "", err
			}
			return pdf.Parse(ctx, data, filepath.Base(path))
		}
	}
	return l
}

// Load reads a document from the given path. The document source is the
// canonical absolute path.
func (l *FileLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	path = entities.CanonicalPath(path)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", entities.ErrNotFound, path)
		}
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	extract, ok := l.extractors[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", entities.ErrUnsupportedType, ext)
	}

	text, err := extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", filepath.Base(path), err)
	}

	return &entities.Document{
		ID:      generateDocID(path),
		Name:    filepath.Base(path),
		Path:    path,
		Content: cleanContent(text),
		Metadata: map[string]string{
			entities.MetaSource:   path,
			entities.MetaFileName: filepath.Base(path),
			entities.MetaPrivate:  "false",
		},
		CreatedAt: info.ModTime(),
		UpdatedAt: time.Now(),
	}, nil
}

// SupportedExtensions returns the extensions this loader can extract.
func (l *FileLoader) SupportedExtensions() []string {
	exts := make([]string, 0, len(l.extractors))
	for ext := range l.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// LoadDir loads every supported file under dir. Files that fail to load are
// logged and skipped.
func (l *FileLoader) LoadDir(ctx context.Context, dir string, recursive bool) ([]*entities.Document, error) {
	var docs []*entities.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !IsSupported(path) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		doc, err := l.Load(ctx, path)
		if err != nil {
			log.Printf("[WARN] Skipping %s: %v", path, err)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return docs, nil
}

func readText(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readHTML(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	_, text, err := extractHTML(f)
	return text, err
}

// readSpreadsheet renders each sheet as tab separated rows.
func readSpreadsheet(ctx context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("reading sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n", sheet)
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// readDocx extracts paragraph text from word/document.xml.
func readDocx(ctx context.Context, path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return docxText(rc)
	}
	return "", errors.New("word/document.xml not found")
}

func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

// generateDocID creates a deterministic ID for a document.
func generateDocID(source string) string {
	hash := sha256.Sum256([]byte(source))
	return hex.EncodeToString(hash[:8])
}

// cleanContent drops control characters and NULs left by extractors.
func cleanContent(content string) string {
	var cleaned strings.Builder
	cleaned.Grow(len(content))
	for _, r := range content {
		if r >= 32 || r == '\n' || r == '\t' {
			if r != 0xFFFD {
				cleaned.WriteRune(r)
			}
		}
	}
	return strings.TrimSpace(cleaned.String())
}
