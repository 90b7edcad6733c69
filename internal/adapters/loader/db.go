package loader

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
)

// DBSource is a database and the queries whose rows become documents.
type DBSource struct {
	URI     string   `yaml:"uri" toml:"uri"`         // SQLite DSN, optionally prefixed with sqlite://
	Queries []string `yaml:"queries" toml:"queries"` // each row becomes one document
}

// DBLoader turns query rows into documents. A "content" or "text" column is
// used as the document body when present; other columns become metadata.
// Rows without one are rendered as "column: value" lines.
type DBLoader struct {
	open func(dsn string) (*gorm.DB, error)
}

// NewDBLoader creates a DBLoader backed by the pure-Go SQLite driver.
func NewDBLoader() *DBLoader {
	return &DBLoader{open: func(dsn string) (*gorm.DB, error) {
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	}}
}

// Load runs every query of src.
func (l *DBLoader) Load(ctx context.Context, src DBSource) ([]*entities.Document, error) {
	dsn := strings.TrimPrefix(src.URI, "sqlite://")
	if dsn == "" {
		return nil, fmt.Errorf("%w: db loader uri is empty", entities.ErrConfig)
	}
	db, err := l.open(dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dsn, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	var docs []*entities.Document
	for qi, query := range src.Queries {
		var rows []map[string]any
		if err := db.WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("running query %d: %w", qi, err)
		}
		for ri, row := range rows {
			source := fmt.Sprintf("db:%s#q%d/r%d", dsn, qi, ri)
			content, meta := rowDocument(row)
			if content == "" {
				continue
			}
			meta[entities.MetaSource] = source
			meta[entities.MetaPrivate] = "false"
			if _, ok := meta[entities.MetaFileName]; !ok {
				meta[entities.MetaFileName] = fmt.Sprintf("query %d row %d", qi, ri)
			}
			docs = append(docs, &entities.Document{
				ID:       generateDocID(source),
				Name:     meta[entities.MetaFileName],
				Path:     source,
				Content:  content,
				Metadata: meta,
			})
		}
	}
	return docs, nil
}

func rowDocument(row map[string]any) (string, map[string]string) {
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	meta := make(map[string]string, len(row))
	var body string
	var lines []string
	for _, col := range cols {
		val := stringify(row[col])
		lines = append(lines, col+": "+val)
		switch strings.ToLower(col) {
		case "content", "text":
			body = val
		default:
			meta[col] = val
		}
	}
	if body == "" {
		body = strings.Join(lines, "\n")
	}
	return strings.TrimSpace(body), meta
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
