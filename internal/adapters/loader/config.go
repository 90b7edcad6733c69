package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
)

// SourceKind identifies which loader handles a Source.
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceWeb  SourceKind = "web"
	SourceDB   SourceKind = "db"
)

// FileParams configures the directory loader.
type FileParams struct {
	DataDir   string `yaml:"data_dir" toml:"data_dir"`
	Recursive bool   `yaml:"recursive" toml:"recursive"`
}

// WebParams configures the web crawler.
type WebParams struct {
	URLs []WebURL `yaml:"urls" toml:"urls"`
}

// Source is one configured loader. Exactly one of File, Web or DB is set,
// matching Kind.
type Source struct {
	Kind SourceKind
	File *FileParams
	Web  *WebParams
	DB   *DBSource
}

type loadersFile struct {
	File *FileParams `yaml:"file" toml:"file"`
	Web  *WebParams  `yaml:"web" toml:"web"`
	DB   []DBSource  `yaml:"db" toml:"db"`
}

// LoadConfig reads a loaders file (YAML or TOML, chosen by extension).
// A missing file yields a single file source over defaultDir.
func LoadConfig(path, defaultDir string) ([]Source, error) {
	fallback := []Source{{Kind: SourceFile, File: &FileParams{DataDir: defaultDir, Recursive: true}}}
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fallback, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading loaders config: %w", err)
	}

	var cfg loadersFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported loaders config format %q", entities.ErrConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", entities.ErrConfig, path, err)
	}

	var sources []Source
	if cfg.File != nil {
		if cfg.File.DataDir == "" {
			cfg.File.DataDir = defaultDir
		}
		sources = append(sources, Source{Kind: SourceFile, File: cfg.File})
	}
	if cfg.Web != nil && len(cfg.Web.URLs) > 0 {
		sources = append(sources, Source{Kind: SourceWeb, Web: cfg.Web})
	}
	for i := range cfg.DB {
		sources = append(sources, Source{Kind: SourceDB, DB: &cfg.DB[i]})
	}
	if len(sources) == 0 {
		return fallback, nil
	}
	return sources, nil
}

// Loaders dispatches configured sources to their loader.
type Loaders struct {
	Files *FileLoader
	Web   *WebLoader
	DB    *DBLoader
}

// LoadAll loads every source and concatenates the documents.
func (l *Loaders) LoadAll(ctx context.Context, sources []Source) ([]*entities.Document, error) {
	var docs []*entities.Document
	for _, src := range sources {
		var (
			batch []*entities.Document
			err   error
		)
		switch src.Kind {
		case SourceFile:
			batch, err = l.Files.LoadDir(ctx, src.File.DataDir, src.File.Recursive)
		case SourceWeb:
			batch, err = l.Web.Load(ctx, src.Web.URLs)
		case SourceDB:
			batch, err = l.DB.Load(ctx, *src.DB)
		default:
			err = fmt.Errorf("%w: unknown loader %q", entities.ErrConfig, src.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("%s loader: %w", src.Kind, err)
		}
		docs = append(docs, batch...)
	}
	return docs, nil
}
