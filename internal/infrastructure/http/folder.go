package http

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/0xcro3dile/ragchat/internal/adapters/loader"
	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/infrastructure/logger"
)

const maxUploadBytes = 100 << 20

var viewTypes = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",
	".json": "application/json",
	// markup is shown as source, never rendered on the API origin
	".html": "text/plain; charset=utf-8",
	".htm":  "text/plain; charset=utf-8",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
}

type fileInfo struct {
	Name         string  `json:"name"`
	Size         int64   `json:"size"`
	LastModified float64 `json:"last_modified"`
	Type         string  `json:"type"`
}

func (s *Server) handleListFiles(c echo.Context) error {
	if err := os.MkdirAll(s.opts.DataDir, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(s.opts.DataDir)
	if err != nil {
		return err
	}

	files := make([]fileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		kind := "unsupported"
		if loader.IsSupported(e.Name()) {
			kind = "supported"
		}
		files = append(files, fileInfo{
			Name:         e.Name(),
			Size:         info.Size(),
			LastModified: float64(info.ModTime().UnixNano()) / 1e9,
			Type:         kind,
		})
	}
	sort.Slice(files, func(i, j int) bool {
		if (files[i].Type == "supported") != (files[j].Type == "supported") {
			return files[i].Type == "supported"
		}
		return files[i].Name < files[j].Name
	})

	return c.JSON(http.StatusOK, echo.Map{
		"files":                files,
		"count":                len(files),
		"message":              fmt.Sprintf("found %d file(s) in %s", len(files), s.opts.DataDir),
		"supported_extensions": loader.SupportedExtensions,
	})
}

// handleUpload stores the file under the data dir and indexes it in the
// background.
func (s *Server) handleUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fmt.Errorf("%w: multipart field \"file\" is required", entities.ErrValidation)
	}
	name := filepath.Base(filepath.Clean("/" + fh.Filename))
	if name == "/" || name == "." || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: invalid file name", entities.ErrValidation)
	}
	if !loader.IsSupported(name) {
		return fmt.Errorf("%w: unsupported file format, accepted: %s",
			entities.ErrUnsupportedType, strings.Join(loader.SupportedExtensions, ", "))
	}
	if fh.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	if err := os.MkdirAll(s.opts.DataDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(s.opts.DataDir, name)
	size, err := saveUpload(fh, path)
	if err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	s.indexing(path)

	return c.JSON(http.StatusCreated, echo.Map{
		"message":  fmt.Sprintf("file %s uploaded and being indexed", name),
		"filename": name,
		"size":     size,
		"status":   "indexing",
	})
}

func saveUpload(fh *multipart.FileHeader, path string) (int64, error) {
	src, err := fh.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	tmp := path + ".part"
	dst, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return n, os.Rename(tmp, path)
}

// index runs outside the request, so it uses a fresh context.
func (s *Server) index(path string) {
	logger.Infof("Indexing %s", path)
	changed, err := s.deps.Indexer.IngestFile(context.Background(), path)
	if err != nil {
		logger.Errorf("Indexing %s failed: %v", path, err)
		return
	}
	logger.Infof("Indexed %s (changed=%t)", path, changed)
}

func (s *Server) handleViewFile(c echo.Context) error {
	name := filepath.Base(filepath.Clean("/" + c.Param("name")))
	path := filepath.Join(s.opts.DataDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || name == "/" {
		return fmt.Errorf("%w: file %s", entities.ErrNotFound, name)
	}

	ctype, ok := viewTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return fmt.Errorf("%w: file %s", entities.ErrNotFound, name)
	}
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, ctype)
	h.Set(echo.HeaderXContentTypeOptions, "nosniff")
	h.Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", name))
	return c.File(path)
}

func (s *Server) handleDebug(c echo.Context) error {
	ctx := c.Request().Context()
	stats, err := s.deps.VectorStore.Stats(ctx)
	if err != nil {
		return err
	}
	records, err := s.deps.DocStore.Count(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"vector_store": s.deps.VectorStore.Name(),
		"points":       stats.PointCount,
		"segments":     stats.SegmentCount,
		"records":      records,
	})
}
