package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
)

const defaultMaxPageBytes = 4 << 20

// WebURL is one crawl root.
type WebURL struct {
	BaseURL string `yaml:"base_url" toml:"base_url"`
	Prefix  string `yaml:"prefix" toml:"prefix"` // only follow links under this prefix
	Depth   int    `yaml:"depth" toml:"depth"`   // 0 fetches only BaseURL
}

// WebLoader fetches pages and follows same-prefix links to a fixed depth.
type WebLoader struct {
	client   *http.Client
	limiter  *rate.Limiter
	maxBytes int64
	maxPages int
}

// NewWebLoader creates a WebLoader making at most rps requests per second.
func NewWebLoader(rps float64) *WebLoader {
	if rps <= 0 {
		rps = 2
	}
	return &WebLoader{
		client:   &http.Client{Timeout: 20 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		maxBytes: defaultMaxPageBytes,
		maxPages: 200,
	}
}

// Load crawls every root and returns one document per fetched page.
func (w *WebLoader) Load(ctx context.Context, roots []WebURL) ([]*entities.Document, error) {
	var docs []*entities.Document
	seen := make(map[string]bool)

	for _, root := range roots {
		type item struct {
			url   string
			depth int
		}
		prefix := root.Prefix
		if prefix == "" {
			prefix = root.BaseURL
		}
		queue := []item{{url: root.BaseURL}}

		for len(queue) > 0 && len(seen) < w.maxPages {
			cur := queue[0]
			queue = queue[1:]
			if seen[cur.url] {
				continue
			}
			seen[cur.url] = true

			if err := w.limiter.Wait(ctx); err != nil {
				return docs, err
			}
			title, text, links, err := w.fetch(ctx, cur.url)
			if err != nil {
				log.Printf("[WARN] Skipping %s: %v", cur.url, err)
				continue
			}
			if text != "" {
				docs = append(docs, &entities.Document{
					ID:      generateDocID(cur.url),
					Name:    title,
					Path:    cur.url,
					Content: text,
					Metadata: map[string]string{
						entities.MetaSource:   cur.url,
						entities.MetaFileName: pageName(cur.url, title),
						entities.MetaPrivate:  "false",
					},
					CreatedAt: time.Now(),
					UpdatedAt: time.Now(),
				})
			}

			if cur.depth >= root.Depth {
				continue
			}
			for _, link := range links {
				if strings.HasPrefix(link, prefix) && !seen[link] {
					queue = append(queue, item{url: link, depth: cur.depth + 1})
				}
			}
		}
	}
	return docs, nil
}

// fetch downloads a page and returns its title, text and absolute links.
func (w *WebLoader) fetch(ctx context.Context, pageURL string) (string, string, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", nil, err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return "", "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if resp.ContentLength > w.maxBytes {
		return "", "", nil, fmt.Errorf("page too large")
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, w.maxBytes))
	if err != nil {
		return "", "", nil, err
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(ct, "text/plain") {
		return "", strings.TrimSpace(string(body)), nil, nil
	}
	if !strings.Contains(ct, "text/html") {
		return "", "", nil, fmt.Errorf("%w: content-type %s", entities.ErrUnsupportedType, ct)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", nil, err
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	links := collectLinks(doc, resp.Request.URL)
	return title, mainText(doc), links, nil
}

func collectLinks(doc *goquery.Document, base *url.URL) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := base.Parse(strings.TrimSpace(href))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		u.Fragment = ""
		links = append(links, u.String())
	})
	return links
}

func pageName(pageURL, title string) string {
	if title != "" {
		return title
	}
	if u, err := url.Parse(pageURL); err == nil {
		return u.Host + u.Path
	}
	return pageURL
}
