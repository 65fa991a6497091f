package preview

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/attestream/indexer/internal/adapter"
	"github.com/attestream/indexer/internal/logger"
	"github.com/attestream/indexer/internal/store"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 256
	fetchTimeout     = 15 * time.Second
)

// urlPattern matches the first http(s) URL embedded in post content
var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// Metadata holds the preview fields extracted from a fetched page
type Metadata struct {
	Title       string
	Description string
	ImageURL    string
}

// Worker fetches link previews for posts in the background. Failures are
// logged and never surfaced; the posts they belong to stay valid without
// a preview.
type Worker interface {
	// Enqueue schedules preview extraction for a post. It returns
	// immediately; content without an extractable URL is skipped.
	Enqueue(postID string, content string)

	// Stop drains the queue and stops the workers
	Stop()
}

type worker struct {
	pool  pond.Pool
	http  adapter.HTTPClient
	store store.Store
}

// NewWorker creates a preview Worker with its own bounded pool
func NewWorker(ctx context.Context, s store.Store, httpClient adapter.HTTPClient, workers, queueSize int) Worker {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &worker{
		pool:  pond.NewPool(workers, pond.WithQueueSize(queueSize), pond.WithContext(ctx)),
		http:  httpClient,
		store: s,
	}
}

// ExtractURL returns the first http(s) URL in the content, or "" when none
func ExtractURL(content string) string {
	return urlPattern.FindString(content)
}

func (w *worker) Enqueue(postID string, content string) {
	url := ExtractURL(content)
	if url == "" {
		return
	}

	w.pool.Submit(func() {
		w.fetch(postID, url)
	})
}

func (w *worker) Stop() {
	w.pool.StopAndWait()
}

func (w *worker) fetch(postID string, url string) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	body, err := w.http.GetRaw(ctx, url)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to fetch link preview",
			zap.String("post_id", postID),
			zap.String("url", url),
			zap.Error(err))
		return
	}

	meta := ParseMetadata(body)
	if meta.Title == "" && meta.Description == "" && meta.ImageURL == "" {
		logger.DebugCtx(ctx, "Page carries no preview metadata",
			zap.String("post_id", postID),
			zap.String("url", url))
		return
	}

	var title, description, imageURL *string
	if meta.Title != "" {
		title = &meta.Title
	}
	if meta.Description != "" {
		description = &meta.Description
	}
	if meta.ImageURL != "" {
		imageURL = &meta.ImageURL
	}

	if err := w.store.UpdatePostPreview(ctx, postID, title, description, imageURL); err != nil {
		logger.WarnCtx(ctx, "Failed to store link preview",
			zap.String("post_id", postID),
			zap.Error(err))
	}
}

// ParseMetadata extracts Open Graph metadata from an HTML document,
// falling back to the title tag and the description meta tag
func ParseMetadata(body []byte) Metadata {
	var meta Metadata

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return meta
	}

	var titleTag string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if n.FirstChild != nil && titleTag == "" {
					titleTag = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				var property, name, content string
				for _, attr := range n.Attr {
					switch attr.Key {
					case "property":
						property = attr.Val
					case "name":
						name = attr.Val
					case "content":
						content = attr.Val
					}
				}

				switch property {
				case "og:title":
					meta.Title = content
				case "og:description":
					meta.Description = content
				case "og:image":
					meta.ImageURL = content
				}
				if name == "description" && meta.Description == "" {
					meta.Description = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if meta.Title == "" {
		meta.Title = titleTag
	}

	return meta
}
