package preview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestream/indexer/internal/store"
	"github.com/attestream/indexer/internal/store/schema"
)

type fakeHTTPClient struct {
	mu        sync.Mutex
	responses map[string][]byte
	err       error
	requests  []string
}

func (f *fakeHTTPClient) GetRaw(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, url)
	if f.err != nil {
		return nil, f.err
	}
	return f.responses[url], nil
}

type previewStore struct {
	store.Store

	mu      sync.Mutex
	updates map[string]Metadata
}

func newPreviewStore() *previewStore {
	return &previewStore{updates: make(map[string]Metadata)}
}

func (s *previewStore) UpdatePostPreview(ctx context.Context, id string, title, description, imageURL *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := Metadata{}
	if title != nil {
		meta.Title = *title
	}
	if description != nil {
		meta.Description = *description
	}
	if imageURL != nil {
		meta.ImageURL = *imageURL
	}
	s.updates[id] = meta
	return nil
}

func (s *previewStore) get(id string) (Metadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.updates[id]
	return meta, ok
}

func (s *previewStore) GetPost(ctx context.Context, id string) (*schema.Post, error) {
	return nil, nil
}

func TestExtractURL(t *testing.T) {
	assert.Equal(t, "https://example.com/page", ExtractURL("check this out https://example.com/page wow"))
	assert.Equal(t, "http://a.io", ExtractURL("http://a.io"))
	assert.Equal(t, "", ExtractURL("no links here"))
}

func TestParseMetadata(t *testing.T) {
	body := []byte(`<html><head>
		<title>Fallback Title</title>
		<meta property="og:title" content="OG Title"/>
		<meta property="og:description" content="OG description"/>
		<meta property="og:image" content="https://example.com/img.png"/>
	</head><body></body></html>`)

	meta := ParseMetadata(body)
	assert.Equal(t, "OG Title", meta.Title)
	assert.Equal(t, "OG description", meta.Description)
	assert.Equal(t, "https://example.com/img.png", meta.ImageURL)
}

func TestParseMetadata_Fallbacks(t *testing.T) {
	body := []byte(`<html><head>
		<title>Page Title</title>
		<meta name="description" content="Meta description"/>
	</head><body></body></html>`)

	meta := ParseMetadata(body)
	assert.Equal(t, "Page Title", meta.Title)
	assert.Equal(t, "Meta description", meta.Description)
	assert.Equal(t, "", meta.ImageURL)
}

func TestParseMetadata_NotHTML(t *testing.T) {
	meta := ParseMetadata([]byte("plain text, not a document"))
	assert.Equal(t, "", meta.ImageURL)
}

func TestWorker_FetchesAndStoresPreview(t *testing.T) {
	url := "https://example.com/article"
	httpClient := &fakeHTTPClient{
		responses: map[string][]byte{
			url: []byte(`<html><head><meta property="og:title" content="Article"/></head></html>`),
		},
	}
	s := newPreviewStore()

	w := NewWorker(context.Background(), s, httpClient, 1, 10)
	w.Enqueue("0xp1", "read this "+url)
	w.Stop()

	meta, ok := s.get("0xp1")
	require.True(t, ok)
	assert.Equal(t, "Article", meta.Title)
}

func TestWorker_SkipsContentWithoutURL(t *testing.T) {
	httpClient := &fakeHTTPClient{responses: map[string][]byte{}}
	s := newPreviewStore()

	w := NewWorker(context.Background(), s, httpClient, 1, 10)
	w.Enqueue("0xp1", "no links in this post")
	w.Stop()

	assert.Empty(t, httpClient.requests)
	_, ok := s.get("0xp1")
	assert.False(t, ok)
}

func TestWorker_FetchFailureIsSwallowed(t *testing.T) {
	httpClient := &fakeHTTPClient{err: errors.New("connection refused")}
	s := newPreviewStore()

	w := NewWorker(context.Background(), s, httpClient, 1, 10)
	w.Enqueue("0xp1", "https://down.example.com")
	w.Stop()

	// The failure is logged only; nothing written, nothing panics
	_, ok := s.get("0xp1")
	assert.False(t, ok)
}

func TestWorker_PageWithoutMetadataSkipsWrite(t *testing.T) {
	url := "https://example.com/empty"
	httpClient := &fakeHTTPClient{
		responses: map[string][]byte{url: []byte(`<html><head></head><body></body></html>`)},
	}
	s := newPreviewStore()

	w := NewWorker(context.Background(), s, httpClient, 1, 10)
	w.Enqueue("0xp1", url)
	w.Stop()

	require.Eventually(t, func() bool {
		httpClient.mu.Lock()
		defer httpClient.mu.Unlock()
		return len(httpClient.requests) == 1
	}, time.Second, 10*time.Millisecond)

	_, ok := s.get("0xp1")
	assert.False(t, ok)
}
