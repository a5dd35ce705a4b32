package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/filmzi/filelink/backend/internal/telegram"
	"github.com/filmzi/filelink/shared/domain"
	internal_errors "github.com/filmzi/filelink/shared/errors"
)

// MockHistorySource serves pages from pageFunc and counts calls.
type MockHistorySource struct {
	name     string
	pageFunc func(cursor int64, limit int) (domain.HistoryPage, error)

	mu      sync.Mutex
	calls   int
	cursors []int64
}

func (m *MockHistorySource) Name() string { return m.name }

func (m *MockHistorySource) Page(ctx context.Context, cursor int64, limit int) (domain.HistoryPage, error) {
	m.mu.Lock()
	m.calls++
	m.cursors = append(m.cursors, cursor)
	m.mu.Unlock()
	if m.pageFunc != nil {
		return m.pageFunc(cursor, limit)
	}
	return domain.HistoryPage{Next: cursor}, nil
}

func (m *MockHistorySource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// logSource returns a source backed by an in-memory update log. Update ids
// are the slice index; cursor semantics match the Bot API.
func logSource(name string, texts ...string) *MockHistorySource {
	return &MockHistorySource{
		name: name,
		pageFunc: func(cursor int64, limit int) (domain.HistoryPage, error) {
			page := domain.HistoryPage{Next: cursor}
			for i := int(cursor); i < len(texts) && page.Count < limit; i++ {
				page.Count++
				page.Next = int64(i) + 1
				if texts[i] != "" {
					page.Messages = append(page.Messages, domain.HistoryMessage{UpdateId: int64(i), Text: texts[i]})
				}
			}
			return page, nil
		},
	}
}

// fullPageSource always returns a full page of chatter that never matches.
func fullPageSource(name string) *MockHistorySource {
	return &MockHistorySource{
		name: name,
		pageFunc: func(cursor int64, limit int) (domain.HistoryPage, error) {
			page := domain.HistoryPage{Count: limit, Next: cursor + int64(limit)}
			for i := 0; i < limit; i++ {
				page.Messages = append(page.Messages, domain.HistoryMessage{UpdateId: cursor + int64(i), Text: "chatter"})
			}
			return page, nil
		},
	}
}

func failingSource(name string) *MockHistorySource {
	return &MockHistorySource{
		name: name,
		pageFunc: func(cursor int64, limit int) (domain.HistoryPage, error) {
			return domain.HistoryPage{}, fmt.Errorf("connection reset")
		},
	}
}

// MockMappingStorage is an in-memory MappingStorage with overridable errors.
type MockMappingStorage struct {
	mu       sync.Mutex
	items    map[domain.ShortId]domain.FileMapping
	getCalls int
	putCalls int

	getErr  error
	putErr  error
	listErr error
}

func newMockStorage(mappings ...domain.FileMapping) *MockMappingStorage {
	s := &MockMappingStorage{items: make(map[domain.ShortId]domain.FileMapping)}
	for _, m := range mappings {
		s.items[m.ShortId] = m
	}
	return s
}

func (s *MockMappingStorage) Put(ctx context.Context, m domain.FileMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	if s.putErr != nil {
		return s.putErr
	}
	s.items[m.ShortId] = m
	return nil
}

func (s *MockMappingStorage) Get(ctx context.Context, id domain.ShortId) (domain.FileMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return domain.FileMapping{}, s.getErr
	}
	m, ok := s.items[id]
	if !ok {
		return domain.FileMapping{}, internal_errors.NotFound
	}
	return m, nil
}

func (s *MockMappingStorage) List(ctx context.Context) ([]domain.FileMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.FileMapping
	for _, m := range s.items {
		out = append(out, m)
	}
	return out, nil
}

func (s *MockMappingStorage) Ping(ctx context.Context) error { return nil }

// MockChannelWriter records archived messages and posted entries.
type MockChannelWriter struct {
	archiveErr error
	// postErr returns the error for the n-th (0-based) PostEntry call.
	postErr func(n int, text string) error

	archived []int64
	entries  []string
	replyTos []int64
	posts    int
}

func (c *MockChannelWriter) Archive(ctx context.Context, fromChat, messageId int64) (int64, error) {
	if c.archiveErr != nil {
		return 0, c.archiveErr
	}
	c.archived = append(c.archived, messageId)
	return 1000 + messageId, nil
}

func (c *MockChannelWriter) PostEntry(ctx context.Context, text string, replyTo int64) error {
	n := c.posts
	c.posts++
	if c.postErr != nil {
		if err := c.postErr(n, text); err != nil {
			return err
		}
	}
	c.entries = append(c.entries, text)
	c.replyTos = append(c.replyTos, replyTo)
	return nil
}

// MockResolver resolves from a fixed map.
type MockResolver struct {
	items        map[domain.ShortId]domain.FileMapping
	list         []domain.FileMapping
	listErr      error
	resolveCalls int
	remembered   []domain.FileMapping
}

func (r *MockResolver) Resolve(ctx context.Context, id domain.ShortId) (domain.FileMapping, error) {
	r.resolveCalls++
	m, ok := r.items[id]
	if !ok {
		return domain.FileMapping{}, internal_errors.NotFound
	}
	return m, nil
}

func (r *MockResolver) List(ctx context.Context) ([]domain.FileMapping, error) {
	return r.list, r.listErr
}

func (r *MockResolver) Remember(m domain.FileMapping) {
	r.remembered = append(r.remembered, m)
}

// MockFileHost serves getFile from fileFunc and file bodies from openFunc.
type MockFileHost struct {
	fileFunc func(fileId string) (*telegram.File, error)
	openFunc func(filePath, rangeHeader string) (*http.Response, error)

	getFileCalls int
	openCalls    int
}

func (h *MockFileHost) GetFile(ctx context.Context, fileId string) (*telegram.File, error) {
	h.getFileCalls++
	if h.fileFunc != nil {
		return h.fileFunc(fileId)
	}
	return &telegram.File{FileId: fileId, FilePath: "documents/" + fileId}, nil
}

func (h *MockFileHost) OpenFile(ctx context.Context, filePath, rangeHeader string) (*http.Response, error) {
	h.openCalls++
	if h.openFunc != nil {
		return h.openFunc(filePath, rangeHeader)
	}
	return textResponse(http.StatusOK, "content"), nil
}

// trackedBody reports whether it was closed.
type trackedBody struct {
	io.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

func textResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"text/plain"}},
		Body:       &trackedBody{Reader: strings.NewReader(body)},
	}
}
