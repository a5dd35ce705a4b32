package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/filmzi/filelink/backend/internal/service"
	"github.com/filmzi/filelink/backend/internal/telegram"
	"github.com/filmzi/filelink/shared/config"
	"github.com/filmzi/filelink/shared/domain"
	"github.com/go-chi/chi/v5"
)

func createRequest(t *testing.T, method, url string, body []byte) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, url, bytes.NewBuffer(body))
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Public.BaseURL = "https://files.example.com"
	cfg.Public.MinShortIdLength = config.DefaultMinShortIdLength
	return cfg
}

// testRouter mounts the handler routes without the production middleware.
func testRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.HandleFunc("/webhook", h.Webhook)
	r.Get("/dl/{slug}", h.Download)
	r.Head("/dl/{slug}", h.Download)
	r.Get("/dl/{shortId}/{fileName}", h.DownloadByParts)
	r.Get("/stream/{slug}", h.Stream)
	r.HandleFunc("/db/{action}", h.DB)
	return r
}

type MockUploadService struct {
	MockUpload func(ctx context.Context, req service.UploadRequest) (*service.UploadResult, error)
	calls      []service.UploadRequest
}

func (m *MockUploadService) Upload(ctx context.Context, req service.UploadRequest) (*service.UploadResult, error) {
	m.calls = append(m.calls, req)
	if m.MockUpload != nil {
		return m.MockUpload(ctx, req)
	}
	return &service.UploadResult{}, nil
}

type MockDownloadService struct {
	MockOpen func(ctx context.Context, id domain.ShortId, rangeHeader string) (*service.Stream, error)
	calls    int
}

func (m *MockDownloadService) Open(ctx context.Context, id domain.ShortId, rangeHeader string) (*service.Stream, error) {
	m.calls++
	if m.MockOpen != nil {
		return m.MockOpen(ctx, id, rangeHeader)
	}
	return nil, nil
}

type MockBackupService struct {
	MockSave    func(ctx context.Context, m domain.FileMapping) (int, error)
	MockGet     func(ctx context.Context, id domain.ShortId) (domain.FileMapping, error)
	MockList    func(ctx context.Context) ([]domain.FileMapping, error)
	MockCleanup func(ctx context.Context, daysOld int) (*service.CleanupReport, error)
	calls       int
}

func (m *MockBackupService) Save(ctx context.Context, fm domain.FileMapping) (int, error) {
	m.calls++
	if m.MockSave != nil {
		return m.MockSave(ctx, fm)
	}
	return 0, nil
}

func (m *MockBackupService) Get(ctx context.Context, id domain.ShortId) (domain.FileMapping, error) {
	m.calls++
	if m.MockGet != nil {
		return m.MockGet(ctx, id)
	}
	return domain.FileMapping{}, nil
}

func (m *MockBackupService) List(ctx context.Context) ([]domain.FileMapping, error) {
	m.calls++
	if m.MockList != nil {
		return m.MockList(ctx)
	}
	return nil, nil
}

func (m *MockBackupService) Cleanup(ctx context.Context, daysOld int) (*service.CleanupReport, error) {
	m.calls++
	if m.MockCleanup != nil {
		return m.MockCleanup(ctx, daysOld)
	}
	return &service.CleanupReport{}, nil
}

type MockReplier struct {
	mu      sync.Mutex
	sent    []telegram.SendMessageParams
	answers []string
	deleted []int64
	err     error
	// markupErr fails only messages that carry a keyboard.
	markupErr error
}

func (m *MockReplier) SendMessage(ctx context.Context, p telegram.SendMessageParams) (*telegram.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, p)
	if m.err != nil {
		return nil, m.err
	}
	if m.markupErr != nil && p.ReplyMarkup != nil {
		return nil, m.markupErr
	}
	return &telegram.Message{MessageId: int64(len(m.sent)), Chat: telegram.Chat{Id: p.ChatId}}, nil
}

func (m *MockReplier) AnswerCallback(ctx context.Context, callbackId, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, text)
	return nil
}

func (m *MockReplier) DeleteMessage(ctx context.Context, chatId, messageId int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, messageId)
	return nil
}

func (m *MockReplier) last() telegram.SendMessageParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return telegram.SendMessageParams{}
	}
	return m.sent[len(m.sent)-1]
}

// newStream fakes an upstream response.
func newStream(m domain.FileMapping, status int, header http.Header, body string) *service.Stream {
	if header == nil {
		header = http.Header{}
	}
	return &service.Stream{Mapping: m, Status: status, Header: header, Body: &closeTracker{Reader: strings.NewReader(body)}}
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}
