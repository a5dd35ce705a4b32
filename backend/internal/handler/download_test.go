package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/filmzi/filelink/backend/internal/service"
	"github.com/filmzi/filelink/shared/domain"
	internal_errors "github.com/filmzi/filelink/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDownload(download *MockDownloadService) *Handler {
	return &Handler{download: download, cfg: testConfig()}
}

func get(t *testing.T, h *Handler, url string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := createRequest(t, http.MethodGet, url, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rr, req)
	return rr
}

func TestDownload(t *testing.T) {
	report := domain.FileMapping{ShortId: "482913", FileHandle: "F1", Filename: "report.pdf", Size: 2048}

	t.Run("full download", func(t *testing.T) {
		var body *closeTracker
		download := &MockDownloadService{
			MockOpen: func(ctx context.Context, id domain.ShortId, rangeHeader string) (*service.Stream, error) {
				assert.Equal(t, domain.ShortId("482913"), id)
				assert.Empty(t, rangeHeader)
				s := newStream(report, http.StatusOK, http.Header{
					"Content-Type":   {"application/pdf"},
					"Content-Length": {"11"},
				}, "hello world")
				body = s.Body.(*closeTracker)
				return s, nil
			},
		}
		h := setupDownload(download)

		rr := get(t, h, "/dl/report.pdf-482913", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, `attachment; filename="report.pdf"`, rr.Header().Get("Content-Disposition"))
		assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
		assert.Equal(t, "11", rr.Header().Get("Content-Length"))
		assert.Equal(t, "bytes", rr.Header().Get("Accept-Ranges"))
		assert.Equal(t, "hello world", rr.Body.String())
		assert.True(t, body.closed, "upstream body must be closed")
	})

	t.Run("range request", func(t *testing.T) {
		download := &MockDownloadService{
			MockOpen: func(ctx context.Context, id domain.ShortId, rangeHeader string) (*service.Stream, error) {
				assert.Equal(t, "bytes=100-199", rangeHeader)
				return newStream(report, http.StatusPartialContent, http.Header{
					"Content-Range":  {"bytes 100-199/1000"},
					"Content-Length": {"100"},
				}, string(make([]byte, 100))), nil
			},
		}
		h := setupDownload(download)

		rr := get(t, h, "/dl/report.pdf-482913", http.Header{"Range": {"bytes=100-199"}})

		assert.Equal(t, http.StatusPartialContent, rr.Code)
		assert.Equal(t, "bytes 100-199/1000", rr.Header().Get("Content-Range"))
		assert.Equal(t, "100", rr.Header().Get("Content-Length"))
		assert.Equal(t, 100, rr.Body.Len())
	})

	t.Run("unsatisfiable range is propagated", func(t *testing.T) {
		download := &MockDownloadService{
			MockOpen: func(ctx context.Context, id domain.ShortId, rangeHeader string) (*service.Stream, error) {
				return newStream(report, http.StatusRequestedRangeNotSatisfiable, http.Header{"Content-Range": {"bytes */1000"}}, ""), nil
			},
		}
		rr := get(t, setupDownload(download), "/dl/report.pdf-482913", http.Header{"Range": {"bytes=5000-"}})
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rr.Code)
		assert.Equal(t, "bytes */1000", rr.Header().Get("Content-Range"))
	})

	t.Run("filename with hyphens", func(t *testing.T) {
		m := domain.FileMapping{ShortId: "123456", Filename: "My File-v2"}
		download := &MockDownloadService{
			MockOpen: func(ctx context.Context, id domain.ShortId, rangeHeader string) (*service.Stream, error) {
				assert.Equal(t, domain.ShortId("123456"), id)
				return newStream(m, http.StatusOK, nil, "x"), nil
			},
		}
		rr := get(t, setupDownload(download), "/dl/My%20File-v2-123456", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, `attachment; filename="My File-v2"`, rr.Header().Get("Content-Disposition"))
		assert.Equal(t, "application/octet-stream", rr.Header().Get("Content-Type"))
	})

	t.Run("stored name wins over url name", func(t *testing.T) {
		download := &MockDownloadService{
			MockOpen: func(ctx context.Context, id domain.ShortId, rangeHeader string) (*service.Stream, error) {
				return newStream(report, http.StatusOK, nil, ""), nil
			},
		}
		rr := get(t, setupDownload(download), "/dl/evil.exe-482913", nil)
		assert.Equal(t, `attachment; filename="report.pdf"`, rr.Header().Get("Content-Disposition"))
	})

	t.Run("path parameter form", func(t *testing.T) {
		download := &MockDownloadService{
			MockOpen: func(ctx context.Context, id domain.ShortId, rangeHeader string) (*service.Stream, error) {
				assert.Equal(t, domain.ShortId("482913"), id)
				return newStream(domain.FileMapping{ShortId: id}, http.StatusOK, nil, ""), nil
			},
		}
		rr := get(t, setupDownload(download), "/dl/482913/notes.txt", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, `attachment; filename="notes.txt"`, rr.Header().Get("Content-Disposition"))
	})

	t.Run("stream is inline", func(t *testing.T) {
		video := domain.FileMapping{ShortId: "77777777", Filename: "clip.mp4"}
		download := &MockDownloadService{
			MockOpen: func(ctx context.Context, id domain.ShortId, rangeHeader string) (*service.Stream, error) {
				return newStream(video, http.StatusOK, http.Header{"Content-Type": {"video/mp4"}}, ""), nil
			},
		}
		rr := get(t, setupDownload(download), "/stream/clip.mp4-77777777", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, `inline; filename="clip.mp4"`, rr.Header().Get("Content-Disposition"))
		assert.Equal(t, "video/mp4", rr.Header().Get("Content-Type"))
	})

	t.Run("head sends no body", func(t *testing.T) {
		download := &MockDownloadService{
			MockOpen: func(ctx context.Context, id domain.ShortId, rangeHeader string) (*service.Stream, error) {
				return newStream(report, http.StatusOK, http.Header{"Content-Length": {"11"}}, "hello world"), nil
			},
		}
		rr := httptest.NewRecorder()
		testRouter(setupDownload(download)).ServeHTTP(rr, createRequest(t, http.MethodHead, "/dl/report.pdf-482913", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Body.String())
	})
}

func TestDownloadErrors(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		openErr    error
		wantStatus int
		wantCalls  int
	}{
		{name: "id too short", url: "/dl/report.pdf-1234", wantStatus: http.StatusBadRequest},
		{name: "no hyphen", url: "/dl/report", wantStatus: http.StatusBadRequest},
		{name: "short id in path form", url: "/dl/12/report.pdf", wantStatus: http.StatusBadRequest},
		{name: "unknown id", url: "/dl/report.pdf-99999999", openErr: fmt.Errorf("resolve: %w", internal_errors.NotFound), wantStatus: http.StatusNotFound, wantCalls: 1},
		{name: "upstream rejected", url: "/dl/report.pdf-99999999", openErr: fmt.Errorf("%w: get file", internal_errors.UpstreamUnavailable), wantStatus: http.StatusBadGateway, wantCalls: 1},
		{name: "transport failure", url: "/dl/report.pdf-99999999", openErr: errors.New("dial tcp: i/o timeout"), wantStatus: http.StatusInternalServerError, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			download := &MockDownloadService{
				MockOpen: func(ctx context.Context, id domain.ShortId, rangeHeader string) (*service.Stream, error) {
					return nil, tt.openErr
				},
			}
			rr := get(t, setupDownload(download), tt.url, nil)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCalls, download.calls)
			assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
		})
	}

	t.Run("internal details stay in the log", func(t *testing.T) {
		download := &MockDownloadService{
			MockOpen: func(ctx context.Context, id domain.ShortId, rangeHeader string) (*service.Stream, error) {
				return nil, errors.New("GET https://api.telegram.org/file/bot123:SECRET/doc.pdf failed")
			},
		}
		rr := get(t, setupDownload(download), "/dl/report.pdf-99999999", nil)

		require.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "SECRET")
		assert.Contains(t, rr.Body.String(), "Internal error (id ")
	})
}

// stallingBody hands out one chunk, then blocks like a slow upstream until
// the request context ends.
type stallingBody struct {
	ctx     context.Context
	chunk   string
	started chan struct{}
	sent    bool
	closed  bool
}

func (s *stallingBody) Read(p []byte) (int, error) {
	if !s.sent {
		s.sent = true
		close(s.started)
		return copy(p, s.chunk), nil
	}
	<-s.ctx.Done()
	return 0, s.ctx.Err()
}

func (s *stallingBody) Close() error {
	s.closed = true
	return nil
}

func TestDownloadClientDisconnect(t *testing.T) {
	report := domain.FileMapping{ShortId: "482913", FileHandle: "F1", Filename: "report.pdf"}

	t.Run("cancel mid-stream stops the copy and closes upstream", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		body := &stallingBody{ctx: ctx, chunk: "first chunk", started: make(chan struct{})}
		download := &MockDownloadService{
			MockOpen: func(ctx context.Context, id domain.ShortId, rangeHeader string) (*service.Stream, error) {
				return &service.Stream{Mapping: report, Status: http.StatusOK, Header: http.Header{}, Body: body}, nil
			},
		}
		h := setupDownload(download)
		req := createRequest(t, http.MethodGet, "/dl/report.pdf-482913", nil).WithContext(ctx)
		rr := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			defer close(done)
			testRouter(h).ServeHTTP(rr, req)
		}()

		<-body.started
		cancel()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("download did not return after the client left")
		}
		assert.True(t, body.closed, "upstream body must be closed")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "first chunk", rr.Body.String())
	})

	t.Run("cancelled request is reported as client gone", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		body := &stallingBody{ctx: ctx, chunk: "first chunk", started: make(chan struct{})}
		req := httptest.NewRequest(http.MethodGet, "/dl/report.pdf-482913", nil).WithContext(ctx)
		go func() {
			<-body.started
			cancel()
		}()

		var out bytes.Buffer
		n, gone, err := relay(&out, req, body)

		assert.True(t, gone)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int64(len("first chunk")), n)
	})

	t.Run("broken upstream with a live client is not client gone", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dl/report.pdf-482913", nil)

		var out bytes.Buffer
		_, gone, err := relay(&out, req, io.MultiReader(strings.NewReader("part"), iotest.ErrReader(io.ErrUnexpectedEOF)))

		assert.False(t, gone)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.Equal(t, "part", out.String())
	})
}

func TestContentDisposition(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{name: "plain", filename: "report.pdf", want: `attachment; filename="report.pdf"`},
		{name: "quotes", filename: `a"b.txt`, want: `attachment; filename="a_b.txt"; filename*=UTF-8''a%22b.txt`},
		{name: "newline", filename: "a\r\nb.txt", want: `attachment; filename="ab.txt"; filename*=UTF-8''a%0D%0Ab.txt`},
		{name: "unicode", filename: "отчёт.pdf", want: `attachment; filename="_____.pdf"; filename*=UTF-8''%D0%BE%D1%82%D1%87%D1%91%D1%82.pdf`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentDisposition("attachment", tt.filename))
		})
	}
}
