package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/filmzi/filelink/backend/internal/telegram"
	"github.com/filmzi/filelink/shared/domain"
	internal_errors "github.com/filmzi/filelink/shared/errors"
)

// to mock service in tests
type DownloadService interface {
	Open(ctx context.Context, id domain.ShortId, rangeHeader string) (*Stream, error)
}

// FileHost serves file bytes for a stored handle.
type FileHost interface {
	GetFile(ctx context.Context, fileId string) (*telegram.File, error)
	OpenFile(ctx context.Context, filePath, rangeHeader string) (*http.Response, error)
}

// Stream is an open upstream response for a resolved mapping. Status is 200,
// 206 or 416. The caller must Close it.
type Stream struct {
	Mapping domain.FileMapping
	Status  int
	Header  http.Header
	Body    io.ReadCloser
}

func (s *Stream) Close() error {
	return s.Body.Close()
}

type Download struct {
	resolver ResolverService
	host     FileHost
}

func NewDownload(resolver ResolverService, host FileHost) *Download {
	return &Download{resolver: resolver, host: host}
}

// Open resolves id and starts the upstream fetch, forwarding rangeHeader.
// The fetch is bound to ctx, so a client disconnect aborts it.
func (d *Download) Open(ctx context.Context, id domain.ShortId, rangeHeader string) (*Stream, error) {
	m, err := d.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	f, err := d.host.GetFile(ctx, string(m.FileHandle))
	if err != nil {
		return nil, upstreamError("get file", err)
	}

	resp, err := d.host.OpenFile(ctx, f.FilePath, rangeHeader)
	if err != nil {
		return nil, fmt.Errorf("fetch file %s: %w", m.ShortId, err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent, http.StatusRequestedRangeNotSatisfiable:
		return &Stream{Mapping: m, Status: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: file fetch returned %d", internal_errors.UpstreamUnavailable, resp.StatusCode)
	}
}

// upstreamError turns an API rejection into UpstreamUnavailable. Transport
// failures stay as they are and surface as internal errors.
func upstreamError(op string, err error) error {
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s: %v", internal_errors.UpstreamUnavailable, op, apiErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}
