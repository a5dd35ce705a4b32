package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"

	"github.com/filmzi/filelink/backend/internal/service"
	"github.com/filmzi/filelink/shared/domain"
	"github.com/filmzi/filelink/shared/logger"
	"github.com/filmzi/filelink/shared/utils"
	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
)

const copyBufferSize = 64 << 10

// passthroughHeaders are copied from the upstream response when present.
var passthroughHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Last-Modified",
	"ETag",
}

var errorPagePolicy = bluemonday.StrictPolicy()

// Download serves /dl/{slug}, the link handed out on upload.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	filename, id, err := service.ParseSlug(chi.URLParam(r, "slug"), h.cfg.Public.MinShortIdLength)
	if err != nil {
		writeErrorPage(w, err)
		return
	}
	h.serveFile(w, r, id, filename, "attachment")
}

// DownloadByParts serves /dl/{shortId}/{fileName}.
func (h *Handler) DownloadByParts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "shortId")
	if err := service.ValidateShortId(id, h.cfg.Public.MinShortIdLength); err != nil {
		writeErrorPage(w, err)
		return
	}
	h.serveFile(w, r, domain.ShortId(id), chi.URLParam(r, "fileName"), "attachment")
}

// Stream serves /stream/{slug} inline so browsers can play media.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	filename, id, err := service.ParseSlug(chi.URLParam(r, "slug"), h.cfg.Public.MinShortIdLength)
	if err != nil {
		writeErrorPage(w, err)
		return
	}
	h.serveFile(w, r, id, filename, "inline")
}

// serveFile proxies the upstream file. The name stored in the mapping wins
// over the one in the URL, which anyone can edit.
func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, id domain.ShortId, urlName, disposition string) {
	stream, err := h.download.Open(r.Context(), id, r.Header.Get("Range"))
	if err != nil {
		writeErrorPage(w, err)
		return
	}
	defer stream.Close()

	filename := stream.Mapping.Filename
	if filename == "" {
		filename = urlName
	}
	if filename == "" {
		filename = service.GeneratedName(domain.KindDocument, id)
	}

	header := w.Header()
	for _, name := range passthroughHeaders {
		if v := stream.Header.Get(name); v != "" {
			header.Set(name, v)
		}
	}
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/octet-stream")
	}
	if header.Get("Accept-Ranges") == "" {
		header.Set("Accept-Ranges", "bytes")
	}
	header.Set("Content-Disposition", ContentDisposition(disposition, filename))
	header.Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(stream.Status)

	if r.Method == http.MethodHead {
		return
	}

	n, gone, err := relay(w, r, stream.Body)
	switch {
	case gone:
		logger.Log.Debug("client left during download", "short_id", id, "sent", n)
	case err != nil:
		logger.Log.Warn("download interrupted", "short_id", id, "sent", n, "error", err)
	}
}

// relay copies the upstream body to the client. gone is set when the copy
// stopped because the client went away.
func relay(w io.Writer, r *http.Request, body io.Reader) (n int64, gone bool, err error) {
	buf := make([]byte, copyBufferSize)
	n, err = io.CopyBuffer(w, body, buf)
	if err != nil && clientGone(r, err) {
		return n, true, err
	}
	return n, false, err
}

func clientGone(r *http.Request, err error) bool {
	return r.Context().Err() != nil || errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}

// ContentDisposition builds the header with a quoted ASCII fallback and,
// for names that need it, an RFC 5987 filename* parameter.
func ContentDisposition(disposition, filename string) string {
	fallback := asciiFilename(filename)
	v := disposition + `; filename="` + fallback + `"`
	if fallback != filename {
		v += "; filename*=UTF-8''" + encodeRFC5987(filename)
	}
	return v
}

func asciiFilename(name string) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('_')
		case c < 0x20 || c == 0x7f:
			// dropped, would split the header
		case c > 0x7e:
			b.WriteByte('_')
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func encodeRFC5987(s string) string {
	const attrChars = "!#$&+-.^_`|~"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') || strings.IndexByte(attrChars, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

const errorPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%d %s</title></head>
<body>
<h1>%s</h1>
<p>%s</p>
</body>
</html>
`

// writeErrorPage answers a browser-facing route with a minimal HTML page.
func writeErrorPage(w http.ResponseWriter, err error) {
	status := utils.StatusOf(err)
	message := errorPagePolicy.Sanitize(utils.PublicMessage(err))
	statusText := http.StatusText(status)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	fmt.Fprintf(w, errorPage, status, statusText, statusText, message)
}
