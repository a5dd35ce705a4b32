package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/filmzi/filelink/shared/domain"
	internal_errors "github.com/filmzi/filelink/shared/errors"
)

const (
	DownloadPath = "/dl/"
	StreamPath   = "/stream/"
)

// Slug is the single path segment `<urlencoded filename>-<shortId>`.
func Slug(m domain.FileMapping) string {
	return url.PathEscape(m.Filename) + "-" + string(m.ShortId)
}

func DownloadLink(baseURL string, m domain.FileMapping) string {
	return strings.TrimRight(baseURL, "/") + DownloadPath + Slug(m)
}

func StreamLink(baseURL string, m domain.FileMapping) string {
	return strings.TrimRight(baseURL, "/") + StreamPath + Slug(m)
}

// ParseSlug splits on the last hyphen so filenames may contain hyphens. The
// filename part is URL-decoded when it is valid escaping and kept verbatim
// otherwise.
func ParseSlug(slug string, minIdLength int) (filename string, id domain.ShortId, err error) {
	i := strings.LastIndex(slug, "-")
	if i < 0 {
		return "", "", internal_errors.Malformed("Invalid download link")
	}
	filename, rawId := slug[:i], slug[i+1:]
	if err := ValidateShortId(rawId, minIdLength); err != nil {
		return "", "", err
	}
	if decoded, err := url.PathUnescape(filename); err == nil {
		filename = decoded
	}
	return filename, domain.ShortId(rawId), nil
}

// ValidateShortId rejects ids that could never have been issued.
func ValidateShortId(id string, minLength int) error {
	if len(id) < minLength {
		return internal_errors.Malformed(fmt.Sprintf("Invalid file id: must be at least %d characters", minLength))
	}
	if strings.ContainsAny(id, "/|: \n") {
		return internal_errors.Malformed("Invalid file id")
	}
	return nil
}
