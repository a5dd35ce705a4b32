// Package codec converts file mappings to and from the text entries stored in
// the archival channel. Several incompatible formats were written over time and
// all of them stay readable.
package codec

import (
	"errors"
	"strings"

	"github.com/filmzi/filelink/shared/domain"
)

var (
	// ErrNoMatch means the text is not an entry for the requested id.
	ErrNoMatch = errors.New("codec: no match")
	// ErrParseFailed means the text carries a known prefix for the requested id
	// but its payload could not be decoded.
	ErrParseFailed = errors.New("codec: parse failed")
)

// Format is one wire format.
type Format interface {
	Name() string
	Encode(m domain.FileMapping) string
	// Decode parses text as an entry for id. An empty id accepts any id.
	Decode(text string, id domain.ShortId) (domain.FileMapping, error)
}

// Codec tries its formats in priority order.
type Codec struct {
	formats []Format
}

// New returns a codec over formats, first one wins.
func New(formats ...Format) *Codec {
	return &Codec{formats: formats}
}

// Default returns the codec reading every format ever written to the channel.
// Adding a format means appending it here.
func Default() *Codec {
	return New(
		TaggedJSON{},
		Delimited{},
		Legacy{},
		PrefixedJSON{},
		TaggedDelimited{},
	)
}

// Formats returns the registered formats in priority order.
func (c *Codec) Formats() []Format {
	return c.formats
}

// Decode returns the first successful decode. If no format matched but at least
// one recognised its prefix, ErrParseFailed is returned so callers can log it
// and keep scanning.
func (c *Codec) Decode(text string, id domain.ShortId) (domain.FileMapping, error) {
	parseFailed := false
	for _, f := range c.formats {
		m, err := f.Decode(text, id)
		switch {
		case err == nil:
			return m, nil
		case errors.Is(err, ErrParseFailed):
			parseFailed = true
		}
	}
	if parseFailed {
		return domain.FileMapping{}, ErrParseFailed
	}
	return domain.FileMapping{}, ErrNoMatch
}

// SearchLine renders the human-searchable index entry written next to the
// decodable entries. It is write-only: filename normalisation loses data.
func SearchLine(m domain.FileMapping) string {
	var b strings.Builder
	for _, r := range strings.ToLower(m.Filename) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return "SEARCH_" + string(m.ShortId) + "_" + b.String() + "_" + string(m.FileHandle)
}
