package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/filmzi/filelink/shared/domain"
)

const (
	taggedJSONPrefix   = "DB_ENTRY:"
	prefixedJSONPrefix = "MAPPING:"
)

// record is the JSON body shared by the tagged and prefixed formats.
type record struct {
	Id        looseString `json:"id"`
	FileId    string      `json:"file_id"`
	Filename  string      `json:"filename"`
	Size      looseInt    `json:"size"`
	Timestamp looseInt    `json:"timestamp,omitempty"`
	UserId    looseInt    `json:"user_id,omitempty"`
	Username  string      `json:"username,omitempty"`
}

func newRecord(m domain.FileMapping) record {
	r := record{
		Id:       looseString(m.ShortId),
		FileId:   string(m.FileHandle),
		Filename: m.Filename,
		Size:     looseInt(m.Size),
		UserId:   looseInt(m.UploaderId),
		Username: m.UploaderName,
	}
	if !m.CreatedAt.IsZero() {
		r.Timestamp = looseInt(m.CreatedAt.Unix())
	}
	return r
}

func (r record) mapping() domain.FileMapping {
	return domain.FileMapping{
		ShortId:      domain.ShortId(r.Id),
		FileHandle:   domain.FileHandle(r.FileId),
		Filename:     r.Filename,
		Size:         int64(r.Size),
		CreatedAt:    unixTime(int64(r.Timestamp)),
		UploaderId:   int64(r.UserId),
		UploaderName: r.Username,
	}
}

func encodeRecord(m domain.FileMapping) string {
	// Marshal of a struct of strings and ints cannot fail.
	data, _ := json.Marshal(newRecord(m))
	return string(data)
}

func decodeRecord(payload string) (record, error) {
	var r record
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	if r.FileId == "" {
		return r, fmt.Errorf("%w: missing file_id", ErrParseFailed)
	}
	return r, nil
}

// TaggedJSON is `DB_ENTRY:<id>:{json}`.
type TaggedJSON struct{}

func (TaggedJSON) Name() string { return "tagged-json" }

func (TaggedJSON) Encode(m domain.FileMapping) string {
	return taggedJSONPrefix + string(m.ShortId) + ":" + encodeRecord(m)
}

func (TaggedJSON) Decode(text string, id domain.ShortId) (domain.FileMapping, error) {
	rest, ok := strings.CutPrefix(text, taggedJSONPrefix)
	if !ok {
		return domain.FileMapping{}, ErrNoMatch
	}
	entryId, payload, ok := strings.Cut(rest, ":")
	if !ok || entryId == "" || (id != "" && entryId != string(id)) {
		return domain.FileMapping{}, ErrNoMatch
	}
	r, err := decodeRecord(payload)
	if err != nil {
		return domain.FileMapping{}, err
	}
	m := r.mapping()
	// the tag is authoritative, the body id is informational
	m.ShortId = domain.ShortId(entryId)
	return m, nil
}

// PrefixedJSON is `MAPPING:{json}` where the id lives inside the body.
type PrefixedJSON struct{}

func (PrefixedJSON) Name() string { return "prefixed-json" }

func (PrefixedJSON) Encode(m domain.FileMapping) string {
	return prefixedJSONPrefix + encodeRecord(m)
}

func (PrefixedJSON) Decode(text string, id domain.ShortId) (domain.FileMapping, error) {
	payload, ok := strings.CutPrefix(text, prefixedJSONPrefix)
	if !ok {
		return domain.FileMapping{}, ErrNoMatch
	}
	r, err := decodeRecord(payload)
	if err != nil {
		// The id is inside the broken body so we cannot tell whether the
		// entry was meant for this lookup.
		return domain.FileMapping{}, err
	}
	if r.Id == "" || (id != "" && string(r.Id) != string(id)) {
		return domain.FileMapping{}, ErrNoMatch
	}
	return r.mapping(), nil
}

// looseString accepts a JSON string or number. Old writers emitted numeric ids.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

// looseInt accepts a number, a numeric string or null.
type looseInt int64

func (i *looseInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		*i = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		*i = looseInt(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*i = looseInt(f)
	return nil
}

// unixTime converts a stored timestamp. Values past year 33658 in seconds are
// taken as milliseconds, which some writers used.
func unixTime(ts int64) time.Time {
	switch {
	case ts <= 0:
		return time.Time{}
	case ts > 1e12:
		return time.UnixMilli(ts).UTC()
	default:
		return time.Unix(ts, 0).UTC()
	}
}
