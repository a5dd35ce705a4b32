package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/filmzi/filelink/shared/domain"
)

const (
	separator             = "|"
	taggedDelimitedPrefix = "FILMZI_MAP:"
)

// field replaces the separator inside free text so positions stay stable.
// The replacement is lossy: "a|b.txt" decodes as "a_b.txt".
func field(s string) string {
	return strings.ReplaceAll(s, separator, "_")
}

// absent reports the placeholders older writers left for missing values
// when they stringified undefined, null or NaN.
func absent(s string) bool {
	switch s {
	case "", "undefined", "null", "NaN":
		return true
	}
	return false
}

func optionalInt(s string) (int64, error) {
	if absent(s) {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func optionalText(s string) string {
	if absent(s) {
		return ""
	}
	return s
}

// splitFor splits text into fields when its first field is the wanted id.
func splitFor(text string, id domain.ShortId) ([]string, bool) {
	entryId, _, ok := strings.Cut(text, separator)
	if !ok || entryId == "" || strings.ContainsAny(entryId, " \n:") {
		return nil, false
	}
	if id != "" && entryId != string(id) {
		return nil, false
	}
	return strings.Split(text, separator), true
}

// Delimited is `id|fileHandle|filename|size|userId|username|timestamp`.
// At least four fields are required; the rest default to absent. A
// separator inside the handle, filename or username is written as "_" and
// does not survive a round trip.
type Delimited struct{}

func (Delimited) Name() string { return "delimited" }

func (Delimited) Encode(m domain.FileMapping) string {
	var size, uid, ts string
	if m.Size > 0 {
		size = strconv.FormatInt(m.Size, 10)
	}
	if m.UploaderId != 0 {
		uid = strconv.FormatInt(m.UploaderId, 10)
	}
	if !m.CreatedAt.IsZero() {
		ts = strconv.FormatInt(m.CreatedAt.Unix(), 10)
	}
	return strings.Join([]string{
		string(m.ShortId),
		field(string(m.FileHandle)),
		field(m.Filename),
		size,
		uid,
		field(m.UploaderName),
		ts,
	}, separator)
}

func (Delimited) Decode(text string, id domain.ShortId) (domain.FileMapping, error) {
	parts, ok := splitFor(text, id)
	if !ok || len(parts) < 4 {
		return domain.FileMapping{}, ErrNoMatch
	}
	if parts[1] == "" {
		return domain.FileMapping{}, fmt.Errorf("%w: empty file handle", ErrParseFailed)
	}
	for len(parts) < 7 {
		parts = append(parts, "")
	}

	size, err := optionalInt(parts[3])
	if err != nil {
		return domain.FileMapping{}, fmt.Errorf("%w: size: %v", ErrParseFailed, err)
	}
	uid, err := optionalInt(parts[4])
	if err != nil {
		return domain.FileMapping{}, fmt.Errorf("%w: user id: %v", ErrParseFailed, err)
	}
	ts, err := optionalInt(parts[6])
	if err != nil {
		return domain.FileMapping{}, fmt.Errorf("%w: timestamp: %v", ErrParseFailed, err)
	}

	return domain.FileMapping{
		ShortId:      domain.ShortId(parts[0]),
		FileHandle:   domain.FileHandle(parts[1]),
		Filename:     parts[2],
		Size:         size,
		UploaderId:   uid,
		UploaderName: optionalText(parts[5]),
		CreatedAt:    unixTime(ts),
	}, nil
}

// Legacy is the first format ever written: `id|fileHandle|filename`.
type Legacy struct{}

func (Legacy) Name() string { return "legacy" }

func (Legacy) Encode(m domain.FileMapping) string {
	return string(m.ShortId) + separator + field(string(m.FileHandle)) + separator + field(m.Filename)
}

func (Legacy) Decode(text string, id domain.ShortId) (domain.FileMapping, error) {
	parts, ok := splitFor(text, id)
	if !ok || len(parts) != 3 {
		return domain.FileMapping{}, ErrNoMatch
	}
	return legacyMapping(parts)
}

func legacyMapping(parts []string) (domain.FileMapping, error) {
	if parts[1] == "" {
		return domain.FileMapping{}, fmt.Errorf("%w: empty file handle", ErrParseFailed)
	}
	return domain.FileMapping{
		ShortId:    domain.ShortId(parts[0]),
		FileHandle: domain.FileHandle(parts[1]),
		Filename:   parts[2],
	}, nil
}

// TaggedDelimited is `FILMZI_MAP:id|fileHandle|filename|channelMsgId`, written
// as a reply to the forwarded file. The message id is not kept.
type TaggedDelimited struct{}

func (TaggedDelimited) Name() string { return "tagged-delimited" }

func (TaggedDelimited) Encode(m domain.FileMapping) string {
	return taggedDelimitedPrefix + Legacy{}.Encode(m) + separator
}

func (TaggedDelimited) Decode(text string, id domain.ShortId) (domain.FileMapping, error) {
	rest, ok := strings.CutPrefix(text, taggedDelimitedPrefix)
	if !ok {
		return domain.FileMapping{}, ErrNoMatch
	}
	parts, ok := splitFor(rest, id)
	if !ok {
		return domain.FileMapping{}, ErrNoMatch
	}
	if len(parts) < 3 {
		return domain.FileMapping{}, fmt.Errorf("%w: %d fields", ErrParseFailed, len(parts))
	}
	return legacyMapping(parts)
}
