// Package record is the JSON document the direct stores keep per mapping.
package record

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/filmzi/filelink/shared/domain"
)

// Naming picks the keys used for the filename and size.
type Naming int

const (
	// Plain writes "filename" and "size".
	Plain Naming = iota
	// Bot writes "file_name" and "file_size", the layout the Python bot left
	// in Redis.
	Bot
)

// Record accepts both namings on read.
type Record struct {
	ShortId   string `json:"short_id"`
	FileId    string `json:"file_id"`
	Filename  string `json:"filename,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	Size      int64  `json:"size,omitempty"`
	FileSize  int64  `json:"file_size,omitempty"`
	UserId    int64  `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

func FromMapping(m domain.FileMapping, naming Naming) Record {
	r := Record{
		ShortId:  string(m.ShortId),
		FileId:   string(m.FileHandle),
		UserId:   m.UploaderId,
		Username: m.UploaderName,
	}
	if naming == Bot {
		r.FileName, r.FileSize = m.Filename, m.Size
	} else {
		r.Filename, r.Size = m.Filename, m.Size
	}
	if !m.CreatedAt.IsZero() {
		r.Timestamp = m.CreatedAt.Unix()
	}
	return r
}

func (r Record) Mapping() domain.FileMapping {
	m := domain.FileMapping{
		ShortId:      domain.ShortId(r.ShortId),
		FileHandle:   domain.FileHandle(r.FileId),
		Filename:     r.Filename,
		Size:         r.Size,
		UploaderId:   r.UserId,
		UploaderName: r.Username,
	}
	if m.Filename == "" {
		m.Filename = r.FileName
	}
	if m.Size == 0 {
		m.Size = r.FileSize
	}
	if r.Timestamp > 0 {
		m.CreatedAt = time.Unix(r.Timestamp, 0).UTC()
	}
	return m
}

func Encode(m domain.FileMapping, naming Naming) ([]byte, error) {
	data, err := json.Marshal(FromMapping(m, naming))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.ShortId, err)
	}
	return data, nil
}

// Decode parses a stored document. A non-empty id, taken from the key the
// document was stored under, wins over the short_id inside it.
func Decode(id domain.ShortId, data []byte) (domain.FileMapping, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.FileMapping{}, fmt.Errorf("decode %s: %w", id, err)
	}
	m := r.Mapping()
	if id != "" {
		m.ShortId = id
	}
	return m, nil
}
