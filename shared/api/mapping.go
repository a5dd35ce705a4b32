package api

import (
	"time"

	"github.com/filmzi/filelink/shared/domain"
)

// Request DTOs

type SaveMappingRequest struct {
	ShortId  string `json:"shortId" validate:"required"`
	FileId   string `json:"fileId" validate:"required"`
	Filename string `json:"filename" validate:"required"`
	Size     int64  `json:"size,omitempty" validate:"gte=0"`
	UserId   int64  `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
}

func (r SaveMappingRequest) Mapping() domain.FileMapping {
	return domain.FileMapping{
		ShortId:      domain.ShortId(r.ShortId),
		FileHandle:   domain.FileHandle(r.FileId),
		Filename:     r.Filename,
		Size:         r.Size,
		UploaderId:   r.UserId,
		UploaderName: r.Username,
	}
}

type GetMappingRequest struct {
	ShortId string `json:"shortId" validate:"required"`
}

type CleanupRequest struct {
	DaysOld int `json:"days_old" validate:"gte=0"`
}

// Response DTOs

// MappingResponse is the wire shape of domain.FileMapping, the same keys the
// tagged channel entries use.
type MappingResponse struct {
	Id        string `json:"id"`
	FileId    string `json:"file_id"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size,omitempty"`
	UserId    int64  `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

func NewMappingResponse(m domain.FileMapping) MappingResponse {
	r := MappingResponse{
		Id:       string(m.ShortId),
		FileId:   string(m.FileHandle),
		Filename: m.Filename,
		Size:     m.Size,
		UserId:   m.UploaderId,
		Username: m.UploaderName,
	}
	if !m.CreatedAt.IsZero() {
		r.Timestamp = m.CreatedAt.Unix()
	}
	return r
}

type SaveMappingResponse struct {
	Success      bool   `json:"success"`
	SavedEntries int    `json:"saved_entries"`
	MappingId    string `json:"mapping_id"`
}

type GetMappingResponse struct {
	Success bool            `json:"success"`
	Mapping MappingResponse `json:"mapping"`
}

type ListMappingsResponse struct {
	Success       bool              `json:"success"`
	TotalMappings int               `json:"total_mappings"`
	Mappings      []MappingResponse `json:"mappings"`
}

type CleanupResponse struct {
	Success         bool      `json:"success"`
	Message         string    `json:"message"`
	CutoffTimestamp int64     `json:"cutoff_timestamp"`
	Cutoff          time.Time `json:"cutoff"`
	Candidates      int       `json:"candidates"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
