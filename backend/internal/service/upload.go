package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/filmzi/filelink/backend/internal/codec"
	"github.com/filmzi/filelink/shared/domain"
	internal_errors "github.com/filmzi/filelink/shared/errors"
	"github.com/filmzi/filelink/shared/logger"
)

// to mock service in tests
type UploadService interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
}

// ChannelWriter persists files and entries in the archival chat.
type ChannelWriter interface {
	// Archive copies a message holding a file into the archival channel and
	// returns the id of the copy.
	Archive(ctx context.Context, fromChat, messageId int64) (int64, error)
	// PostEntry writes a text entry to the mapping channel, as a reply to
	// replyTo when it is set and lives in the same chat.
	PostEntry(ctx context.Context, text string, replyTo int64) error
}

type UploadRequest struct {
	ChatId       int64
	MessageId    int64
	File         domain.InboundFile
	UploaderId   int64
	UploaderName string
}

type UploadResult struct {
	Mapping domain.FileMapping
	// ArchiveMessageId is the permanent copy of the file in the archive channel.
	ArchiveMessageId int64
	Link             string
	StreamLink       string
	// Diagnostics lists best-effort writes that failed. The upload itself
	// succeeded.
	Diagnostics []string
}

type UploadConfig struct {
	BaseURL     string
	MaxFileSize int64
}

const (
	shortIdMin      = 10000000
	shortIdMax      = 99999999
	maxIdGeneration = 5
)

type Upload struct {
	channel ChannelWriter
	direct  MappingStorage // nil when not configured
	cache   MappingCache
	cfg     UploadConfig
	newId   func() domain.ShortId
	now     func() time.Time
}

func NewUpload(channel ChannelWriter, direct MappingStorage, cache MappingCache, cfg UploadConfig) *Upload {
	return &Upload{
		channel: channel,
		direct:  direct,
		cache:   cache,
		cfg:     cfg,
		newId:   randomShortId,
		now:     time.Now,
	}
}

func randomShortId() domain.ShortId {
	return domain.ShortId(strconv.Itoa(shortIdMin + rand.IntN(shortIdMax-shortIdMin+1)))
}

// postAction is a write that runs after the mandatory entry is stored. Its
// failure is recorded, never returned.
type postAction struct {
	name string
	run  func(ctx context.Context, m domain.FileMapping) error
}

func (u *Upload) postActions(archived int64) []postAction {
	actions := []postAction{
		{name: "delimited_entry", run: func(ctx context.Context, m domain.FileMapping) error {
			return u.channel.PostEntry(ctx, codec.Delimited{}.Encode(m), archived)
		}},
	}
	if u.direct != nil {
		actions = append(actions, postAction{name: "direct_store", run: u.direct.Put})
	}
	return actions
}

// Upload archives the file, writes its Tagged-JSON entry and returns the
// permanent link. Only the archive and the first entry can fail the upload.
func (u *Upload) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.File.Handle == "" {
		return nil, internal_errors.Malformed("no file in message")
	}
	if u.cfg.MaxFileSize > 0 && req.File.ByteSize > u.cfg.MaxFileSize {
		return nil, internal_errors.FileTooLarge
	}

	archived, err := u.channel.Archive(ctx, req.ChatId, req.MessageId)
	if err != nil {
		uploadsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("archive file: %w", err)
	}

	m := domain.FileMapping{
		ShortId:      u.allocateId(ctx),
		FileHandle:   req.File.Handle,
		Filename:     req.File.DisplayName,
		Size:         req.File.ByteSize,
		CreatedAt:    u.now().UTC().Truncate(time.Second),
		UploaderId:   req.UploaderId,
		UploaderName: req.UploaderName,
	}
	if m.Filename == "" {
		m.Filename = GeneratedName(req.File.Kind, m.ShortId)
	}

	if err := u.channel.PostEntry(ctx, codec.TaggedJSON{}.Encode(m), archived); err != nil {
		uploadsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("write mapping entry: %w", err)
	}

	result := &UploadResult{
		Mapping:          m,
		ArchiveMessageId: archived,
		Link:             DownloadLink(u.cfg.BaseURL, m),
		StreamLink:       StreamLink(u.cfg.BaseURL, m),
	}
	for _, action := range u.postActions(archived) {
		if err := action.run(ctx, m); err != nil {
			postActionFailures.WithLabelValues(action.name).Inc()
			logger.Log.Warn("upload post-action failed", "action", action.name, "short_id", m.ShortId, "error", err)
			result.Diagnostics = append(result.Diagnostics, action.name+": "+err.Error())
		}
	}

	u.cache.Store(m)
	uploadsTotal.WithLabelValues("ok").Inc()
	logger.Log.Info("file uploaded", "short_id", m.ShortId, "size", m.Size, "uploader_id", m.UploaderId)
	return result, nil
}

// allocateId draws a fresh id. With a direct store it retries ids that are
// already taken; without one a collision is accepted and the oldest entry
// wins during scans.
func (u *Upload) allocateId(ctx context.Context) domain.ShortId {
	id := u.newId()
	if u.direct == nil {
		return id
	}
	for attempt := 1; attempt < maxIdGeneration; attempt++ {
		_, err := u.direct.Get(ctx, id)
		if errors.Is(err, internal_errors.NotFound) {
			return id
		}
		if err != nil {
			logger.Log.Warn("collision check failed, keeping id", "short_id", id, "error", err)
			return id
		}
		logger.Log.Info("short id collision, regenerating", "short_id", id, "attempt", attempt)
		id = u.newId()
	}
	return id
}

// GeneratedName names files that arrived without one.
func GeneratedName(kind domain.FileKind, id domain.ShortId) string {
	switch kind {
	case domain.KindVideo, domain.KindAnimation:
		return "video_" + string(id) + ".mp4"
	case domain.KindAudio:
		return "audio_" + string(id) + ".mp3"
	case domain.KindVoice:
		return "voice_" + string(id) + ".ogg"
	case domain.KindPhoto:
		return "photo_" + string(id) + ".jpg"
	default:
		return "file_" + string(id)
	}
}
