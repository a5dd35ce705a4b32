package handler

import (
	"context"
	"net/http"

	"github.com/filmzi/filelink/backend/internal/service"
	"github.com/filmzi/filelink/backend/internal/telegram"
	"github.com/filmzi/filelink/shared/config"
)

// Replier talks back to bot users.
type Replier interface {
	SendMessage(ctx context.Context, p telegram.SendMessageParams) (*telegram.Message, error)
	AnswerCallback(ctx context.Context, callbackId, text string) error
	DeleteMessage(ctx context.Context, chatId, messageId int64) error
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	upload   service.UploadService
	download service.DownloadService
	backup   service.BackupService
	bot      Replier
	health   HealthChecker
	cfg      *config.Config
}

func New(upload service.UploadService, download service.DownloadService, backup service.BackupService, bot Replier, health HealthChecker, cfg *config.Config) *Handler {
	return &Handler{
		upload:   upload,
		download: download,
		backup:   backup,
		bot:      bot,
		health:   health,
		cfg:      cfg,
	}
}

// NopHealth is the readiness check of deployments without a direct store.
type NopHealth struct{}

func (NopHealth) Ping(context.Context) error { return nil }

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
