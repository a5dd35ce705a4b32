package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/filmzi/filelink/backend/internal/service"
	"github.com/filmzi/filelink/backend/internal/telegram"
	"github.com/filmzi/filelink/shared/domain"
	"github.com/filmzi/filelink/shared/logger"
)

// Callback data of the upload reply keyboard. Ids follow the prefix.
const (
	callbackShare  = "share_"
	callbackRevoke = "revoke_"
	callbackClose  = "close"
)

const (
	notFoundAnswer  = "File not found"
	permanentAnswer = "Links are permanent and cannot be revoked."
)

// handleCallback serves the upload keyboard. Every query gets an answer, or
// the client keeps showing a spinner on the button.
func (h *Handler) handleCallback(ctx context.Context, q *telegram.CallbackQuery) {
	var answer string
	switch {
	case strings.HasPrefix(q.Data, callbackShare):
		answer = h.share(ctx, q, strings.TrimPrefix(q.Data, callbackShare))
	case strings.HasPrefix(q.Data, callbackRevoke):
		// mappings are immutable
		answer = permanentAnswer
	case q.Data == callbackClose:
		answer = "Closed"
		if q.Message != nil {
			if err := h.bot.DeleteMessage(ctx, q.Message.Chat.Id, q.Message.MessageId); err != nil {
				logger.Log.Warn("failed to close message", "chat_id", q.Message.Chat.Id, "error", err)
			}
		}
	default:
		answer = "Unknown action"
	}

	if err := h.bot.AnswerCallback(ctx, q.Id, answer); err != nil {
		logger.Log.Warn("failed to answer callback", "callback_id", q.Id, "error", err)
	}
}

// share sends the download link as its own message so it can be forwarded.
// Only the uploader may ask; mappings without an uploader are public.
func (h *Handler) share(ctx context.Context, q *telegram.CallbackQuery, rawId string) string {
	if err := service.ValidateShortId(rawId, h.cfg.Public.MinShortIdLength); err != nil {
		return notFoundAnswer
	}
	m, err := h.backup.Get(ctx, domain.ShortId(rawId))
	if err != nil {
		logger.Log.Debug("share lookup failed", "short_id", rawId, "error", err)
		return notFoundAnswer
	}
	if m.UploaderId != 0 && (q.From == nil || q.From.Id != m.UploaderId) {
		return notFoundAnswer
	}

	var chatId int64
	switch {
	case q.Message != nil:
		chatId = q.Message.Chat.Id
	case q.From != nil:
		chatId = q.From.Id
	default:
		return notFoundAnswer
	}

	text := fmt.Sprintf("Share this link:\n%s", service.DownloadLink(h.cfg.Public.BaseURL, m))
	if _, err := h.bot.SendMessage(ctx, telegram.SendMessageParams{ChatId: chatId, Text: text}); err != nil {
		logger.Log.Warn("failed to send share link", "chat_id", chatId, "error", err)
		return "Could not send the link, please try again."
	}
	return "Share link sent!"
}
