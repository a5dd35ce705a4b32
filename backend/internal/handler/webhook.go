package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/filmzi/filelink/backend/internal/service"
	"github.com/filmzi/filelink/backend/internal/telegram"
	"github.com/filmzi/filelink/shared/domain"
	internal_errors "github.com/filmzi/filelink/shared/errors"
	"github.com/filmzi/filelink/shared/logger"
	"github.com/filmzi/filelink/shared/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

const (
	welcomeText = "Hello %s!\n\nSend me any file and I'll give you a permanent download link.\nFiles stay in the archive channel, links never expire."
	helpText    = "How it works:\n1. Send a document, video, audio, voice note or photo.\n2. Get a permanent download link back.\n3. Share it. Downloads resume, videos can be streamed.\n\n/start - welcome message\n/help - this message"
	noFileText  = "Please send a file (document, video, audio or photo)."
)

// Webhook receives bot updates. Telegram retries any non-2xx answer, so
// every update that parses is acknowledged with 200, failed uploads
// included; the user learns about failures through a chat reply.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if secret := h.cfg.Private.WebhookSecret; secret != "" {
		got := r.Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			logger.Log.Warn("webhook call with wrong secret", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var update telegram.Update
	if err := utils.Decode(r.Body, &update); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	// channel posts are our own entries echoing back
	switch {
	case update.Message != nil:
		h.handleMessage(r.Context(), update.Message)
	case update.CallbackQuery != nil:
		h.handleCallback(r.Context(), update.CallbackQuery)
	}

	utils.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleMessage(ctx context.Context, msg *telegram.Message) {
	if cmd, ok := command(msg.Text); ok {
		switch cmd {
		case "/start":
			name := "friend"
			if msg.From != nil && msg.From.FirstName != "" {
				name = msg.From.FirstName
			}
			h.reply(ctx, msg, fmt.Sprintf(welcomeText, name))
		case "/help":
			h.reply(ctx, msg, helpText)
		}
		return
	}

	file, ok := inboundFile(msg)
	if !ok {
		h.reply(ctx, msg, noFileText)
		return
	}

	req := service.UploadRequest{
		ChatId:    msg.Chat.Id,
		MessageId: msg.MessageId,
		File:      file,
	}
	if msg.From != nil {
		req.UploaderId = msg.From.Id
		req.UploaderName = msg.From.Username
		if req.UploaderName == "" {
			req.UploaderName = msg.From.FirstName
		}
	}

	result, err := h.upload.Upload(ctx, req)
	if err != nil {
		logger.Log.Error("upload failed", "chat_id", msg.Chat.Id, "message_id", msg.MessageId, "error", err)
		h.reply(ctx, msg, uploadFailureText(err, h.cfg.Public.MaxFileSize))
		return
	}
	if len(result.Diagnostics) > 0 {
		logger.Log.Warn("upload stored with degraded redundancy", "short_id", result.Mapping.ShortId, "diagnostics", result.Diagnostics)
	}
	h.replyWithKeyboard(ctx, msg, uploadSuccessText(result, file.Kind), fileKeyboard(result, file.Kind))
}

// command returns the bot command a text starts with, "/start@mybot" included.
func command(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), true
}

// inboundFile picks the attachment of msg. Photos arrive as several sizes;
// the largest one is kept.
func inboundFile(msg *telegram.Message) (domain.InboundFile, bool) {
	descriptors := []struct {
		kind domain.FileKind
		fd   *telegram.FileDescriptor
	}{
		{domain.KindDocument, msg.Document},
		{domain.KindVideo, msg.Video},
		{domain.KindAudio, msg.Audio},
		{domain.KindAnimation, msg.Animation},
		{domain.KindVoice, msg.Voice},
	}
	for _, d := range descriptors {
		if d.fd == nil {
			continue
		}
		return domain.InboundFile{
			Handle:      domain.FileHandle(d.fd.FileId),
			DisplayName: d.fd.FileName,
			ByteSize:    d.fd.FileSize,
			MimeType:    d.fd.MimeType,
			Kind:        d.kind,
		}, true
	}

	if len(msg.Photo) > 0 {
		largest := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.FileSize > largest.FileSize || (p.FileSize == largest.FileSize && p.Width*p.Height > largest.Width*largest.Height) {
				largest = p
			}
		}
		return domain.InboundFile{
			Handle:   domain.FileHandle(largest.FileId),
			ByteSize: largest.FileSize,
			MimeType: "image/jpeg",
			Kind:     domain.KindPhoto,
		}, true
	}
	return domain.InboundFile{}, false
}

func uploadSuccessText(result *service.UploadResult, kind domain.FileKind) string {
	var b strings.Builder
	b.WriteString("Your link is ready!\n\n")
	fmt.Fprintf(&b, "File: %s\n", result.Mapping.Filename)
	fmt.Fprintf(&b, "Size: %s\n", FormatSize(result.Mapping.Size))
	fmt.Fprintf(&b, "Download: %s\n", result.Link)
	if streamable(kind) {
		fmt.Fprintf(&b, "Stream: %s\n", result.StreamLink)
	}
	return b.String()
}

func streamable(kind domain.FileKind) bool {
	return kind == domain.KindVideo || kind == domain.KindAudio || kind == domain.KindAnimation
}

// fileKeyboard opens the links directly; share, revoke and close come back
// as callback queries.
func fileKeyboard(result *service.UploadResult, kind domain.FileKind) *tgbotapi.InlineKeyboardMarkup {
	links := tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("Download", result.Link))
	if streamable(kind) {
		links = append(links, tgbotapi.NewInlineKeyboardButtonURL("Stream", result.StreamLink))
	}
	id := string(result.Mapping.ShortId)
	markup := tgbotapi.NewInlineKeyboardMarkup(
		links,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Share", callbackShare+id),
			tgbotapi.NewInlineKeyboardButtonData("Revoke", callbackRevoke+id),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Close", callbackClose)),
	)
	return &markup
}

func uploadFailureText(err error, maxSize int64) string {
	switch {
	case errors.Is(err, internal_errors.FileTooLarge):
		return fmt.Sprintf("File too large! Maximum size is %s.", FormatSize(maxSize))
	case utils.StatusOf(err) == http.StatusBadRequest:
		return noFileText
	default:
		return "Failed to create a download link. Please try again."
	}
}

func (h *Handler) reply(ctx context.Context, msg *telegram.Message, text string) {
	h.replyWithKeyboard(ctx, msg, text, nil)
}

// replyWithKeyboard falls back to plain text when the keyboard is refused,
// e.g. Telegram rejects URL buttons pointing at localhost.
func (h *Handler) replyWithKeyboard(ctx context.Context, msg *telegram.Message, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	p := telegram.SendMessageParams{
		ChatId:           msg.Chat.Id,
		Text:             text,
		ReplyToMessageId: msg.MessageId,
		DisablePreview:   true,
		ReplyMarkup:      markup,
	}
	_, err := h.bot.SendMessage(ctx, p)
	if err != nil && markup != nil {
		logger.Log.Warn("reply keyboard refused, sending plain text", "chat_id", msg.Chat.Id, "error", err)
		p.ReplyMarkup = nil
		_, err = h.bot.SendMessage(ctx, p)
	}
	if err != nil {
		logger.Log.Warn("failed to reply to user", "chat_id", msg.Chat.Id, "error", err)
	}
}

// FormatSize renders a byte count for humans. Zero means the size is unknown.
func FormatSize(size int64) string {
	if size <= 0 {
		return "Unknown"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(size)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", size)
	}
	return fmt.Sprintf("%.2f %s", value, units[i])
}
