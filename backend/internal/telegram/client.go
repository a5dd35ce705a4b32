// Package telegram wraps the Bot API calls the relay makes.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client talks to one bot. JSON methods go through tgbotapi; file bodies are
// fetched directly so Range and streaming stay under our control. The token
// is part of every URL, so errors built here never include the URL.
type Client struct {
	bot        *tgbotapi.BotAPI
	fileURL    string
	httpClient *http.Client
}

func New(apiURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	base := strings.TrimRight(apiURL, "/")

	// NewBotAPI calls getMe; building the struct keeps construction offline.
	bot := &tgbotapi.BotAPI{Token: token, Client: httpClient, Buffer: 100}
	bot.SetAPIEndpoint(base + "/bot%s/%s")

	return &Client{
		bot:        bot,
		fileURL:    base + "/file/bot" + token + "/",
		httpClient: httpClient,
	}
}

// contextClient binds every request of one call to ctx. tgbotapi builds its
// requests without a context.
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

func (c *Client) withContext(ctx context.Context) *tgbotapi.BotAPI {
	bot := *c.bot
	bot.Client = contextClient{ctx: ctx, client: c.httpClient}
	return &bot
}

// request runs one Bot API method and decodes its result into out.
func (c *Client) request(ctx context.Context, method string, config tgbotapi.Chattable, out any) error {
	resp, err := c.withContext(ctx).Request(config)
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			return &APIError{Method: method, Code: apiErr.Code, Description: apiErr.Message}
		}
		return fmt.Errorf("telegram %s: %w", method, redact(err))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}

// GetUpdates reads up to limit updates starting at offset. Offset 0 starts at
// the oldest unconfirmed update.
func (c *Client) GetUpdates(ctx context.Context, offset int64, limit int) ([]Update, error) {
	config := tgbotapi.UpdateConfig{
		Offset:         int(offset),
		Limit:          limit,
		AllowedUpdates: []string{"message", "channel_post"},
	}
	var updates []Update
	if err := c.request(ctx, "getUpdates", config, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) SendMessage(ctx context.Context, p SendMessageParams) (*Message, error) {
	config := tgbotapi.NewMessage(p.ChatId, p.Text)
	config.ParseMode = p.ParseMode
	config.ReplyToMessageID = int(p.ReplyToMessageId)
	config.DisableNotification = p.DisableNotification
	config.DisableWebPagePreview = p.DisablePreview
	if p.ReplyMarkup != nil {
		config.ReplyMarkup = p.ReplyMarkup
	}

	var m Message
	if err := c.request(ctx, "sendMessage", config, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) ForwardMessage(ctx context.Context, toChat, fromChat, messageId int64) (*Message, error) {
	config := tgbotapi.NewForward(toChat, fromChat, int(messageId))
	config.DisableNotification = true

	var m Message
	if err := c.request(ctx, "forwardMessage", config, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// AnswerCallback acknowledges a button press; text shows as a toast.
func (c *Client) AnswerCallback(ctx context.Context, callbackId, text string) error {
	return c.request(ctx, "answerCallbackQuery", tgbotapi.NewCallback(callbackId, text), nil)
}

func (c *Client) DeleteMessage(ctx context.Context, chatId, messageId int64) error {
	return c.request(ctx, "deleteMessage", tgbotapi.NewDeleteMessage(chatId, int(messageId)), nil)
}

// GetFile returns a descriptor whose FilePath is valid for about an hour.
func (c *Client) GetFile(ctx context.Context, fileId string) (*File, error) {
	var f File
	if err := c.request(ctx, "getFile", tgbotapi.FileConfig{FileID: fileId}, &f); err != nil {
		return nil, err
	}
	if f.FilePath == "" {
		return nil, &APIError{Method: "getFile", Description: "empty file_path"}
	}
	return &f, nil
}

// OpenFile starts downloading filePath. rangeHeader is forwarded verbatim when
// set. The caller owns the response body.
func (c *Client) OpenFile(ctx context.Context, filePath, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL+filePath, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram file: create request: %w", redact(err))
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram file: %w", redact(err))
	}
	return resp, nil
}

// redact strips the request URL, which embeds the bot token, from err.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
