package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Subset of the Bot API objects used by the relay.

type Update struct {
	UpdateId      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	ChannelPost   *Message       `json:"channel_post,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// CallbackQuery is an inline keyboard button press. Message is the message
// carrying the keyboard.
type CallbackQuery struct {
	Id      string   `json:"id"`
	From    *User    `json:"from,omitempty"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// Post returns whichever message the update carries. Channels deliver
// channel_post, groups and private chats deliver message.
func (u Update) Post() *Message {
	if u.Message != nil {
		return u.Message
	}
	return u.ChannelPost
}

type Message struct {
	MessageId int64           `json:"message_id"`
	From      *User           `json:"from,omitempty"`
	Chat      Chat            `json:"chat"`
	Date      int64           `json:"date"`
	Text      string          `json:"text,omitempty"`
	Caption   string          `json:"caption,omitempty"`
	Document  *FileDescriptor `json:"document,omitempty"`
	Video     *FileDescriptor `json:"video,omitempty"`
	Audio     *FileDescriptor `json:"audio,omitempty"`
	Voice     *FileDescriptor `json:"voice,omitempty"`
	Animation *FileDescriptor `json:"animation,omitempty"`
	Photo     []PhotoSize     `json:"photo,omitempty"`
}

type User struct {
	Id        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	Id   int64  `json:"id"`
	Type string `json:"type"`
}

type FileDescriptor struct {
	FileId       string `json:"file_id"`
	FileUniqueId string `json:"file_unique_id"`
	FileName     string `json:"file_name,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
}

type PhotoSize struct {
	FileId       string `json:"file_id"`
	FileUniqueId string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FileSize     int64  `json:"file_size,omitempty"`
}

type File struct {
	FileId   string `json:"file_id"`
	FileSize int64  `json:"file_size,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// APIError is a request the Bot API answered with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// SendMessageParams mirrors sendMessage. Zero values are omitted.
type SendMessageParams struct {
	ChatId              int64                          `json:"chat_id"`
	Text                string                         `json:"text"`
	ParseMode           string                         `json:"parse_mode,omitempty"`
	ReplyToMessageId    int64                          `json:"reply_to_message_id,omitempty"`
	DisableNotification bool                           `json:"disable_notification,omitempty"`
	DisablePreview      bool                           `json:"disable_web_page_preview,omitempty"`
	ReplyMarkup         *tgbotapi.InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}
