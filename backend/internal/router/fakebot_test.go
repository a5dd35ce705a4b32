package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/filmzi/filelink/backend/internal/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// fakeBot is an in-memory Bot API. Messages sent to the entries chat come
// back through getUpdates as channel posts, the way a real channel behaves.
type fakeBot struct {
	t           *testing.T
	token       string
	entriesChat int64

	mu        sync.Mutex
	updates   []telegram.Update
	forwarded []int64
	answers   []string
	deleted   []int64
	replies   []telegram.SendMessageParams
	files     map[string][]byte
	getFiles  []string
	server    *httptest.Server
}

func newFakeBot(t *testing.T, token string, entriesChat int64) *fakeBot {
	f := &fakeBot{t: t, token: token, entriesChat: entriesChat, files: map[string][]byte{}}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeBot) URL() string {
	return f.server.URL
}

func (f *fakeBot) addFile(fileId string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[fileId] = content
}

func (f *fakeBot) lastReply() telegram.SendMessageParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return telegram.SendMessageParams{}
	}
	return f.replies[len(f.replies)-1]
}

func (f *fakeBot) entries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var texts []string
	for _, u := range f.updates {
		texts = append(texts, u.ChannelPost.Text)
	}
	return texts
}

func (f *fakeBot) callbackAnswers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.answers...)
}

func (f *fakeBot) deletedMessages() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.deleted...)
}

func (f *fakeBot) fileRequests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.getFiles...)
}

func (f *fakeBot) serve(w http.ResponseWriter, r *http.Request) {
	if filePath, ok := strings.CutPrefix(r.URL.Path, "/file/bot"+f.token+"/"); ok {
		f.serveFile(w, r, filePath)
		return
	}
	method, ok := strings.CutPrefix(r.URL.Path, "/bot"+f.token+"/")
	if !ok {
		writeResult(w, false, nil, 401, "Unauthorized")
		return
	}

	if err := r.ParseForm(); err != nil {
		writeResult(w, false, nil, 400, "Bad Request: can't parse form")
		return
	}
	form := r.PostForm
	intParam := func(key string) int64 {
		v, _ := strconv.ParseInt(form.Get(key), 10, 64)
		return v
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch method {
	case "forwardMessage":
		f.forwarded = append(f.forwarded, intParam("message_id"))
		writeResult(w, true, telegram.Message{MessageId: int64(len(f.forwarded)) + 1000, Chat: telegram.Chat{Id: intParam("chat_id")}}, 0, "")

	case "sendMessage":
		p := telegram.SendMessageParams{
			ChatId:           intParam("chat_id"),
			Text:             form.Get("text"),
			ReplyToMessageId: intParam("reply_to_message_id"),
		}
		if markup := form.Get("reply_markup"); markup != "" {
			p.ReplyMarkup = &tgbotapi.InlineKeyboardMarkup{}
			if err := json.Unmarshal([]byte(markup), p.ReplyMarkup); err != nil {
				writeResult(w, false, nil, 400, "Bad Request: can't parse reply keyboard markup JSON object")
				return
			}
		}
		msg := telegram.Message{MessageId: int64(len(f.updates) + len(f.replies) + 1), Chat: telegram.Chat{Id: p.ChatId}, Date: time.Now().Unix(), Text: p.Text}
		if p.ChatId == f.entriesChat {
			msg.Chat.Type = "channel"
			f.updates = append(f.updates, telegram.Update{UpdateId: int64(len(f.updates) + 1), ChannelPost: &msg})
		} else {
			f.replies = append(f.replies, p)
		}
		writeResult(w, true, msg, 0, "")

	case "getUpdates":
		offset := intParam("offset")
		limit := 100
		if v := intParam("limit"); v > 0 {
			limit = int(v)
		}
		page := []telegram.Update{}
		for _, u := range f.updates {
			if u.UpdateId >= offset && len(page) < limit {
				page = append(page, u)
			}
		}
		writeResult(w, true, page, 0, "")

	case "getFile":
		fileId := form.Get("file_id")
		f.getFiles = append(f.getFiles, fileId)
		if _, ok := f.files[fileId]; !ok {
			writeResult(w, false, nil, 400, "Bad Request: invalid file_id")
			return
		}
		writeResult(w, true, telegram.File{FileId: fileId, FilePath: "documents/" + fileId}, 0, "")

	case "answerCallbackQuery":
		f.answers = append(f.answers, form.Get("text"))
		writeResult(w, true, true, 0, "")

	case "deleteMessage":
		f.deleted = append(f.deleted, intParam("message_id"))
		writeResult(w, true, true, 0, "")

	default:
		writeResult(w, false, nil, 404, "Not Found: method not found")
	}
}

func (f *fakeBot) serveFile(w http.ResponseWriter, r *http.Request, filePath string) {
	f.mu.Lock()
	content, ok := f.files[strings.TrimPrefix(filePath, "documents/")]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(content))
}

func writeResult(w http.ResponseWriter, ok bool, result any, code int, description string) {
	body := map[string]any{"ok": ok}
	if ok {
		body["result"] = result
	} else {
		body["error_code"] = code
		body["description"] = description
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}
