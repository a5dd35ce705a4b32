// Package history reads channel history back through a bot's update feed.
package history

import (
	"context"

	"github.com/filmzi/filelink/backend/internal/telegram"
	"github.com/filmzi/filelink/shared/domain"
)

type updatesReader interface {
	GetUpdates(ctx context.Context, offset int64, limit int) ([]telegram.Update, error)
}

// Source is one pagination source: a bot whose updates are filtered down to a
// single chat. Updates from other chats still advance the cursor.
type Source struct {
	name   string
	chatId int64
	bot    updatesReader
}

func New(name string, chatId int64, bot updatesReader) *Source {
	return &Source{name: name, chatId: chatId, bot: bot}
}

func (s *Source) Name() string {
	return s.name
}

// Page fetches up to limit updates from cursor. The next cursor is one past the
// highest update id seen, or cursor itself when the page was empty.
func (s *Source) Page(ctx context.Context, cursor int64, limit int) (domain.HistoryPage, error) {
	updates, err := s.bot.GetUpdates(ctx, cursor, limit)
	if err != nil {
		return domain.HistoryPage{}, err
	}

	page := domain.HistoryPage{Next: cursor, Count: len(updates)}
	for _, u := range updates {
		if u.UpdateId+1 > page.Next {
			page.Next = u.UpdateId + 1
		}
		post := u.Post()
		if post == nil || (s.chatId != 0 && post.Chat.Id != s.chatId) {
			continue
		}
		text := post.Text
		if text == "" {
			text = post.Caption
		}
		if text == "" {
			continue
		}
		page.Messages = append(page.Messages, domain.HistoryMessage{
			UpdateId: u.UpdateId,
			ChatId:   post.Chat.Id,
			Text:     text,
		})
	}
	return page, nil
}
