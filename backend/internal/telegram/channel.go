package telegram

import "context"

// Channels writes into the archival and mapping channels through one bot.
type Channels struct {
	client  *Client
	archive int64
	entries int64
}

func NewChannels(client *Client, archiveChat, entriesChat int64) *Channels {
	return &Channels{client: client, archive: archiveChat, entries: entriesChat}
}

func (c *Channels) Archive(ctx context.Context, fromChat, messageId int64) (int64, error) {
	m, err := c.client.ForwardMessage(ctx, c.archive, fromChat, messageId)
	if err != nil {
		return 0, err
	}
	return m.MessageId, nil
}

// PostEntry writes text to the mapping channel. A reply to the archived file
// is only possible when both channels are the same chat.
func (c *Channels) PostEntry(ctx context.Context, text string, replyTo int64) error {
	p := SendMessageParams{
		ChatId:              c.entries,
		Text:                text,
		DisableNotification: true,
		DisablePreview:      true,
	}
	if c.entries == c.archive {
		p.ReplyToMessageId = replyTo
	}
	_, err := c.client.SendMessage(ctx, p)
	return err
}
