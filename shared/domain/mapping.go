package domain

import "time"

type ShortId string
type FileHandle string

// FileMapping links a public short id to a file stored on the chat platform.
// Zero values mean "unknown": Size 0, CreatedAt zero, UploaderId 0.
type FileMapping struct {
	ShortId      ShortId
	FileHandle   FileHandle
	Filename     string
	Size         int64
	CreatedAt    time.Time
	UploaderId   int64
	UploaderName string
}

// InboundFile is the attachment descriptor of an incoming bot message.
type InboundFile struct {
	Handle      FileHandle
	DisplayName string // may be empty
	ByteSize    int64  // may be 0
	MimeType    string
	Kind        FileKind
}

type FileKind string

const (
	KindDocument  FileKind = "document"
	KindVideo     FileKind = "video"
	KindAudio     FileKind = "audio"
	KindVoice     FileKind = "voice"
	KindAnimation FileKind = "animation"
	KindPhoto     FileKind = "photo"
)

// HistoryMessage is one text-bearing message read back from a channel history.
type HistoryMessage struct {
	UpdateId int64
	ChatId   int64
	Text     string
}

// HistoryPage is one page of a history source. Count is the number of raw
// updates the page held, text-bearing or not; a page with Count below the
// requested limit is the last one.
type HistoryPage struct {
	Messages []HistoryMessage
	Next     int64
	Count    int
}
