package service

import (
	"context"

	"github.com/filmzi/filelink/shared/domain"
)

// MappingStorage is a key-value store for mappings. A miss is errors.NotFound.
type MappingStorage interface {
	Put(ctx context.Context, m domain.FileMapping) error
	Get(ctx context.Context, id domain.ShortId) (domain.FileMapping, error)
	List(ctx context.Context) ([]domain.FileMapping, error)
	Ping(ctx context.Context) error
}

// HistorySource pages through a message log from a start cursor of 0.
type HistorySource interface {
	Name() string
	Page(ctx context.Context, cursor int64, limit int) (domain.HistoryPage, error)
}

type MappingCache interface {
	Lookup(id domain.ShortId) (domain.FileMapping, bool)
	Store(m domain.FileMapping)
	Clear()
}

type MappingCodec interface {
	Decode(text string, id domain.ShortId) (domain.FileMapping, error)
}
