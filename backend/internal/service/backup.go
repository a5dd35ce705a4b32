package service

import (
	"context"
	"fmt"
	"time"

	"github.com/filmzi/filelink/backend/internal/codec"
	"github.com/filmzi/filelink/shared/domain"
	internal_errors "github.com/filmzi/filelink/shared/errors"
	"github.com/filmzi/filelink/shared/logger"
)

// to mock service in tests
type BackupService interface {
	Save(ctx context.Context, m domain.FileMapping) (int, error)
	Get(ctx context.Context, id domain.ShortId) (domain.FileMapping, error)
	List(ctx context.Context) ([]domain.FileMapping, error)
	Cleanup(ctx context.Context, daysOld int) (*CleanupReport, error)
}

const DefaultCleanupDays = 365

// CleanupReport describes what a cleanup would remove. Nothing is removed.
type CleanupReport struct {
	Cutoff     time.Time
	Candidates int
}

type Backup struct {
	channel  ChannelWriter
	direct   MappingStorage // nil when not configured
	resolver ResolverService
	now      func() time.Time
}

func NewBackup(channel ChannelWriter, direct MappingStorage, resolver ResolverService) *Backup {
	return &Backup{channel: channel, direct: direct, resolver: resolver, now: time.Now}
}

// Save writes every redundant entry for m independently and reports how many
// landed. It fails only when none did.
func (b *Backup) Save(ctx context.Context, m domain.FileMapping) (int, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = b.now().UTC().Truncate(time.Second)
	}

	entries := []string{
		codec.TaggedJSON{}.Encode(m),
		codec.Delimited{}.Encode(m),
		codec.SearchLine(m),
	}
	saved := 0
	for _, entry := range entries {
		if err := b.channel.PostEntry(ctx, entry, 0); err != nil {
			logger.Log.Warn("backup entry failed", "short_id", m.ShortId, "error", err)
			continue
		}
		saved++
	}
	if b.direct != nil {
		if err := b.direct.Put(ctx, m); err != nil {
			logger.Log.Warn("backup direct store put failed", "short_id", m.ShortId, "error", err)
		} else {
			saved++
		}
	}

	if saved == 0 {
		return 0, fmt.Errorf("%w: no backup entry could be written", internal_errors.UpstreamUnavailable)
	}
	b.resolver.Remember(m)
	return saved, nil
}

func (b *Backup) Get(ctx context.Context, id domain.ShortId) (domain.FileMapping, error) {
	return b.resolver.Resolve(ctx, id)
}

func (b *Backup) List(ctx context.Context) ([]domain.FileMapping, error) {
	return b.resolver.List(ctx)
}

// Cleanup reports the cutoff and how many known mappings are older than it.
// Deletion is disabled.
func (b *Backup) Cleanup(ctx context.Context, daysOld int) (*CleanupReport, error) {
	if daysOld <= 0 {
		daysOld = DefaultCleanupDays
	}
	report := &CleanupReport{Cutoff: b.now().UTC().Add(-time.Duration(daysOld) * 24 * time.Hour).Truncate(time.Second)}

	mappings, err := b.resolver.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range mappings {
		if !m.CreatedAt.IsZero() && m.CreatedAt.Before(report.Cutoff) {
			report.Candidates++
		}
	}
	return report, nil
}
