package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/filmzi/filelink/backend/internal/codec"
	"github.com/filmzi/filelink/shared/domain"
	internal_errors "github.com/filmzi/filelink/shared/errors"
	"github.com/filmzi/filelink/shared/logger"
	"golang.org/x/sync/errgroup"
)

// to mock service in tests
type ResolverService interface {
	Resolve(ctx context.Context, id domain.ShortId) (domain.FileMapping, error)
	List(ctx context.Context) ([]domain.FileMapping, error)
	Remember(m domain.FileMapping)
}

type ResolverConfig struct {
	PageSize     int
	MaxPages     int
	ListMaxPages int
}

// Resolver finds mappings. The direct store is authoritative when it has the
// id; the history sources are scanned in order only after a direct miss or
// failure.
type Resolver struct {
	direct  MappingStorage // nil when not configured
	sources []HistorySource
	cache   MappingCache
	codec   MappingCodec
	cfg     ResolverConfig
}

func NewResolver(direct MappingStorage, sources []HistorySource, cache MappingCache, codec MappingCodec, cfg ResolverConfig) *Resolver {
	return &Resolver{
		direct:  direct,
		sources: sources,
		cache:   cache,
		codec:   codec,
		cfg:     cfg,
	}
}

// Resolve returns the mapping for id or errors.NotFound once every source is
// exhausted.
func (r *Resolver) Resolve(ctx context.Context, id domain.ShortId) (domain.FileMapping, error) {
	if m, ok := r.cache.Lookup(id); ok {
		resolveTotal.WithLabelValues("cache").Inc()
		return m, nil
	}

	if r.direct != nil {
		m, err := r.direct.Get(ctx, id)
		switch {
		case err == nil:
			resolveTotal.WithLabelValues("direct").Inc()
			r.cache.Store(m)
			return m, nil
		case errors.Is(err, internal_errors.NotFound):
		default:
			logger.Log.Warn("direct store lookup failed, falling back to scan", "short_id", id, "error", err)
		}
	}

	for _, src := range r.sources {
		m, found, err := r.scan(ctx, src, id)
		if err != nil {
			if ctx.Err() != nil {
				return domain.FileMapping{}, ctx.Err()
			}
			scanErrorsTotal.WithLabelValues(src.Name()).Inc()
			logger.Log.Warn("history source failed", "source", src.Name(), "short_id", id, "error", err)
			continue
		}
		if found {
			resolveTotal.WithLabelValues("scan").Inc()
			r.cache.Store(m)
			return m, nil
		}
	}

	resolveTotal.WithLabelValues("not_found").Inc()
	return domain.FileMapping{}, fmt.Errorf("short id %s: %w", id, internal_errors.NotFound)
}

// scan walks one source from its start until the first match, a short page or
// the page budget. Within a page the first match wins.
func (r *Resolver) scan(ctx context.Context, src HistorySource, id domain.ShortId) (domain.FileMapping, bool, error) {
	var cursor int64
	for page := 0; page < r.cfg.MaxPages; page++ {
		p, err := src.Page(ctx, cursor, r.cfg.PageSize)
		if err != nil {
			return domain.FileMapping{}, false, err
		}
		scanPagesTotal.WithLabelValues(src.Name()).Inc()

		for _, msg := range p.Messages {
			m, err := r.codec.Decode(msg.Text, id)
			if err == nil {
				return m, true, nil
			}
			if errors.Is(err, codec.ErrParseFailed) {
				logger.Log.Debug("skipping unreadable entry", "source", src.Name(), "update_id", msg.UpdateId, "error", err)
			}
		}

		if p.Count < r.cfg.PageSize {
			return domain.FileMapping{}, false, nil
		}
		cursor = p.Next
	}
	logger.Log.Debug("scan budget exhausted", "source", src.Name(), "short_id", id, "max_pages", r.cfg.MaxPages)
	return domain.FileMapping{}, false, nil
}

// Remember caches a mapping the caller already knows, typically a fresh upload.
func (r *Resolver) Remember(m domain.FileMapping) {
	r.cache.Store(m)
}

// List returns every mapping reachable from the direct store and the history
// sources, newest first. Sources are read concurrently; a failing source is
// skipped. When an id appears more than once the direct store wins, then the
// sources in configured order, then the oldest entry within a source.
func (r *Resolver) List(ctx context.Context) ([]domain.FileMapping, error) {
	results := make([][]domain.FileMapping, len(r.sources)+1)

	g, gctx := errgroup.WithContext(ctx)
	if r.direct != nil {
		g.Go(func() error {
			mappings, err := r.direct.List(gctx)
			if err != nil {
				logger.Log.Warn("direct store list failed", "error", err)
				return nil
			}
			results[0] = mappings
			return nil
		})
	}
	for i, src := range r.sources {
		g.Go(func() error {
			mappings, err := r.collect(gctx, src)
			if err != nil {
				scanErrorsTotal.WithLabelValues(src.Name()).Inc()
				logger.Log.Warn("history source failed during list", "source", src.Name(), "error", err)
			}
			results[i+1] = mappings
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[domain.ShortId]struct{})
	var merged []domain.FileMapping
	for _, batch := range results {
		for _, m := range batch {
			if _, ok := seen[m.ShortId]; ok {
				continue
			}
			seen[m.ShortId] = struct{}{}
			merged = append(merged, m)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged, nil
}

// collect decodes every entry of a source within the list page budget. On a
// transport error it returns what it gathered so far along with the error.
func (r *Resolver) collect(ctx context.Context, src HistorySource) ([]domain.FileMapping, error) {
	var (
		cursor   int64
		mappings []domain.FileMapping
	)
	for page := 0; page < r.cfg.ListMaxPages; page++ {
		p, err := src.Page(ctx, cursor, r.cfg.PageSize)
		if err != nil {
			return mappings, err
		}
		scanPagesTotal.WithLabelValues(src.Name()).Inc()

		for _, msg := range p.Messages {
			if m, err := r.codec.Decode(msg.Text, ""); err == nil {
				mappings = append(mappings, m)
			}
		}
		if p.Count < r.cfg.PageSize {
			break
		}
		cursor = p.Next
	}
	return mappings, nil
}
