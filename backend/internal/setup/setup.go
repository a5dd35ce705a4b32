package setup

import (
	"context"
	"fmt"
	"net/http"

	"github.com/filmzi/filelink/backend/internal/cache"
	"github.com/filmzi/filelink/backend/internal/codec"
	"github.com/filmzi/filelink/backend/internal/handler"
	"github.com/filmzi/filelink/backend/internal/service"
	"github.com/filmzi/filelink/backend/internal/storage/fs"
	"github.com/filmzi/filelink/backend/internal/storage/history"
	"github.com/filmzi/filelink/backend/internal/storage/pg"
	"github.com/filmzi/filelink/backend/internal/storage/redis"
	"github.com/filmzi/filelink/backend/internal/storage/s3"
	"github.com/filmzi/filelink/backend/internal/telegram"
	"github.com/filmzi/filelink/shared/config"
	"github.com/filmzi/filelink/shared/jwt"
	"github.com/filmzi/filelink/shared/logger"
	mw "github.com/filmzi/filelink/shared/middleware"
)

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Config         *config.Config
	Handler        *handler.Handler
	Jwt            jwt.JwtService // nil when no admin secret is configured
	AuthMiddleware *mw.Auth       // nil when no admin secret is configured

	closers []func() error
}

// Cleanup releases storage connections.
func (d *Dependencies) Cleanup() {
	for _, c := range d.closers {
		if err := c(); err != nil {
			logger.Log.Warn("cleanup failed", "error", err)
		}
	}
}

// SetupDependencies initializes all dependencies required for the application.
func SetupDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg}

	direct, err := deps.directStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Bot API calls are short; file downloads are not, so they get a client
	// bounded only while waiting for headers.
	apiClient := &http.Client{Timeout: cfg.Public.Telegram.RequestTimeout}
	fileClient := &http.Client{Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: cfg.Public.Telegram.RequestTimeout,
		MaxIdleConnsPerHost:   16,
	}}
	apiURL := cfg.Public.Telegram.APIURL
	bot := telegram.New(apiURL, cfg.Private.BotToken, apiClient)
	fileBot := telegram.New(apiURL, cfg.Private.BotToken, fileClient)

	sources, err := historySources(cfg, bot, apiClient)
	if err != nil {
		return nil, err
	}

	mappingCache := cache.New(cfg.Public.Resolver.CacheTTL)
	mappingCache.StartBackgroundSweep(ctx, cfg.Public.Resolver.CacheSweepInterval)
	resolver := service.NewResolver(direct, sources, mappingCache, codec.Default(), service.ResolverConfig{
		PageSize:     cfg.Public.Resolver.PageSize,
		MaxPages:     cfg.Public.Resolver.MaxPages,
		ListMaxPages: cfg.Public.Resolver.ListMaxPages,
	})
	channels := telegram.NewChannels(bot, cfg.Public.Telegram.ChannelID, cfg.DBChannel())

	upload := service.NewUpload(channels, direct, mappingCache, service.UploadConfig{
		BaseURL:     cfg.Public.BaseURL,
		MaxFileSize: cfg.Public.MaxFileSize,
	})
	download := service.NewDownload(resolver, fileBot)
	backup := service.NewBackup(channels, direct, resolver)

	var health handler.HealthChecker = handler.NopHealth{}
	if direct != nil {
		health = direct
	}
	deps.Handler = handler.New(upload, download, backup, bot, health, cfg)

	if secret := cfg.Private.AdminJwtSecret; secret != "" {
		deps.Jwt = jwt.New(secret, cfg.Public.AdminTokenTTL)
		deps.AuthMiddleware = mw.NewAuth(deps.Jwt)
	} else {
		logger.Log.Warn("admin_jwt_secret is not set, /db endpoints are unauthenticated")
	}

	logger.Log.Info("dependencies ready",
		"direct_store", cfg.Public.DirectStore.Kind,
		"sources", len(sources),
		"channel_id", cfg.Public.Telegram.ChannelID,
		"db_channel_id", cfg.DBChannel())
	return deps, nil
}

// directStore returns the configured store, or nil for kind "none".
func (d *Dependencies) directStore(ctx context.Context, cfg *config.Config) (service.MappingStorage, error) {
	switch kind := cfg.Public.DirectStore.Kind; kind {
	case "none":
		return nil, nil
	case "redis":
		store := redis.New(cfg)
		d.closers = append(d.closers, store.Close)
		if err := store.Ping(ctx); err != nil {
			logger.Log.Warn("redis is not reachable yet, lookups fall back to the scan", "error", err)
		}
		return store, nil
	case "pg":
		store, err := pg.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("postgres direct store: %w", err)
		}
		d.closers = append(d.closers, store.Cleanup)
		return store, nil
	case "fs":
		store, err := fs.New(cfg.Public.DirectStore.FS.Root)
		if err != nil {
			return nil, fmt.Errorf("fs direct store: %w", err)
		}
		return store, nil
	case "s3":
		store, err := s3.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("s3 direct store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown direct store %q", kind)
	}
}

// historySources builds the scan sources in configured order. Sources naming
// the same bot share one client.
func historySources(cfg *config.Config, primary *telegram.Client, httpClient *http.Client) ([]service.HistorySource, error) {
	clients := map[string]*telegram.Client{"": primary}
	var sources []service.HistorySource
	for _, s := range cfg.ScanSources() {
		client, ok := clients[s.Bot]
		if !ok {
			token, err := cfg.BotToken(s.Bot)
			if err != nil {
				return nil, fmt.Errorf("source %q: %w", s.Name, err)
			}
			client = telegram.New(cfg.Public.Telegram.APIURL, token, httpClient)
			clients[s.Bot] = client
		}
		sources = append(sources, history.New(s.Name, s.ChatID, client))
	}
	return sources, nil
}
