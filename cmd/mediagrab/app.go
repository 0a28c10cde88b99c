package main

import (
	"strings"

	"mediagrab/pkg/cache"
	"mediagrab/pkg/config"
	"mediagrab/pkg/credpool"
	"mediagrab/pkg/extract"
	"mediagrab/pkg/fetch"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
	"mediagrab/pkg/scraper"
)

// app bundles the wired pipeline components for the CLI commands.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	scraper *scraper.Scraper
	pool    *credpool.Pool
	cache   *cache.Cache
	fetcher *fetch.Client
}

// buildApp wires the pipeline. Both backends are optional: without a
// redis address the cache always misses, without a postgres DSN no
// credentials are available.
func buildApp(cfg *config.Config, log logger.Logger) (*app, error) {
	var cacheBackend cache.Backend
	if cfg.Cache.RedisAddr != "" {
		cacheBackend = cache.NewRedisBackend(&cfg.Cache)
	}
	resultCache := cache.New(cacheBackend, &cfg.Cache, log)

	var store credpool.Store
	if cfg.Credentials.PostgresDSN != "" {
		var err error
		store, err = credpool.NewGormStore(cfg.Credentials.PostgresDSN)
		if err != nil {
			log.WithError(err).Warn("credential store unavailable, continuing without credentials")
			store = nil
		}
	}

	passphrase, err := credpool.LoadPassphrase(log)
	if err != nil {
		return nil, err
	}
	cipher, err := credpool.NewSecretCipher(passphrase)
	if err != nil {
		return nil, err
	}
	pool := credpool.New(store, cipher, cfg.Credentials, log)

	fetcher := fetch.New(cfg, log)
	engine := extract.NewEngine(cfg, log)

	return &app{
		cfg:     cfg,
		log:     log,
		scraper: scraper.New(cfg, fetcher, pool, resultCache, engine, log),
		pool:    pool,
		cache:   resultCache,
		fetcher: fetcher,
	}, nil
}

// detectPlatform infers the platform from the URL host.
func detectPlatform(rawURL string) models.Platform {
	host := rawURL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	host = strings.ToLower(host)

	switch {
	case strings.Contains(host, "instagram.com"):
		return models.PlatformInstagram
	case strings.Contains(host, "tiktok.com"):
		return models.PlatformTikTok
	case strings.Contains(host, "twitter.com"), host == "x.com", host == "www.x.com", host == "t.co":
		return models.PlatformTwitter
	case strings.Contains(host, "youtube.com"), strings.Contains(host, "youtu.be"):
		return models.PlatformYouTube
	}
	return ""
}
