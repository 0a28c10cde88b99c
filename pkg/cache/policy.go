package cache

import (
	"time"

	"mediagrab/pkg/config"
	"mediagrab/pkg/models"
)

// TTLFor selects the cache lifetime for a result. Ephemeral content gets
// a short TTL so expired stories never outlive the platform's own
// expiry; everything else is capped at MaxTTL.
func TTLFor(cfg *config.CacheConfig, contentType models.ContentType) time.Duration {
	var ttl time.Duration
	switch contentType {
	case models.ContentStory:
		ttl = cfg.StoryTTL
	case models.ContentVideo:
		ttl = cfg.VideoTTL
	case models.ContentCarousel:
		ttl = cfg.CarouselTTL
	default:
		ttl = cfg.PostTTL
	}
	if ttl <= 0 {
		ttl = cfg.PostTTL
	}
	if cfg.MaxTTL > 0 && ttl > cfg.MaxTTL {
		ttl = cfg.MaxTTL
	}
	return ttl
}
