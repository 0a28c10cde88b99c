package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mediagrab/pkg/models"
)

func TestContentID(t *testing.T) {
	tests := []struct {
		name     string
		platform models.Platform
		url      string
		want     string
	}{
		{
			name:     "instagram post",
			platform: models.PlatformInstagram,
			url:      "https://www.instagram.com/p/Cxyz123_ab/",
			want:     "Cxyz123_ab",
		},
		{
			name:     "instagram reel",
			platform: models.PlatformInstagram,
			url:      "https://instagram.com/reel/DAbc-987/?igsh=xyz",
			want:     "DAbc-987",
		},
		{
			name:     "instagram tv",
			platform: models.PlatformInstagram,
			url:      "https://www.instagram.com/tv/BkQjCfsBIzi/",
			want:     "BkQjCfsBIzi",
		},
		{
			name:     "instagram story",
			platform: models.PlatformInstagram,
			url:      "https://www.instagram.com/stories/someuser/3141592653589793/",
			want:     "story:someuser:3141592653589793",
		},
		{
			name:     "tiktok video",
			platform: models.PlatformTikTok,
			url:      "https://www.tiktok.com/@user/video/7301234567890123456",
			want:     "7301234567890123456",
		},
		{
			name:     "tiktok photo post",
			platform: models.PlatformTikTok,
			url:      "https://www.tiktok.com/@user/photo/7301234567890123456",
			want:     "7301234567890123456",
		},
		{
			name:     "tiktok short link has no id",
			platform: models.PlatformTikTok,
			url:      "https://vm.tiktok.com/ZMabcdef/",
			want:     "",
		},
		{
			name:     "twitter status",
			platform: models.PlatformTwitter,
			url:      "https://x.com/user/status/1790000000000000000",
			want:     "1790000000000000000",
		},
		{
			name:     "twitter status with photo suffix",
			platform: models.PlatformTwitter,
			url:      "https://twitter.com/user/status/1790000000000000000/photo/1",
			want:     "1790000000000000000",
		},
		{
			name:     "youtube watch",
			platform: models.PlatformYouTube,
			url:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42",
			want:     "dQw4w9WgXcQ",
		},
		{
			name:     "youtube short link",
			platform: models.PlatformYouTube,
			url:      "https://youtu.be/dQw4w9WgXcQ?si=share",
			want:     "dQw4w9WgXcQ",
		},
		{
			name:     "youtube shorts",
			platform: models.PlatformYouTube,
			url:      "https://www.youtube.com/shorts/aBcDeFgHiJk",
			want:     "aBcDeFgHiJk",
		},
		{
			name:     "profile url has no id",
			platform: models.PlatformInstagram,
			url:      "https://www.instagram.com/someuser/",
			want:     "",
		},
		{
			name:     "unparseable url",
			platform: models.PlatformInstagram,
			url:      "://bad",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentID(tt.platform, tt.url))
		})
	}
}

func TestContentIDStableUnderTrackingParams(t *testing.T) {
	variants := []string{
		"https://www.instagram.com/p/Cxyz123/",
		"https://www.instagram.com/p/Cxyz123/?igsh=MXabc",
		"https://instagram.com/p/Cxyz123?utm_source=share&utm_medium=copy",
	}
	first := ContentID(models.PlatformInstagram, variants[0])
	assert.NotEmpty(t, first)
	for _, v := range variants[1:] {
		assert.Equal(t, first, ContentID(models.PlatformInstagram, v), v)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			in:   "https://WWW.Instagram.COM/p/Abc/?utm_source=x&utm_medium=y",
			want: "https://instagram.com/p/Abc",
		},
		{
			in:   "https://www.tiktok.com/@user/video/123?is_from_webapp=1&fbclid=zzz",
			want: "https://tiktok.com/@user/video/123?is_from_webapp=1",
		},
		{
			in:   "https://x.com/u/status/1?s=20&t=xyz",
			want: "https://x.com/u/status/1",
		},
		{
			in:   "https://youtu.be/abc#t=30",
			want: "https://youtu.be/abc",
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.in), tt.in)
	}
}

func TestURLHashStableAcrossVariants(t *testing.T) {
	a := URLHash("https://www.instagram.com/p/Abc/?igshid=123")
	b := URLHash("https://instagram.com/p/Abc?utm_source=share")
	assert.Equal(t, a, b)

	c := URLHash("https://instagram.com/p/Other/")
	assert.NotEqual(t, a, c)
}

func TestIsShortURL(t *testing.T) {
	assert.True(t, IsShortURL("https://vm.tiktok.com/ZMabc/"))
	assert.True(t, IsShortURL("https://vt.tiktok.com/ZSabc/"))
	assert.True(t, IsShortURL("https://t.co/xYz123"))
	assert.False(t, IsShortURL("https://youtu.be/dQw4w9WgXcQ"))
	assert.False(t, IsShortURL("https://www.tiktok.com/@user/video/123"))
}
