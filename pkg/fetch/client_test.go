package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagrab/pkg/config"
	scrapeerr "mediagrab/pkg/errors"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Retry.Strategy = "none"
	cfg.Retry.MaxAttempts = 3
	return New(cfg, logger.NewNopLogger())
}

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		fmt.Fprint(w, "<html>post body</html>")
	}))
	defer server.Close()

	resp, err := testClient(t).Fetch(context.Background(), models.PlatformTikTok, server.URL, Options{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "post body")
	assert.False(t, resp.Redirected)
}

func TestFetchSendsCredentialCookie(t *testing.T) {
	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
	}))
	defer server.Close()

	_, err := testClient(t).Fetch(context.Background(), models.PlatformInstagram, server.URL, Options{
		Credential: "sessionid=secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, "sessionid=secret123", gotCookie)
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/video/123456", http.StatusFound)
	})
	mux.HandleFunc("/video/123456", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "resolved")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := testClient(t).Fetch(context.Background(), models.PlatformTikTok, server.URL+"/short", Options{})
	require.NoError(t, err)
	assert.True(t, resp.Redirected)
	assert.Equal(t, server.URL+"/video/123456", resp.FinalURL)
}

func TestFetchUnwrapsIntentRedirect(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	fallback := server.URL + "/landing"
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		loc := "intent://host/post#Intent;package=com.app;S.browser_fallback_url=" +
			url.QueryEscape(fallback) + ";end"
		w.Header().Set("Location", loc)
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/landing", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "landed")
	})

	resp, err := testClient(t).Fetch(context.Background(), models.PlatformTikTok, server.URL+"/short", Options{})
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body), "landed")
	assert.Equal(t, fallback, resp.FinalURL)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	resp, err := testClient(t).Fetch(context.Background(), models.PlatformTwitter, server.URL, Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFetchDoesNotRetryAuthErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := testClient(t).Fetch(context.Background(), models.PlatformInstagram, server.URL, Options{})
	require.Error(t, err)
	assert.Equal(t, scrapeerr.KindAuthRequired, scrapeerr.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchTimeoutIsTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := testClient(t)
	client.cfg.Retry.MaxAttempts = 1
	_, err := client.Fetch(context.Background(), models.PlatformTikTok, server.URL, Options{
		Timeout: 20 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Equal(t, scrapeerr.KindTransport, scrapeerr.KindOf(err))
}

func TestFetchCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := testClient(t).Fetch(ctx, models.PlatformTikTok, server.URL, Options{})
	assert.Error(t, err)
}

func TestResolveReturnsFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/s/abc", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/status/987654", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/status/987654", func(w http.ResponseWriter, r *http.Request) {})
	server := httptest.NewServer(mux)
	defer server.Close()

	final, err := testClient(t).Resolve(context.Background(), models.PlatformTwitter, server.URL+"/s/abc", Options{})
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/status/987654", final)
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		code int
		kind scrapeerr.Kind
	}{
		{200, ""},
		{204, ""},
		{401, scrapeerr.KindAuthRequired},
		{403, scrapeerr.KindAuthRequired},
		{404, scrapeerr.KindContentUnavailable},
		{410, scrapeerr.KindContentUnavailable},
		{429, scrapeerr.KindTransport},
		{500, scrapeerr.KindTransport},
		{503, scrapeerr.KindTransport},
		{418, scrapeerr.KindContentUnavailable},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			err := checkStatus(tt.code)
			if tt.kind == "" {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tt.kind, scrapeerr.KindOf(err))
			}
		})
	}
}

func TestUnwrapAppRedirect(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			"intent with fallback",
			"intent://www.tiktok.com/@u/video/1#Intent;package=com.zhiliaoapp.musically;S.browser_fallback_url=https%3A%2F%2Fwww.tiktok.com%2F%40u%2Fvideo%2F1;end",
			"https://www.tiktok.com/@u/video/1",
		},
		{
			"intent without fallback",
			"intent://www.example.com/post/2#Intent;package=com.app;end",
			"https://www.example.com/post/2",
		},
		{
			"scheme with url param",
			"snssdk1233://aweme?url=https://www.tiktok.com/@u/video/3",
			"https://www.tiktok.com/@u/video/3",
		},
		{
			"opaque app scheme",
			"fb://profile",
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, unwrapAppRedirect(u))
		})
	}
}
