package wrap

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"cinepipe/pkg/config"
	errs "cinepipe/pkg/errors"
	"cinepipe/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.WrapConfig{
		AccountID:    "12345",
		BaseURL:      server.URL,
		Timeout:      5 * time.Second,
		RequestDelay: time.Millisecond,
	}, logger.NewTestLogger())
	return client, server
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestWrapIsDeterministic(t *testing.T) {
	client, _ := newTestClient(t, okHandler)

	first, err := client.Wrap(context.Background(), "https://www.vidking.net/embed/movie/603", "603")
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	second, err := client.Wrap(context.Background(), "https://www.vidking.net/embed/movie/603", "603")
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}

	if first != second {
		t.Errorf("Same item produced different links:\n%s\n%s", first, second)
	}
}

func TestWrapLinkStructure(t *testing.T) {
	client, server := newTestClient(t, okHandler)

	sourceURL := "https://www.vidking.net/embed/tv/1399"
	wrapped, err := client.Wrap(context.Background(), sourceURL, "tv-1399")
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}

	if !strings.HasPrefix(wrapped, server.URL+"/12345/") {
		t.Errorf("Wrapped link missing base and account: %s", wrapped)
	}
	if !strings.Contains(wrapped, "/dynamic?r=") {
		t.Errorf("Wrapped link missing dynamic suffix: %s", wrapped)
	}

	// The r parameter is the base64 encoded target URL
	parsed, err := url.Parse(wrapped)
	if err != nil {
		t.Fatalf("Failed to parse wrapped link: %v", err)
	}
	decoded, err := base64.URLEncoding.DecodeString(parsed.Query().Get("r"))
	if err != nil {
		t.Fatalf("Failed to decode r parameter: %v", err)
	}
	if string(decoded) != sourceURL {
		t.Errorf("Decoded target = %s, want %s", decoded, sourceURL)
	}
}

func TestWrapDifferentItemsGetDifferentSlots(t *testing.T) {
	client, _ := newTestClient(t, okHandler)

	first, err := client.Wrap(context.Background(), "https://www.vidking.net/embed/movie/1", "movie-1")
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	second, err := client.Wrap(context.Background(), "https://www.vidking.net/embed/movie/2", "movie-2")
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	if first == second {
		t.Error("Different items produced identical links")
	}
}

func TestWrapEmptySourceURL(t *testing.T) {
	client, _ := newTestClient(t, okHandler)

	_, err := client.Wrap(context.Background(), "", "603")
	if err == nil {
		t.Fatal("Expected error for empty source URL")
	}
	var typed *errs.Error
	if !errors.As(err, &typed) || typed.Type != errs.ErrorTypeWrapPermanent {
		t.Errorf("Expected wrap_permanent error, got %v", err)
	}
}

func TestWrapStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   errs.ErrorType
	}{
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{http.StatusInternalServerError, errs.ErrorTypeWrapTransient},
		{http.StatusForbidden, errs.ErrorTypeWrapPermanent},
	}

	for _, test := range tests {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(test.status)
		})

		_, err := client.Wrap(context.Background(), "https://www.vidking.net/embed/movie/603", "603")
		if err == nil {
			t.Fatalf("Expected error for status %d", test.status)
		}
		var typed *errs.Error
		if !errors.As(err, &typed) {
			t.Fatalf("Expected typed error, got %T", err)
		}
		if typed.Type != test.want {
			t.Errorf("Status %d mapped to %s, want %s", test.status, typed.Type, test.want)
		}
		if typed.Code != test.status {
			t.Errorf("Expected code %d, got %d", test.status, typed.Code)
		}
	}
}

func TestWrapNetworkErrorIsTransient(t *testing.T) {
	client, server := newTestClient(t, okHandler)
	server.Close() // force a connection error

	_, err := client.Wrap(context.Background(), "https://www.vidking.net/embed/movie/603", "603")
	if err == nil {
		t.Fatal("Expected network error")
	}
	var typed *errs.Error
	if !errors.As(err, &typed) || typed.Type != errs.ErrorTypeWrapTransient {
		t.Errorf("Expected wrap_transient error, got %v", err)
	}
}

func TestWrapUsesHEAD(t *testing.T) {
	var method string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusOK)
	})

	if _, err := client.Wrap(context.Background(), "https://www.vidking.net/embed/movie/603", "603"); err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	if method != http.MethodHead {
		t.Errorf("Verification used %s, want HEAD", method)
	}
}
