package chat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync/atomic"
	"testing"
)

func TestHTTPFetcher(t *testing.T) {
	pngData := testPNG(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	})
	mux.HandleFunc("/text", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("not an image"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	f := NewHTTPFetcher(ts.Client(), 0)

	ref, err := f.Fetch(context.Background(), ts.URL+"/ok.png")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if ref.MIMEType != "image/png" || len(ref.Data) != len(pngData) || ref.URL != ts.URL+"/ok.png" {
		t.Errorf("ref = %s, %d bytes, url %q", ref.MIMEType, len(ref.Data), ref.URL)
	}

	if _, err := f.Fetch(context.Background(), ts.URL+"/text"); err == nil {
		t.Error("expected error for non-image content")
	}
	if _, err := f.Fetch(context.Background(), ts.URL+"/missing"); err == nil {
		t.Error("expected error for 404")
	}

	small := NewHTTPFetcher(ts.Client(), 10)
	if _, err := small.Fetch(context.Background(), ts.URL+"/ok.png"); err == nil {
		t.Error("expected error when the image exceeds the size cap")
	}
}

func TestHTTPFetcher_DefaultClientRefusesLoopback(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(testPNG(t))
	}))
	defer ts.Close()

	f := NewHTTPFetcher(nil, 0)
	_, err := f.Fetch(context.Background(), ts.URL+"/ok.png")
	if !errors.Is(err, ErrBlockedAddress) {
		t.Fatalf("err = %v, want ErrBlockedAddress", err)
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("server received %d requests, want 0", n)
	}
}

func TestIsPublicAddr(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1", false},
		{"::1", false},
		{"10.1.2.3", false},
		{"172.16.0.9", false},
		{"192.168.1.1", false},
		{"169.254.169.254", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"0.0.0.0", false},
		{"100.64.0.1", false},
		{"::ffff:127.0.0.1", false},
		{"8.8.8.8", true},
		{"93.184.216.34", true},
		{"2606:4700::1111", true},
	}
	for _, tt := range tests {
		if got := isPublicAddr(netip.MustParseAddr(tt.addr)); got != tt.want {
			t.Errorf("isPublicAddr(%s) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
