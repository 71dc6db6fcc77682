package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"syscall"
	"time"

	"github.com/fpang/ai-image-editor/internal/imageref"
	"github.com/rs/zerolog/log"
)

// DefaultMaxFetchBytes caps the size of a fetched remote result.
const DefaultMaxFetchBytes = 50 << 20

// ErrBlockedAddress is returned when a result URL resolves to a loopback,
// private or link-local address.
var ErrBlockedAddress = errors.New("result URL resolves to a non-public address")

// carrier-grade NAT range, not covered by netip.Addr.IsPrivate.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// HTTPFetcher downloads remote result URLs so the session always holds bytes.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPFetcher creates a fetcher. A nil client uses a client without a
// timeout that only dials public addresses; callers bound the call through
// the context.
func NewHTTPFetcher(client *http.Client, maxBytes int64) *HTTPFetcher {
	if client == nil {
		client = publicOnlyClient()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFetchBytes
	}
	return &HTTPFetcher{client: client, maxBytes: maxBytes}
}

// Fetch downloads rawURL and returns a reference carrying both the bytes and
// the original URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (imageref.Ref, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return imageref.Ref{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return imageref.Ref{}, fmt.Errorf("failed to fetch result image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return imageref.Ref{}, fmt.Errorf("result image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return imageref.Ref{}, fmt.Errorf("failed to read result image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return imageref.Ref{}, fmt.Errorf("result image exceeds %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return imageref.Ref{}, fmt.Errorf("result image is empty")
	}

	mimeType := imageref.SniffMIME(data)
	if ct, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && strings.HasPrefix(ct, "image/") {
		mimeType = ct
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return imageref.Ref{}, fmt.Errorf("result is not an image (%s)", mimeType)
	}

	log.Debug().
		Str("url", truncateString(rawURL, 120)).
		Int("bytes", len(data)).
		Str("mime", mimeType).
		Dur("duration", time.Since(start)).
		Msg("Fetched remote result image")

	return imageref.Ref{Data: data, MIMEType: mimeType, URL: rawURL}, nil
}

// publicOnlyClient checks every dialed address after DNS resolution, so a
// public hostname that resolves to an internal address is refused too.
func publicOnlyClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   refuseNonPublic,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Transport: transport}
}

func refuseNonPublic(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !isPublicAddr(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
	}
	return nil
}

func isPublicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(), ip.IsMulticast():
		return false
	case sharedAddressSpace.Contains(ip):
		return false
	}
	return true
}
