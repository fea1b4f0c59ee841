package storage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"
)

const (
	fetchAttempts = 3
	// MaxFetchSize bounds the bytes read from a remote image
	MaxFetchSize = 20 * 1024 * 1024
)

type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (image.Image, error)
}

// ErrNonPublicAddress is returned when a fetch would connect to a loopback,
// private, link-local or otherwise non-routable address.
var ErrNonPublicAddress = errors.New("refusing to fetch from non-public address")

// carrier-grade NAT, not covered by netip.Addr.IsPrivate
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// HTTPImageFetcher downloads images over http(s) with retries on transient failures
type HTTPImageFetcher struct {
	client       *http.Client
	backoff      time.Duration
	maxPixels    int64
	allowPrivate bool
}

// HTTPOption configures an HTTPImageFetcher
type HTTPOption func(*HTTPImageFetcher)

// WithMaxPixels sets the decoded image size limit
func WithMaxPixels(n int64) HTTPOption {
	return func(h *HTTPImageFetcher) { h.maxPixels = n }
}

// WithPrivateNetworks allows fetching from loopback and private addresses
func WithPrivateNetworks(allow bool) HTTPOption {
	return func(h *HTTPImageFetcher) { h.allowPrivate = allow }
}

// NewHTTPImageFetcher creates an HTTP image fetcher with the given overall
// timeout. Connections to non-public addresses are refused unless
// WithPrivateNetworks(true) is given; the check runs on every dial, so
// redirects are covered too.
func NewHTTPImageFetcher(timeout time.Duration, opts ...HTTPOption) *HTTPImageFetcher {
	h := &HTTPImageFetcher{backoff: time.Second}
	for _, opt := range opts {
		opt(h)
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if !h.allowPrivate {
		dialer.Control = publicAddressOnly
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	h.client = &http.Client{
		Transport: transport,
		Timeout:   timeout,

		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("too many redirects (limit: 3)")
			}
			return nil
		},
	}
	return h
}

// publicAddressOnly is a net.Dialer Control hook; address is the resolved ip:port
func publicAddressOnly(network, address string, _ syscall.RawConn) error {
	addrPort, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNonPublicAddress, address)
	}
	if !IsPublicAddr(addrPort.Addr()) {
		return fmt.Errorf("%w: %s", ErrNonPublicAddress, addrPort.Addr())
	}
	return nil
}

// IsPublicAddr reports whether addr is a globally routable unicast address
func IsPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(),
		addr.IsUnspecified(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast(),
		sharedAddressSpace.Contains(addr):
		return false
	}
	return true
}

func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (image.Image, error) {
	var lastErr error

	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("image fetch cancelled: %w", ctx.Err())
			case <-time.After(time.Duration(attempt) * h.backoff):
			}
		}

		raw, retryable, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			img, _, err := DecodeImage(raw, h.maxPixels)
			return img, err
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", fetchAttempts, lastErr)
}

// fetchOnce performs a single GET; 4xx responses are not retryable
func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "IngrediScan/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		retryable := ctx.Err() == nil && !errors.Is(err, ErrNonPublicAddress)
		return nil, retryable, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchSize+1))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read image body: %w", err)
	}
	if len(raw) > MaxFetchSize {
		return nil, false, fmt.Errorf("image exceeds %d bytes", MaxFetchSize)
	}
	return raw, false, nil
}
