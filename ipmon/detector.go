package ipmon

import (
	"context"
	"io"
	"net/http"
	"net/netip"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DefaultFetchTimeout is the default time allowed for a single fetch.
var DefaultFetchTimeout = 30 * time.Second

// ipv4Pattern matches dotted quads inside a longer field.
var ipv4Pattern = regexp.MustCompile(`\d{1,3}(?:\.\d{1,3}){3}`)

// maxBodySize is the maximum number of bytes read from the address page.
const maxBodySize = 64 << 10

// Fetcher fetches the current public address.
type Fetcher interface {
	Fetch(ctx context.Context) (netip.Addr, error)
}

// FetcherFunc is a function that implements Fetcher.
type FetcherFunc func(ctx context.Context) (netip.Addr, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context) (netip.Addr, error) { return f(ctx) }

// HTTPFetcher fetches a page over HTTP and uses the first IP address in its
// body. The page can be anything from a plain-text "what is my IP" endpoint to
// an HTML page with the address somewhere inside.
type HTTPFetcher struct {
	Client *http.Client

	mutex sync.RWMutex
	url   string
}

// NewHTTPFetcher creates a new HTTPFetcher for the given URL.
func NewHTTPFetcher(url string) *HTTPFetcher {
	return &HTTPFetcher{
		Client: http.DefaultClient,
		url:    url,
	}
}

// URL returns the URL currently fetched.
func (f *HTTPFetcher) URL() string {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	return f.url
}

// SetURL changes the URL used starting from the next fetch.
func (f *HTTPFetcher) SetURL(url string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.url = url
}

// Fetch gets the page and parses the first address out of it.
func (f *HTTPFetcher) Fetch(ctx context.Context) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(), nil)
	if err != nil {
		return netip.Addr{}, errors.Wrap(err, "failed to create request")
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return netip.Addr{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return netip.Addr{}, errors.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return netip.Addr{}, errors.Wrap(err, "failed to read body")
	}

	return ParseAddress(string(body))
}

// ParseAddress returns the first IPv4 or IPv6 address found in the given text.
// IPv4-mapped IPv6 addresses are unmapped, so the same host always compares
// equal no matter how the page wrote it.
func ParseAddress(text string) (netip.Addr, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !isAddressRune(r)
	})

	for _, field := range fields {
		addr, err := netip.ParseAddr(field)
		if err != nil {
			// Punctuation right after the address, like "1.2.3.4." at the end
			// of a sentence.
			addr, err = netip.ParseAddr(strings.Trim(field, ".:"))
		}
		if err != nil {
			// An IPv4 address glued to a word made of hex letters, like
			// "Code:1.2.3.4".
			if candidate := ipv4Pattern.FindString(field); candidate != "" {
				addr, err = netip.ParseAddr(candidate)
			}
		}
		if err != nil || addr.IsUnspecified() {
			continue
		}

		return addr.Unmap(), nil
	}

	return netip.Addr{}, errors.New("no address found")
}

func isAddressRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		return true
	case r == '.', r == ':':
		return true
	default:
		return false
	}
}

// Detector fetches the current address and decides whether it changed.
type Detector struct {
	Fetcher Fetcher

	mutex   sync.RWMutex
	timeout time.Duration
}

// NewDetector creates a new detector with the default timeout.
func NewDetector(f Fetcher) *Detector {
	return &Detector{
		Fetcher: f,
		timeout: DefaultFetchTimeout,
	}
}

// Timeout returns the time allowed for a single fetch.
func (d *Detector) Timeout() time.Duration {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return d.timeout
}

// SetTimeout changes the time allowed for a single fetch. Zero or less means
// no timeout.
func (d *Detector) SetTimeout(timeout time.Duration) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.timeout = timeout
}

// Fetch fetches the current address. Any failure is returned as a
// *FetchError. Fetch never retries.
func (d *Detector) Fetch(ctx context.Context) (netip.Addr, error) {
	if timeout := d.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	addr, err := d.Fetcher.Fetch(ctx)
	if err == nil && !addr.IsValid() {
		err = errors.New("fetcher returned no address")
	}
	if err != nil {
		return netip.Addr{}, &FetchError{Source: d.source(), Err: err}
	}

	return addr.Unmap(), nil
}

func (d *Detector) source() string {
	if f, ok := d.Fetcher.(*HTTPFetcher); ok {
		return f.URL()
	}
	return "fetcher"
}

// HasChanged returns true if current is a different address from previous.
func (d *Detector) HasChanged(previous, current netip.Addr) bool {
	return previous != current
}
