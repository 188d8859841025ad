// Package fetch retrieves web page content for research candidates with an
// SSRF guard, manual redirect handling and a response size cap.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/domain"
	"github.com/kailas-cloud/ragline/internal/extract"
	"github.com/kailas-cloud/ragline/internal/metrics"
)

const (
	defaultMaxBodyBytes = 2 << 20 // 2 MiB
	maxRedirects        = 5
)

// Fetcher retrieves single pages. All failures are typed with the domain
// fetch sentinels so the research orchestrator can classify them per
// candidate without failing the query.
type Fetcher struct {
	httpClient   *http.Client
	maxBodyBytes int64
	userAgent    string
	allowPrivate bool
	logger       *zap.Logger
}

// Options configures a Fetcher.
type Options struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
	// AllowPrivate disables the public-address guard. Tests only.
	AllowPrivate bool
	Logger       *zap.Logger
}

// New creates a Fetcher. Redirects are followed manually so every hop goes
// through the URL guard.
func New(opts *Options) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "ragline/1.0"
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		maxBodyBytes: maxBody,
		userAgent:    userAgent,
		allowPrivate: opts.AllowPrivate,
		logger:       opts.Logger,
	}
}

// Fetch retrieves one URL and extracts readable text from it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (domain.Page, error) {
	current := rawURL

	for hop := 0; ; hop++ {
		if hop > maxRedirects {
			metrics.WebFetchTotal.WithLabelValues("error").Inc()
			return domain.Page{}, fmt.Errorf("%s: too many redirects: %w", rawURL, domain.ErrFetchError)
		}

		if err := f.guardURL(current); err != nil {
			metrics.WebFetchTotal.WithLabelValues("blocked").Inc()
			return domain.Page{}, err
		}

		page, redirect, err := f.fetchOnce(ctx, current)
		if err != nil {
			return domain.Page{}, err
		}
		if redirect != "" {
			if f.logger != nil {
				f.logger.Debug("following redirect",
					zap.String("from", current),
					zap.String("to", redirect))
			}
			current = redirect
			continue
		}

		metrics.WebFetchTotal.WithLabelValues("success").Inc()
		return page, nil
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (domain.Page, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.Page{}, "", fmt.Errorf("%s: %v: %w", rawURL, err, domain.ErrUnreachable)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.Page{}, "", f.classifyTransportError(rawURL, err)
	}
	defer resp.Body.Close()

	// Manual redirect handling keeps every hop inside the URL guard.
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		if loc == "" {
			metrics.WebFetchTotal.WithLabelValues("error").Inc()
			return domain.Page{}, "", fmt.Errorf("%s: redirect without location: %w", rawURL, domain.ErrFetchError)
		}
		next, err := resp.Request.URL.Parse(loc)
		if err != nil {
			metrics.WebFetchTotal.WithLabelValues("error").Inc()
			return domain.Page{}, "", fmt.Errorf("%s: bad redirect target: %w", rawURL, domain.ErrFetchError)
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return domain.Page{}, next.String(), nil
	}

	if resp.StatusCode != http.StatusOK {
		metrics.WebFetchTotal.WithLabelValues("error").Inc()
		return domain.Page{}, "", fmt.Errorf("%s: status %d: %w", rawURL, resp.StatusCode, domain.ErrFetchError)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return domain.Page{}, "", f.classifyTransportError(rawURL, err)
	}

	page := domain.Page{URL: rawURL}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "html") || looksLikeHTML(body) {
		page.Title = extract.HTMLTitle(string(body))
		res, err := extract.New().Extract(ctx, body, domain.FormatHTML, "")
		if err != nil {
			metrics.WebFetchTotal.WithLabelValues("error").Inc()
			return domain.Page{}, "", fmt.Errorf("%s: %v: %w", rawURL, err, domain.ErrFetchError)
		}
		page.Text = res.Text
		return page, "", nil
	}

	res, err := extract.New().Extract(ctx, body, domain.FormatText, "")
	if err != nil {
		metrics.WebFetchTotal.WithLabelValues("error").Inc()
		return domain.Page{}, "", fmt.Errorf("%s: %v: %w", rawURL, err, domain.ErrFetchError)
	}
	page.Text = res.Text
	return page, "", nil
}

// guardURL enforces the SSRF policy: http/https only, no credentials in the
// URL, and the host must resolve to public addresses.
func (f *Fetcher) guardURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s: invalid url: %w", rawURL, domain.ErrUnreachable)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: scheme %q not allowed: %w", rawURL, u.Scheme, domain.ErrUnreachable)
	}
	if u.User != nil {
		return fmt.Errorf("%s: credentials in url not allowed: %w", rawURL, domain.ErrUnreachable)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%s: missing host: %w", rawURL, domain.ErrUnreachable)
	}

	if f.allowPrivate {
		return nil
	}

	ips, err := net.LookupIP(u.Hostname())
	if err != nil {
		return fmt.Errorf("%s: dns lookup: %w", rawURL, domain.ErrUnreachable)
	}
	for _, ip := range ips {
		if !isPublicIP(ip) {
			return fmt.Errorf("%s: resolves to non-public address %s: %w", rawURL, ip, domain.ErrUnreachable)
		}
	}

	return nil
}

func isPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified() || ip.IsMulticast())
}

func (f *Fetcher) classifyTransportError(rawURL string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		metrics.WebFetchTotal.WithLabelValues("timeout").Inc()
		return fmt.Errorf("%s: %v: %w", rawURL, err, domain.ErrFetchTimeout)
	case isConnectionError(err):
		metrics.WebFetchTotal.WithLabelValues("unreachable").Inc()
		return fmt.Errorf("%s: %v: %w", rawURL, err, domain.ErrUnreachable)
	default:
		metrics.WebFetchTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%s: %v: %w", rawURL, err, domain.ErrFetchError)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// looksLikeHTML sniffs for markup when the server sent no usable content type.
func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}
