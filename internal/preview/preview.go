package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/npezzotti/go-blogchat/internal/types"
	"golang.org/x/sync/singleflight"
)

const (
	userAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	maxBodyBytes = 1 << 20
)

var (
	ErrInvalidURL         = errors.New("invalid url")
	ErrUnsupportedContent = errors.New("unsupported content")

	urlPattern    = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s)]+`)
	schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
)

// FirstURL returns the first http(s) or www. substring in text.
func FirstURL(text string) (string, bool) {
	m := urlPattern.FindString(text)
	return m, m != ""
}

// NormalizeURL prepends https:// to scheme-less input and requires a host.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !schemePattern.MatchString(raw) {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	return raw, nil
}

// Cache stores previously extracted previews.
type Cache interface {
	Get(ctx context.Context, url string) (*types.Preview, bool, error)
	Set(ctx context.Context, url string, p *types.Preview) error
}

type Service struct {
	log     *log.Logger
	client  *http.Client
	cache   Cache
	timeout time.Duration
	group   singleflight.Group
}

// NewService builds a preview service. cache may be nil.
func NewService(logger *log.Logger, timeout time.Duration, cache Cache) *Service {
	return &Service{
		log:     logger,
		client:  &http.Client{},
		cache:   cache,
		timeout: timeout,
	}
}

// ForMessage returns a preview for the first URL in text, or nil. It never
// blocks longer than the service timeout.
func (s *Service) ForMessage(ctx context.Context, text string) *types.Preview {
	raw, ok := FirstURL(text)
	if !ok {
		return nil
	}

	p, err := s.Lookup(ctx, raw)
	if err != nil {
		s.log.Printf("preview %q: %v", raw, err)
		return nil
	}
	if !p.HasContent() {
		return nil
	}

	return p
}

// Lookup normalizes raw, consults the cache and fetches on a miss. Concurrent
// lookups of the same URL share one fetch.
func (s *Service) Lookup(ctx context.Context, raw string) (*types.Preview, error) {
	norm, err := NormalizeURL(raw)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		p, ok, err := s.cache.Get(ctx, norm)
		if err != nil {
			s.log.Printf("preview cache get: %v", err)
		} else if ok {
			return p, nil
		}
	}

	ch := s.group.DoChan(norm, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		p, err := s.fetch(fetchCtx, norm)
		if err != nil {
			return nil, err
		}

		if s.cache != nil && p.HasContent() {
			if err := s.cache.Set(fetchCtx, norm, p); err != nil {
				s.log.Printf("preview cache set: %v", err)
			}
		}
		return p, nil
	})

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*types.Preview), nil
	case <-timer.C:
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) fetch(ctx context.Context, target string) (*types.Preview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}

	p, err := extract(io.LimitReader(resp.Body, maxBodyBytes), resp.Request.URL)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	p.Url = target
	p.ContentType = contentType

	return p, nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return true
	}
	return false
}
