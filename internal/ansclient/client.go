// Package ansclient implements the authenticated fetch layer for the ANS
// platform using a Colly collector. Every outbound request passes through the
// shared rate limiter before dispatch.
package ansclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"ans-archiver/internal/config"
	"ans-archiver/internal/ratelimit"
)

// Config controls collector behavior.
type Config struct {
	BaseURL      string
	SessionToken string
	UserAgent    string
	Timeout      time.Duration
}

// Client issues authenticated GET/POST requests against the platform.
type Client struct {
	cfg           Config
	base          *url.URL
	baseCollector *colly.Collector
	limiter       *ratelimit.Limiter
	logger        *zap.Logger
}

// New builds a Client.
func New(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := colly.NewCollector(colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	return &Client{
		cfg:           cfg,
		base:          base,
		baseCollector: c,
		limiter:       limiter,
		logger:        logger,
	}, nil
}

// BaseURL returns the platform origin the client is bound to.
func (c *Client) BaseURL() *url.URL {
	return c.base
}

// Resolve joins a (possibly relative) href against the platform origin.
func (c *Client) Resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return c.base.ResolveReference(ref).String()
}

// GetText fetches a URL and returns the response body as a string.
func (c *Client) GetText(ctx context.Context, rawURL string) (string, error) {
	body, err := c.GetBytes(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetBytes fetches a URL and returns the raw response body.
func (c *Client) GetBytes(ctx context.Context, rawURL string) ([]byte, error) {
	return c.do(ctx, rawURL, func(collector *colly.Collector) error {
		return collector.Visit(rawURL)
	})
}

// GetJSON fetches a URL and decodes the JSON response body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	body, err := c.GetBytes(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode json from %s: %w", rawURL, err)
	}
	return nil
}

// PostForm submits a form-encoded POST request and returns the response body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form map[string]string) ([]byte, error) {
	return c.do(ctx, rawURL, func(collector *colly.Collector) error {
		return collector.Post(rawURL, form)
	})
}

// do clones the base collector, wires response capture hooks and dispatches
// the request once the rate limiter grants a slot.
func (c *Client) do(ctx context.Context, rawURL string, dispatch func(*colly.Collector) error) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if err := c.limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}

	var (
		body     []byte
		fetchErr error
	)
	collector := c.baseCollector.Clone()
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Cookie", config.SessionCookieName+"="+c.cfg.SessionToken)
	})
	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = fmt.Errorf("fetch %s: status %d: %w", rawURL, status, err)
	})

	start := time.Now()
	if err := dispatch(collector); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	collector.Wait()
	if fetchErr != nil {
		return nil, fetchErr
	}
	c.logger.Debug("fetched",
		zap.String("url", rawURL),
		zap.Int("bytes", len(body)),
		zap.Duration("took", time.Since(start)))
	return body, nil
}
