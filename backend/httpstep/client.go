// Package httpstep runs HTTP calls as polled steps against a managed, reapable client.
package httpstep

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type ClientOptions struct {
	Timeout   time.Duration
	Transport http.RoundTripper
	// RequestRate limits outgoing requests, rate.Inf disables the limiter.
	RequestRate rate.Limit
	Burst       int
}

type ClientOptionPreparer func(*ClientOptions) *ClientOptions

func WithRequestTimeout(timeout time.Duration) ClientOptionPreparer {
	return func(options *ClientOptions) *ClientOptions {
		options.Timeout = timeout
		return options
	}
}

func WithTransport(transport http.RoundTripper) ClientOptionPreparer {
	return func(options *ClientOptions) *ClientOptions {
		options.Transport = transport
		return options
	}
}

// WithRequestRate caps the requests per second sent by the client, polling loops included.
func WithRequestRate(limit rate.Limit, burst int) ClientOptionPreparer {
	return func(options *ClientOptions) *ClientOptions {
		options.RequestRate = limit
		options.Burst = burst
		return options
	}
}

// Client is an http.Client with a cookie jar that can be reset between scenarios.
type Client struct {
	mu      sync.RWMutex
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(optionDecorators ...ClientOptionPreparer) (*Client, error) {
	options := &ClientOptions{RequestRate: rate.Inf}
	for _, decorator := range optionDecorators {
		options = decorator(options)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	burst := options.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		http: &http.Client{
			Timeout:   options.Timeout,
			Transport: options.Transport,
			Jar:       jar,
		},
		limiter: rate.NewLimiter(options.RequestRate, burst),
	}, nil
}

// Do sends req once the rate limiter allows it.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	client := c.http
	c.mu.RUnlock()
	return client.Do(req.WithContext(ctx))
}

func (c *Client) Cookies(u *url.URL) []*http.Cookie {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.http.Jar.Cookies(u)
}

// Refresh drops every cookie of the client.
func (c *Client) Refresh() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	refreshed := *c.http
	refreshed.Jar = jar
	c.http = &refreshed
	return nil
}

func (c *Client) Stop() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.http.CloseIdleConnections()
	return nil
}
