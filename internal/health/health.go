// Package health decides whether the worker is accepting connections.
//
// The worker has no push-based readiness signal, so readiness is observed by
// polling: a bare TCP accept on 127.0.0.1:<port> by default, or a 2xx from an
// HTTP path when configured.
package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Check types.
const (
	TypeTCP  = "tcp"
	TypeHTTP = "http"
)

// Defaults for the polling loop.
const (
	DefaultConnectTimeout = 500 * time.Millisecond
	DefaultInterval       = 200 * time.Millisecond
)

// Config holds readiness check configuration.
type Config struct {
	Type           string        // "tcp" | "http"
	Path           string        // http only
	Host           string        // defaults to 127.0.0.1
	ConnectTimeout time.Duration // max time per attempt
	Interval       time.Duration // sleep between failed attempts
}

func (c Config) withDefaults() Config {
	if c.Type == "" {
		c.Type = TypeTCP
	}
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	return c
}

// SingleCheck runs one readiness check against port and returns nil if the
// worker answered.
func SingleCheck(ctx context.Context, cfg Config, port int) error {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	switch cfg.Type {
	case TypeTCP:
		return checkTCP(ctx, cfg, port)
	case TypeHTTP:
		return checkHTTP(ctx, cfg, port)
	default:
		return fmt.Errorf("unknown readiness check type: %s", cfg.Type)
	}
}

func checkTCP(ctx context.Context, cfg Config, port int) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("tcp connect failed: %w", err)
	}
	conn.Close()
	return nil
}

func checkHTTP(ctx context.Context, cfg Config, port int) error {
	url := "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(port)) + cfg.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	client := &http.Client{Timeout: cfg.ConnectTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unhealthy status: %d", resp.StatusCode)
	}
	return nil
}
