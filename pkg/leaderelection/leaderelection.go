// Package leaderelection asks the elector sidecar which replica is leader.
package leaderelection

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
)

const defaultRetries = 3

type Elector struct {
	electorPath string
	client      *http.Client
	hostname    func() (string, error)
	retries     int
	backoff     time.Duration
}

// IsLeader reports whether this host is the elected leader. Without an
// elector path every host is leader, as in local development.
func (e *Elector) IsLeader(ctx context.Context) (bool, error) {
	if e.electorPath == "" {
		return true, nil
	}

	hostname, err := e.hostname()
	if err != nil {
		return false, fmt.Errorf("getting hostname: %w", err)
	}

	leader, err := e.getLeader(ctx)
	if err != nil {
		return false, err
	}

	return hostname == leader, nil
}

func (e *Elector) getLeader(ctx context.Context) (string, error) {
	resp, err := e.requestWithRetry(ctx)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading elector response: %w", err)
	}

	var electorResponse struct {
		Name string `json:"name"`
	}

	if err := json.Unmarshal(bodyBytes, &electorResponse); err != nil {
		return "", fmt.Errorf("decoding elector response: %w", err)
	}

	return electorResponse.Name, nil
}

func (e *Elector) requestWithRetry(ctx context.Context) (*http.Response, error) {
	for i := 1; i <= e.retries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+e.electorPath, nil)
		if err != nil {
			return nil, fmt.Errorf("creating elector request: %w", err)
		}

		resp, err := e.client.Do(req)
		if err == nil {
			return resp, nil
		}

		select {
		case <-time.After(e.backoff * time.Duration(i)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("no response from elector container after %v retries", e.retries)
}

type Option func(*Elector)

func WithHostname(fn func() (string, error)) Option {
	return func(e *Elector) {
		e.hostname = fn
	}
}

func WithBackoff(d time.Duration) Option {
	return func(e *Elector) {
		e.backoff = d
	}
}

func New(electorPath string, client *http.Client, opts ...Option) *Elector {
	if client == nil {
		client = http.DefaultClient
	}

	e := &Elector{
		electorPath: electorPath,
		client:      client,
		hostname:    os.Hostname,
		retries:     defaultRetries,
		backoff:     time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}
