package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes caps how much of a carrier response is read.
const maxResponseBytes = 1 << 20

// BasicAuth holds HTTP basic-auth credentials.
type BasicAuth struct {
	Username string
	Password string
}

// FormPoster submits a form-encoded POST and returns the raw response.
// Implementations must honor ctx cancellation and the per-call timeout.
type FormPoster interface {
	PostForm(ctx context.Context, endpoint string, fields url.Values, auth BasicAuth, timeout time.Duration) (status int, body []byte, err error)
}

// HTTPFormPoster is a FormPoster backed by a shared *http.Client so that
// connections are pooled across sends.
type HTTPFormPoster struct {
	client *http.Client
}

// NewHTTPFormPoster wraps client. A nil client uses a fresh *http.Client with
// no client-level timeout; each call is bounded by its own timeout instead.
func NewHTTPFormPoster(client *http.Client) *HTTPFormPoster {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFormPoster{client: client}
}

func (p *HTTPFormPoster) PostForm(ctx context.Context, endpoint string, fields url.Values, auth BasicAuth, timeout time.Duration) (int, []byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(fields.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(auth.Username, auth.Password)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
