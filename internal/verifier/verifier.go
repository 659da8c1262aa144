// Package verifier calls an external bot-challenge service (Turnstile-style
// siteverify). The call carries its own short timeout so it stays well under
// the request's response budget; a timeout is reported as an error and the
// caller treats it as verifier-absent, never as a block.
package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Result is the external verifier's answer for one token.
type Result struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname,omitempty"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

// Verifier checks a challenge token. Implementations must honor ctx.
type Verifier interface {
	// Enabled reports whether a secret is configured; a disabled verifier
	// contributes a neutral signal.
	Enabled() bool
	Verify(ctx context.Context, token, remoteIP string) (Result, error)
}

// HTTP posts form-encoded tokens to a siteverify endpoint.
type HTTP struct {
	url    string
	secret string
	client *http.Client
}

func NewHTTP(siteverifyURL, secret string, timeout time.Duration) *HTTP {
	return &HTTP{
		url:    siteverifyURL,
		secret: secret,
		client: &http.Client{Timeout: timeout},
	}
}

func (v *HTTP) Enabled() bool { return v.secret != "" }

func (v *HTTP) Verify(ctx context.Context, token, remoteIP string) (Result, error) {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("verify call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("verify call: unexpected status %d", resp.StatusCode)
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode verify response: %w", err)
	}
	return out, nil
}
