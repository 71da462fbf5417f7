package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const siteverifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// ErrVerificationFailed is returned when the challenge provider rejects the
// token. Transport and decode errors are returned as-is; every error path
// means the submission must be refused (fail closed).
var ErrVerificationFailed = errors.New("captcha verification failed")

// Verifier checks a client challenge token.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// Turnstile verifies tokens against Cloudflare's siteverify endpoint.
type Turnstile struct {
	secret string
	client *http.Client
}

func NewTurnstile(secret string) *Turnstile {
	return &Turnstile{
		secret: secret,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *Turnstile) Verify(ctx context.Context, token, remoteIP string) error {
	if strings.TrimSpace(token) == "" {
		return ErrVerificationFailed
	}

	form := url.Values{}
	form.Set("secret", t.secret)
	form.Set("response", token)
	if remoteIP != "" && remoteIP != "unknown" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, siteverifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("turnstile request: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("turnstile response: %w", err)
	}
	if !body.Success {
		return fmt.Errorf("%w: %s", ErrVerificationFailed, strings.Join(body.ErrorCodes, ","))
	}
	return nil
}
