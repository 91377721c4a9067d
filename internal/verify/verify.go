// Package verify checks human-verification tokens against a siteverify endpoint.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SiteVerifier calls a Turnstile/reCAPTCHA compatible siteverify endpoint.
type SiteVerifier struct {
	verifyURL  string
	secret     string
	httpClient *http.Client
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func NewSiteVerifier(verifyURL, secret string, timeout time.Duration) *SiteVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SiteVerifier{
		verifyURL:  verifyURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Verify reports whether the provider accepted token. An empty token is refused without
// a round trip; transport failures and non-2xx replies are returned as errors.
func (v *SiteVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("siteverify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("siteverify: http %d", resp.StatusCode)
	}

	var out siteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("siteverify: decode: %w", err)
	}
	return out.Success, nil
}

// Noop accepts every token. Used when verification is disabled.
type Noop struct{}

func (Noop) Verify(context.Context, string, string) (bool, error) { return true, nil }
