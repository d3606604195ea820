package introspection

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aci-systems/security-core/internal/types"
)

// HTTPClient implements types.IntrospectionEndpoint against an RFC 7662
// introspection endpoint.
type HTTPClient struct {
	Endpoint     string
	ClientID     string
	ClientSecret string // sent with ClientID as HTTP basic auth whenever ClientID is set
	Timeout      time.Duration
	HTTPClient   *http.Client
}

func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = types.DefaultIntrospectionTimeout
	}
	return &HTTPClient{
		Endpoint:   endpoint,
		Timeout:    timeout,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type rfc7662Response struct {
	Active    bool     `json:"active"`
	Scope     string   `json:"scope"`
	ClientID  string   `json:"client_id"`
	Username  string   `json:"username"`
	TokenType string   `json:"token_type"`
	Exp       int64    `json:"exp"`
	Iat       int64    `json:"iat"`
	Sub       string   `json:"sub"`
	Aud       audience `json:"aud"`
	Iss       string   `json:"iss"`
	JTI       string   `json:"jti"`
	Cnf       struct {
		JKT string `json:"jkt"`
	} `json:"cnf"`
}

// audience unmarshals the RFC 7662 "aud" claim, which may be a single
// string or an array of strings per RFC 7519 §4.1.3.
type audience []string

func (a *audience) UnmarshalJSON(data []byte) error {
	var multi []string
	if err := json.Unmarshal(data, &multi); err == nil {
		*a = multi
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	if single != "" {
		*a = []string{single}
	}
	return nil
}

// Introspect performs the RFC 7662 POST described in spec.md §4.7.
func (c *HTTPClient) Introspect(ctx context.Context, token string) (types.IntrospectionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return types.IntrospectionResult{}, fmt.Errorf("introspection: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.ClientID != "" {
		req.SetBasicAuth(c.ClientID, c.ClientSecret)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return types.IntrospectionResult{}, fmt.Errorf("introspection: request timed out: %w", ctx.Err())
		}
		return types.IntrospectionResult{}, fmt.Errorf("introspection: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.IntrospectionResult{}, fmt.Errorf("introspection: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return types.IntrospectionResult{}, fmt.Errorf("introspection: endpoint returned status %s: %s", strconv.Itoa(resp.StatusCode), string(body))
	}

	var parsed rfc7662Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return types.IntrospectionResult{}, fmt.Errorf("introspection: decode response: %w", err)
	}

	return types.IntrospectionResult{
		Active:    parsed.Active,
		Scope:     parsed.Scope,
		ClientID:  parsed.ClientID,
		Username:  parsed.Username,
		TokenType: parsed.TokenType,
		Exp:       parsed.Exp,
		Iat:       parsed.Iat,
		Sub:       parsed.Sub,
		Aud:       parsed.Aud,
		Iss:       parsed.Iss,
		JTI:       parsed.JTI,
		CnfJKT:    parsed.Cnf.JKT,
	}, nil
}
