package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/seb7887/uibus/httpx"
)

var ErrInvalidToken = errors.New("invalid id token")

// Identity is what a verified id token says about the user.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (Identity, error)
}

// StaticVerifier accepts a fixed set of tokens. Meant for development.
type StaticVerifier map[string]Identity

func (v StaticVerifier) Verify(_ context.Context, idToken string) (Identity, error) {
	id, ok := v[idToken]
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}

const DefaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// TokenInfoVerifier asks the provider's tokeninfo endpoint about the token
// and checks it was issued for audience.
type TokenInfoVerifier struct {
	client   *httpx.Client
	endpoint string
	audience string
}

func NewTokenInfoVerifier(client *httpx.Client, endpoint, audience string) *TokenInfoVerifier {
	if endpoint == "" {
		endpoint = DefaultTokenInfoURL
	}
	return &TokenInfoVerifier{client: client, endpoint: endpoint, audience: audience}
}

type tokenInfo struct {
	Audience string `json:"aud"`
	Subject  string `json:"sub"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

func (v *TokenInfoVerifier) Verify(ctx context.Context, idToken string) (Identity, error) {
	resp, err := v.client.Get(ctx, v.endpoint+"?"+url.Values{"id_token": {idToken}}.Encode(), httpx.Headers{"Accept": "application/json"})
	if err != nil {
		return Identity{}, fmt.Errorf("tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Identity{}, fmt.Errorf("%w: tokeninfo answered %d", ErrInvalidToken, resp.StatusCode)
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("tokeninfo: %w", err)
	}
	if v.audience != "" && info.Audience != v.audience {
		return Identity{}, fmt.Errorf("%w: audience %q", ErrInvalidToken, info.Audience)
	}
	return Identity{Subject: info.Subject, Email: info.Email, Name: info.Name}, nil
}
