/*
Copyright 2025 QuickApiMapper Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package mapper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/JerrettDavis/QuickApiMapper-sub001/config"
	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

// TokenCache shares downstream bearer tokens across concurrent mapping calls,
// one entry per token endpoint and client. Validity is re-checked after the
// write lock is acquired, so concurrent callers behind an expired token
// trigger exactly one fetch and the rest reuse it. Expiry is an explicit
// timestamp with the configured refresh skew already subtracted.
type TokenCache struct {
	mu      sync.RWMutex
	tokens  map[string]*cachedToken
	skew    time.Duration
	timeout time.Duration
}

type cachedToken struct {
	value     string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// NewTokenCache builds a token cache tuned by the Token section of the
// configuration.
func NewTokenCache(conf *config.Configuration) *TokenCache {
	return &TokenCache{
		tokens:  make(map[string]*cachedToken),
		skew:    time.Duration(conf.Token.RefreshSkewSec) * time.Second,
		timeout: time.Duration(conf.Token.TimeoutSec) * time.Second,
	}
}

// Token returns a valid bearer token for the auth config, fetching a new one
// when the cached token is missing or inside the refresh skew.
func (tc *TokenCache) Token(ctx context.Context, auth *model.AuthConfig) (string, error) {
	key := auth.TokenURL + "|" + auth.ClientID

	tc.mu.RLock()
	cached, ok := tc.tokens[key]
	tc.mu.RUnlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.value, nil
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()
	// Another caller may have refreshed while we waited for the lock.
	if cached, ok := tc.tokens[key]; ok && time.Now().Before(cached.expiresAt) {
		return cached.value, nil
	}

	value, expiresAt, err := tc.fetch(ctx, auth)
	if err != nil {
		return "", err
	}
	tc.tokens[key] = &cachedToken{value: value, expiresAt: expiresAt.Add(-tc.skew)}
	logrus.WithFields(logrus.Fields{
		"token_url":  auth.TokenURL,
		"expires_at": expiresAt.Format(time.RFC3339),
	}).Info("fetched downstream auth token")
	return value, nil
}

// Invalidate drops the cached token for an auth config so the next caller
// fetches a fresh one. Delivery workers call this after a 401 from the
// destination.
func (tc *TokenCache) Invalidate(auth *model.AuthConfig) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	delete(tc.tokens, auth.TokenURL+"|"+auth.ClientID)
}

// fetch performs the client-credentials round trip. Server-side errors are
// retried with exponential backoff; 4xx responses are permanent.
func (tc *TokenCache) fetch(ctx context.Context, auth *model.AuthConfig) (string, time.Time, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", auth.ClientID)
	form.Set("client_secret", auth.ClientSecret)
	if auth.Scope != "" {
		form.Set("scope", auth.Scope)
	}
	encoded := form.Encode()

	var tokenResp tokenResponse
	operation := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, tc.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, auth.TokenURL, strings.NewReader(encoded))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("token endpoint %s returned %d", auth.TokenURL, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("token endpoint %s returned %d", auth.TokenURL, resp.StatusCode))
		}
		return json.NewDecoder(resp.Body).Decode(&tokenResp)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return "", time.Time{}, err
	}
	if tokenResp.AccessToken == "" {
		return "", time.Time{}, errors.New("token endpoint returned no access_token")
	}
	return tokenResp.AccessToken, tokenExpiry(tokenResp), nil
}

// tokenExpiry derives the token deadline: expires_in when the endpoint sends
// one, else the JWT exp claim read without signature verification, else a
// conservative one minute.
func tokenExpiry(resp tokenResponse) time.Time {
	if resp.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(resp.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return time.Now().Add(time.Minute)
}
