package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"
)

var ErrKeyNotFound = errors.New("jwks key not found")

// minRefreshGap bounds how often an unknown kid can trigger a fetch.
const minRefreshGap = 10 * time.Second

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// JWKSClient caches the RSA signing keys published by an identity provider
// (for Keycloak: /realms/{realm}/protocol/openid-connect/certs). Keys are
// refetched after ttl, or early when a token names a kid the cache lacks.
type JWKSClient struct {
	url    string
	client *http.Client
	ttl    time.Duration

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time

	refreshMu sync.Mutex
}

func NewJWKSClient(url string, ttl time.Duration, client *http.Client) *JWKSClient {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &JWKSClient{url: url, ttl: ttl, client: client}
}

func (c *JWKSClient) Get(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	key, fresh := c.lookup(keyID)
	if key != nil && fresh {
		return key, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	if k, fresh := c.lookup(keyID); k != nil && fresh {
		return k, nil
	}
	c.mu.RLock()
	recent := time.Since(c.fetchedAt) < minRefreshGap
	c.mu.RUnlock()
	if recent && key == nil {
		return nil, ErrKeyNotFound
	}

	if err := c.refresh(ctx); err != nil {
		// A stale key is better than rejecting every token while the IdP is down.
		if key != nil {
			return key, nil
		}
		return nil, err
	}
	if k, _ := c.lookup(keyID); k != nil {
		return k, nil
	}
	return nil, ErrKeyNotFound
}

func (c *JWKSClient) lookup(keyID string) (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys[keyID], time.Since(c.fetchedAt) < c.ttl
}

func (c *JWKSClient) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("jwks request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("jwks fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks fetch: status %d", resp.StatusCode)
	}

	var set jwks
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&set); err != nil {
		return fmt.Errorf("jwks decode: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := k.publicKey()
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return nil
}

func (k jwk) publicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil || len(n) == 0 {
		return nil, fmt.Errorf("jwk %s: bad modulus", k.Kid)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil || len(e) == 0 || len(e) > 4 {
		return nil, fmt.Errorf("jwk %s: bad exponent", k.Kid)
	}
	exp := new(big.Int).SetBytes(e)
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}
