package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	intents "github.com/mintkit/intents/go"
)

// DefaultLeaseSkew is how long before expiry a lease stops being reused
const DefaultLeaseSkew = 30 * time.Second

// LeaseConfig configures a LeaseProvider
type LeaseConfig struct {
	// URL is the base URL of the upload service issuing leases
	URL        string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
	// Skew is subtracted from the lease expiry (optional, defaults to 30s)
	Skew time.Duration
}

// LeaseProvider exchanges an API key for short-lived upload tokens (JWTs)
// and caches them until shortly before they expire. Concurrent callers
// share a single refresh. It implements AuthProvider with a bearer header.
type LeaseProvider struct {
	rest  restClient
	cache *intents.LeaseCache
	key   string
}

// NewLeaseProvider creates a lease provider
func NewLeaseProvider(config LeaseConfig) *LeaseProvider {
	skew := config.Skew
	if skew == 0 {
		skew = DefaultLeaseSkew
	}
	return &LeaseProvider{
		rest: newRESTClient("lease api", strings.TrimRight(config.URL, "/"), config.HTTPClient,
			APIKeyAuth{Key: config.APIKey}, config.Timeout),
		cache: intents.NewLeaseCache(skew),
		key:   config.APIKey,
	}
}

type leaseResponse struct {
	Token string `json:"token"`
}

// Lease returns a valid upload token, fetching a new one when the cached
// token is missing or about to expire.
func (p *LeaseProvider) Lease(ctx context.Context) (*intents.Lease, error) {
	return p.cache.Get(ctx, p.key, p.fetch)
}

// Invalidate drops the cached token, e.g. after the service rejected it.
func (p *LeaseProvider) Invalidate() {
	p.cache.Invalidate(p.key)
}

// GetAuthHeaders implements AuthProvider
func (p *LeaseProvider) GetAuthHeaders(ctx context.Context) (map[string]string, error) {
	lease, err := p.Lease(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + lease.Token}, nil
}

func (p *LeaseProvider) fetch(ctx context.Context, _ string) (*intents.Lease, error) {
	var resp leaseResponse
	if err := p.rest.postJSON(ctx, "/lease", struct{}{}, &resp); err != nil {
		return nil, err
	}
	expiresAt, err := TokenExpiry(resp.Token)
	if err != nil {
		return nil, err
	}
	return &intents.Lease{Token: resp.Token, ExpiresAt: expiresAt}, nil
}

// TokenExpiry reads the exp claim of a JWT without verifying it. The token
// is only ever sent back to its issuer.
func TokenExpiry(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse lease token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("lease token has no expiry")
	}
	return claims.ExpiresAt.Time, nil
}
