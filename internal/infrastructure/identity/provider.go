package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/crypto/bcrypt"

	"github.com/GreenViva/esiriplus-sub002/domain"
	"github.com/GreenViva/esiriplus-sub002/internal/config"
)

// ProviderImpl implements domain.IdentityProvider. Staff credentials are
// opaque: validation is delegated to the external identity platform when one
// is configured, otherwise to a static directory seeded from config (local
// development and tests). Validation results are cached briefly so hot
// staff callers do not hit the provider on every request.
type ProviderImpl struct {
	providerURL string
	httpClient  *http.Client
	cache       *ttlcache.Cache[string, *domain.StaffIdentity]
	staticStaff []config.StaffEntry
}

// NewProvider creates a new staff identity provider.
func NewProvider(providerURL string, cacheTTL time.Duration, staticStaff []config.StaffEntry) domain.IdentityProvider {
	cache := ttlcache.New[string, *domain.StaffIdentity](
		ttlcache.WithTTL[string, *domain.StaffIdentity](cacheTTL),
		ttlcache.WithDisableTouchOnHit[string, *domain.StaffIdentity](),
	)
	go cache.Start()

	return &ProviderImpl{
		providerURL: providerURL,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		cache:       cache,
		staticStaff: staticStaff,
	}
}

// Validate implements domain.IdentityProvider.
func (p *ProviderImpl) Validate(ctx context.Context, token string) (*domain.StaffIdentity, error) {
	if item := p.cache.Get(token); item != nil {
		return item.Value(), nil
	}

	var (
		identity *domain.StaffIdentity
		err      error
	)
	if p.providerURL != "" {
		identity, err = p.validateRemote(ctx, token)
	} else {
		identity, err = p.validateStatic(token)
	}
	if err != nil {
		return nil, err
	}

	p.cache.Set(token, identity, ttlcache.DefaultTTL)
	return identity, nil
}

func (p *ProviderImpl) validateRemote(ctx context.Context, token string) (*domain.StaffIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.providerURL+"/v1/introspect", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build introspection request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.ErrUnauthorized
	}

	var body struct {
		Active bool   `json:"active"`
		Sub    string `json:"sub"`
		Name   string `json:"name"`
		Role   string `json:"role"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode introspection response: %w", err)
	}
	if !body.Active || body.Sub == "" || body.Role == "" {
		return nil, domain.ErrUnauthorized
	}

	return &domain.StaffIdentity{ID: body.Sub, Name: body.Name, Role: body.Role}, nil
}

// validateStatic compares the presented token against each configured staff
// entry's bcrypt hash.
func (p *ProviderImpl) validateStatic(token string) (*domain.StaffIdentity, error) {
	for _, entry := range p.staticStaff {
		if bcrypt.CompareHashAndPassword([]byte(entry.TokenHash), []byte(token)) == nil {
			return &domain.StaffIdentity{ID: entry.ID, Name: entry.Name, Role: entry.Role}, nil
		}
	}
	return nil, domain.ErrUnauthorized
}
