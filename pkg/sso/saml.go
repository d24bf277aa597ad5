package sso

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/url"
	"sync"

	"github.com/crewjam/saml"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snowflow/licensed/internal/store"
)

// providerCache holds one crewjam/saml.ServiceProvider per customer, keyed
// by customer id. An entry is built on first use and reused until invalidate
// drops it; get does not compare a cached entry with the current SsoConfig
// row, so a changed row takes effect only after invalidate. A cache hit takes
// only a read lock.
type providerCache struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*saml.ServiceProvider
	baseURL string
}

func newProviderCache(baseURL string) *providerCache {
	return &providerCache{byID: make(map[uuid.UUID]*saml.ServiceProvider), baseURL: baseURL}
}

func (c *providerCache) get(ctx context.Context, pool *pgxpool.Pool, customerID uuid.UUID) (*saml.ServiceProvider, store.SsoConfigRow, error) {
	c.mu.RLock()
	sp, ok := c.byID[customerID]
	c.mu.RUnlock()

	cfg, err := store.NewSsoConfigStore(pool).GetByCustomer(ctx, customerID)
	if err != nil {
		return nil, store.SsoConfigRow{}, err
	}
	if !cfg.Enabled {
		return nil, cfg, errConfigDisabled()
	}

	if ok {
		return sp, cfg, nil
	}

	sp, err = buildServiceProvider(cfg, c.baseURL)
	if err != nil {
		return nil, cfg, err
	}

	c.mu.Lock()
	c.byID[customerID] = sp
	c.mu.Unlock()
	return sp, cfg, nil
}

// invalidate drops a customer's cached ServiceProvider so the next login
// rebuilds it from the current SsoConfig row.
func (c *providerCache) invalidate(customerID uuid.UUID) {
	c.mu.Lock()
	delete(c.byID, customerID)
	c.mu.Unlock()
}

// buildServiceProvider constructs a ServiceProvider trusting exactly the
// IdP described by cfg. The SP carries no signing key of its own, so the
// AuthnRequest it sends is unsigned. The IdP's metadata is synthesized
// directly from SsoConfig's stored fields rather than fetched from a
// metadata URL, since SsoConfig is the server's only source of IdP trust
// material.
func buildServiceProvider(cfg store.SsoConfigRow, baseURL string) (*saml.ServiceProvider, error) {
	block, _ := pem.Decode([]byte(cfg.IdpCertificate))
	if block == nil {
		return nil, errAssertionInvalid("idp certificate is not valid PEM")
	}
	if _, err := x509.ParseCertificate(block.Bytes); err != nil {
		return nil, fmt.Errorf("parsing idp certificate: %w", err)
	}

	acsURL, err := url.Parse(fmt.Sprintf("%s/sso/callback", baseURL))
	if err != nil {
		return nil, fmt.Errorf("parsing acs url: %w", err)
	}
	metadataURL, err := url.Parse(fmt.Sprintf("%s/sso/metadata/%s", baseURL, cfg.CustomerID))
	if err != nil {
		return nil, fmt.Errorf("parsing metadata url: %w", err)
	}
	idpSSOURL, err := url.Parse(cfg.IdpSSOURL)
	if err != nil {
		return nil, fmt.Errorf("parsing idp sso url: %w", err)
	}

	idpMetadata := &saml.EntityDescriptor{
		EntityID: cfg.IdpEntityID,
		IDPSSODescriptors: []saml.IDPSSODescriptor{
			{
				SSODescriptor: saml.SSODescriptor{
					RoleDescriptor: saml.RoleDescriptor{
						KeyDescriptors: []saml.KeyDescriptor{
							{
								Use: "signing",
								KeyInfo: saml.KeyInfo{
									X509Data: saml.X509Data{
										X509Certificates: []saml.X509Certificate{
											{Data: base64.StdEncoding.EncodeToString(block.Bytes)},
										},
									},
								},
							},
						},
					},
				},
				SingleSignOnServices: []saml.Endpoint{
					{Binding: saml.HTTPRedirectBinding, Location: idpSSOURL.String()},
				},
			},
		},
	}

	sp := &saml.ServiceProvider{
		EntityID:    cfg.SPEntityID,
		AcsURL:      *acsURL,
		MetadataURL: *metadataURL,
		IDPMetadata: idpMetadata,
	}
	return sp, nil
}
