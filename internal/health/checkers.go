package health

import (
	"context"
	"os"
)

// Pinger is a service that can be reached with a lightweight request.
type Pinger interface {
	Ping(ctx context.Context) error
	URL() string
}

// BackendChecker verifies the backend answers its health endpoint.
type BackendChecker struct {
	backend Pinger
}

// NewBackendChecker creates a backend checker.
func NewBackendChecker(backend Pinger) *BackendChecker {
	return &BackendChecker{backend: backend}
}

// Name returns the name of this health check.
func (c *BackendChecker) Name() string {
	return "backend-api"
}

// Check pings the backend. The CLI is unusable without it.
func (c *BackendChecker) Check(ctx context.Context) *Result {
	if err := c.backend.Ping(ctx); err != nil {
		return Unhealthy("backend is unreachable").
			WithDetail("url", c.backend.URL()).
			WithDetail("error", err.Error()).
			WithDetail("suggestion", "Check backend.url and your network connection")
	}
	return Healthy("backend is reachable").WithDetail("url", c.backend.URL())
}

// KeyChecker reports whether an optional third-party API has credentials.
type KeyChecker struct {
	name       string
	configured bool
	env        string
}

// NewKeyChecker creates a checker named name for a key read from env.
func NewKeyChecker(name string, configured bool, env string) *KeyChecker {
	return &KeyChecker{name: name, configured: configured, env: env}
}

// Name returns the name of this health check.
func (c *KeyChecker) Name() string {
	return c.name
}

// Check is degraded when the key is missing: only that feature is lost.
func (c *KeyChecker) Check(ctx context.Context) *Result {
	if !c.configured {
		return Degraded("API key not configured").
			WithDetail("suggestion", "Set the "+c.env+" environment variable")
	}
	return Healthy("API key configured")
}

// Vault is the local credential store.
type Vault interface {
	Path() string
	Names() []string
	Verify() error
}

// StoreChecker verifies the local credential store.
type StoreChecker struct {
	vault Vault
}

// NewStoreChecker creates a store checker.
func NewStoreChecker(vault Vault) *StoreChecker {
	return &StoreChecker{vault: vault}
}

// Name returns the name of this health check.
func (c *StoreChecker) Name() string {
	return "credential-store"
}

// Check is unhealthy when saved entries cannot be decrypted.
func (c *StoreChecker) Check(ctx context.Context) *Result {
	path := c.vault.Path()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Healthy("no saved credentials").WithDetail("path", path)
	}
	if err := c.vault.Verify(); err != nil {
		return Unhealthy("credential store is unreadable").
			WithDetail("path", path).
			WithDetail("error", err.Error()).
			WithDetail("suggestion", "Check store.passphrase, or delete the file and sign in again")
	}
	return Healthy("credential store is readable").
		WithDetail("path", path).
		WithDetail("entries", len(c.vault.Names()))
}
