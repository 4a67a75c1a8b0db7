package srv

import (
	"os"
	"time"

	"github.com/atelier-studio/atelier/pkg/vendor"
)

type VendorConfig struct {
	BaseURL     string `toml:"base_url"`
	Token       string `toml:"token"`
	CatalogPath string `toml:"catalog_path"`
	// RetryAttempts and RetryDelay apply to a single model call; fallback
	// chains are walked on top of them.
	RetryAttempts uint   `toml:"retry_attempts"`
	RetryDelay    string `toml:"retry_delay"`
}

func (c *VendorConfig) FromENV() {
	c.BaseURL = os.Getenv("ATELIER_VENDOR_BASE_URL")
	c.Token = os.Getenv("ATELIER_VENDOR_TOKEN")
	c.CatalogPath = os.Getenv("ATELIER_VENDOR_CATALOG")
}

func (c VendorConfig) retryDelay() time.Duration {
	if d, err := time.ParseDuration(c.RetryDelay); err == nil && d > 0 {
		return d
	}
	return time.Second
}

func ApplyVendor(cfg VendorConfig, hook vendor.AttemptHook) ApplyFunc {
	return func(s *Srv) {
		catalog := vendor.MustLoadCatalog(cfg.CatalogPath)
		attempts := cfg.RetryAttempts
		if attempts == 0 {
			attempts = 2
		}
		client := vendor.NewHTTPClient(cfg.BaseURL, cfg.Token, vendor.WithRetry(attempts, cfg.retryDelay()))
		s.vendor = vendor.NewGateway(catalog, client)
		if hook != nil {
			s.vendor.OnAttempt(hook)
		}
	}
}

func ApplyVendorGateway(g *vendor.Gateway) ApplyFunc {
	return func(s *Srv) {
		s.vendor = g
	}
}
