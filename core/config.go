package core

import (
	"fmt"
	"strings"
	"time"
)

// VendorConfig holds the per-vendor webhook authentication settings.
// Secret keys the HMAC signature; Source is the expected value of the
// vendor's shop/source identifier header.
type VendorConfig struct {
	Secret         string `koanf:"secret" mapstructure:"secret"`
	Source         string `koanf:"source" mapstructure:"source"`
	SendEmail      bool   `koanf:"send_email" mapstructure:"send_email"`
	RequirePayment bool   `koanf:"require_payment" mapstructure:"require_payment"`
}

type EnrollmentConfig struct {
	LMSBaseURL        string `koanf:"lms_base_url" mapstructure:"lms_base_url"`
	APIBaseURL        string `koanf:"api_base_url" mapstructure:"api_base_url"`
	OAuthClientID     string `koanf:"oauth_client_id" mapstructure:"oauth_client_id"`
	OAuthClientSecret string `koanf:"oauth_client_secret" mapstructure:"oauth_client_secret"`
}

type TasksConfig struct {
	MaxAttempts   int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	SoftTimeLimit time.Duration `koanf:"soft_time_limit" mapstructure:"soft_time_limit"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	Shopify     VendorConfig     `koanf:"shopify" mapstructure:"shopify"`
	WooCommerce VendorConfig     `koanf:"woocommerce" mapstructure:"woocommerce"`
	Enrollment  EnrollmentConfig `koanf:"enrollment" mapstructure:"enrollment"`
	Tasks       TasksConfig      `koanf:"tasks" mapstructure:"tasks"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "webhook-receiver",
		Shopify: VendorConfig{
			SendEmail: true,
		},
		WooCommerce: VendorConfig{
			SendEmail: true,
		},
		Tasks: TasksConfig{
			MaxAttempts:   3,
			SoftTimeLimit: 5 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Tasks.MaxAttempts < 1 {
		return fmt.Errorf("core: tasks.max_attempts must be at least 1")
	}
	if c.Tasks.SoftTimeLimit <= 0 {
		return fmt.Errorf("core: tasks.soft_time_limit must be positive")
	}
	return nil
}

// VendorConfigFor returns the configuration section for a vendor.
func (c Config) VendorConfigFor(vendor Vendor) (VendorConfig, error) {
	switch vendor {
	case VendorShopify:
		return c.Shopify, nil
	case VendorWooCommerce:
		return c.WooCommerce, nil
	default:
		return VendorConfig{}, fmt.Errorf("%w: %q", ErrInvalidVendor, string(vendor))
	}
}
