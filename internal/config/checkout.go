package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CheckoutConfig holds operator-tunable checkout policy. Values are
// hot-reloaded from the config file without a restart.
type CheckoutConfig struct {
	// DefaultTaxName labels tax lines produced from the region default
	// rate.
	DefaultTaxName string `mapstructure:"defaultTaxName"`
	// DefaultTaxCode is the stable code attached to those lines.
	DefaultTaxCode string `mapstructure:"defaultTaxCode"`
	// DefaultShippingTaxName labels shipping method tax lines.
	DefaultShippingTaxName string `mapstructure:"defaultShippingTaxName"`
}

func DefaultCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		DefaultTaxName:         "default",
		DefaultTaxCode:         "REGION_DEFAULT",
		DefaultShippingTaxName: "shipping",
	}
}

type CheckoutConfigHolder struct {
	current atomic.Value // holds CheckoutConfig
}

func NewCheckoutConfigHolder() (*CheckoutConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("checkout")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/storefront/config") // Volume-mounted config
	v.AddConfigPath("/etc/storefront")            // System config
	v.AddConfigPath(".")                          // Current directory (dev mode)

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// if config file not found, use defaults
		fileFound = false
		defaults := DefaultCheckoutConfig()
		v.SetDefault("checkout.defaultTaxName", defaults.DefaultTaxName)
		v.SetDefault("checkout.defaultTaxCode", defaults.DefaultTaxCode)
		v.SetDefault("checkout.defaultShippingTaxName", defaults.DefaultShippingTaxName)
	}

	var cfg CheckoutConfig
	if err := v.UnmarshalKey("checkout", &cfg); err != nil {
		return nil, err
	}
	if err := validateCheckoutConfig(cfg); err != nil {
		return nil, err
	}

	holder := &CheckoutConfigHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CheckoutConfig
		if err := v.UnmarshalKey("checkout", &updated); err != nil {
			log.Printf("[checkout-config] reload failed: %v", err)
			return
		}
		if err := validateCheckoutConfig(updated); err != nil {
			log.Printf("[checkout-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[checkout-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *CheckoutConfigHolder) Get() CheckoutConfig {
	return h.current.Load().(CheckoutConfig)
}

// NewStaticCheckoutConfigHolder wraps a fixed config with no file
// watching. Intended for tests.
func NewStaticCheckoutConfigHolder(cfg CheckoutConfig) *CheckoutConfigHolder {
	holder := &CheckoutConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validateCheckoutConfig(cfg CheckoutConfig) error {
	if strings.TrimSpace(cfg.DefaultTaxName) == "" {
		return errors.New("checkout.defaultTaxName cannot be empty")
	}
	if strings.TrimSpace(cfg.DefaultTaxCode) == "" {
		return errors.New("checkout.defaultTaxCode cannot be empty")
	}
	if strings.TrimSpace(cfg.DefaultShippingTaxName) == "" {
		return errors.New("checkout.defaultShippingTaxName cannot be empty")
	}
	return nil
}
