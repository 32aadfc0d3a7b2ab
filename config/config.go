// Package config loads the operator-supplied engine configuration.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds every operator knob for the engine. Chain-specific
// configuration lives in the chains file, loaded separately by registry.
type Config struct {
	ListenAddr string
	ChainsFile string
	LogLevel   string

	// Quoting parameters.
	FeePercent         float64 // default non-donation fee, e.g. 10.0
	FeeBps             int64   // settlement-contract fee in basis points
	Treasury           string  // donation recipient; empty disables donations
	QuoteExpirySeconds int64
	SlippageFactor     float64
	FlatGasEstimateUSD float64
	MinDustValueUSD    float64
	MaxDustValueUSD    float64

	// Collaborator endpoints.
	OracleBaseURL   string
	SwapPrimaryURL  string
	SwapFallbackURL string
	BridgeHTTPURL   string
	OneClickJWT     string

	// Solver signing key (hex). Optional: without it the engine can quote
	// but not execute.
	SolverPrivateKey string

	ConfirmWaitSeconds int64
}

// Load reads configuration from environment variables and an optional
// config file.
func Load() (*Config, error) {
	viper.SetConfigName(".dustsweep")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("chains_file", "chains.yaml")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("fee_percent", 10.0)
	viper.SetDefault("fee_bps", 1000)
	viper.SetDefault("quote_expiry_seconds", 300)
	viper.SetDefault("slippage_factor", 0.98)
	viper.SetDefault("flat_gas_estimate_usd", 0.50)
	viper.SetDefault("min_dust_value_usd", 0.01)
	viper.SetDefault("max_dust_value_usd", 10.0)
	viper.SetDefault("oracle_base_url", "https://coins.llama.fi")
	viper.SetDefault("confirm_wait_seconds", 60)

	viper.SetEnvPrefix("DUSTSWEEP")
	viper.AutomaticEnv()

	// Config file is optional.
	_ = viper.ReadInConfig()

	cfg := &Config{
		ListenAddr:         viper.GetString("listen_addr"),
		ChainsFile:         viper.GetString("chains_file"),
		LogLevel:           viper.GetString("log_level"),
		FeePercent:         viper.GetFloat64("fee_percent"),
		FeeBps:             viper.GetInt64("fee_bps"),
		Treasury:           viper.GetString("treasury"),
		QuoteExpirySeconds: viper.GetInt64("quote_expiry_seconds"),
		SlippageFactor:     viper.GetFloat64("slippage_factor"),
		FlatGasEstimateUSD: viper.GetFloat64("flat_gas_estimate_usd"),
		MinDustValueUSD:    viper.GetFloat64("min_dust_value_usd"),
		MaxDustValueUSD:    viper.GetFloat64("max_dust_value_usd"),
		OracleBaseURL:      viper.GetString("oracle_base_url"),
		SwapPrimaryURL:     viper.GetString("swap_primary_url"),
		SwapFallbackURL:    viper.GetString("swap_fallback_url"),
		BridgeHTTPURL:      viper.GetString("bridge_http_url"),
		OneClickJWT:        viper.GetString("oneclick_jwt"),
		SolverPrivateKey:   viper.GetString("solver_private_key"),
		ConfirmWaitSeconds: viper.GetInt64("confirm_wait_seconds"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.FeePercent < 0 || c.FeePercent > 100 {
		return fmt.Errorf("fee_percent must be within [0,100], got %v", c.FeePercent)
	}
	if c.FeeBps < 0 || c.FeeBps > 10000 {
		return fmt.Errorf("fee_bps must be within [0,10000], got %d", c.FeeBps)
	}
	if c.SlippageFactor <= 0 || c.SlippageFactor >= 1 {
		return fmt.Errorf("slippage_factor must be within (0,1), got %v", c.SlippageFactor)
	}
	if c.QuoteExpirySeconds <= 0 {
		return fmt.Errorf("quote_expiry_seconds must be positive, got %d", c.QuoteExpirySeconds)
	}
	if c.MinDustValueUSD < 0 || c.MaxDustValueUSD <= c.MinDustValueUSD {
		return fmt.Errorf("dust range [%v,%v] is invalid", c.MinDustValueUSD, c.MaxDustValueUSD)
	}
	return nil
}

// ValidateServe adds the checks only the serving path needs. Read-only
// commands load a config without a swap backend just fine.
func (c *Config) ValidateServe() error {
	if c.SwapPrimaryURL == "" {
		return fmt.Errorf("swap_primary_url is required")
	}
	return nil
}
