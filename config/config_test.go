package config

import "testing"

func validConfig() *Config {
	return &Config{
		ListenAddr:         ":8080",
		ChainsFile:         "chains.yaml",
		LogLevel:           "info",
		FeePercent:         10.0,
		FeeBps:             1000,
		QuoteExpirySeconds: 300,
		SlippageFactor:     0.98,
		FlatGasEstimateUSD: 0.50,
		MinDustValueUSD:    0.01,
		MaxDustValueUSD:    10.0,
		OracleBaseURL:      "https://coins.llama.fi",
		SwapPrimaryURL:     "https://swap.example.com",
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "negative fee percent", mutate: func(c *Config) { c.FeePercent = -1 }},
		{name: "fee percent over 100", mutate: func(c *Config) { c.FeePercent = 101 }},
		{name: "negative fee bps", mutate: func(c *Config) { c.FeeBps = -1 }},
		{name: "fee bps over denominator", mutate: func(c *Config) { c.FeeBps = 10001 }},
		{name: "zero slippage", mutate: func(c *Config) { c.SlippageFactor = 0 }},
		{name: "slippage of one", mutate: func(c *Config) { c.SlippageFactor = 1 }},
		{name: "zero expiry", mutate: func(c *Config) { c.QuoteExpirySeconds = 0 }},
		{name: "inverted dust range", mutate: func(c *Config) { c.MinDustValueUSD = 5; c.MaxDustValueUSD = 1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestValidateServe(t *testing.T) {
	cfg := validConfig()
	cfg.SwapPrimaryURL = ""

	// Read-only commands do not need a swap backend.
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config without swap backend rejected: %v", err)
	}
	// Serving does.
	if err := cfg.ValidateServe(); err == nil {
		t.Fatal("expected a validation error without swap_primary_url")
	}
	cfg.SwapPrimaryURL = "https://swap.example.com"
	if err := cfg.ValidateServe(); err != nil {
		t.Fatalf("ValidateServe: %v", err)
	}
}
