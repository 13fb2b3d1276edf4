package config

import (
	"fmt"
	"os"

	"signal-desk/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Storage configuration
	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent requests must be greater than 0")
	}

	// Validate Feed configuration
	if c.Feed.CryptoIntervalSeconds <= 0 || c.Feed.ForexIntervalSeconds <= 0 || c.Feed.MetalsIntervalSeconds <= 0 {
		return fmt.Errorf("feed refresh intervals must be greater than 0")
	}
	if c.Feed.TickerURL == "" || c.Feed.ChartURL == "" || c.Feed.ForwarderURL == "" {
		return fmt.Errorf("feed endpoints cannot be empty")
	}

	// Validate Session configuration
	if c.Session.AnalysisSeconds <= 0 {
		return fmt.Errorf("analysis duration must be greater than 0")
	}
	if c.Session.RevealDelayMillis < 0 {
		return fmt.Errorf("reveal delay cannot be negative")
	}

	if len(c.Timeframes) == 0 {
		return fmt.Errorf("at least one timeframe must be configured")
	}

	// Validate Instrument catalog
	if len(c.Instruments) == 0 {
		return fmt.Errorf("at least one instrument must be configured")
	}
	seen := make(map[string]bool, len(c.Instruments))
	for i, inst := range c.Instruments {
		if inst.ID == "" || inst.Name == "" {
			return fmt.Errorf("instrument %d must have an id and a name", i)
		}
		if seen[inst.ID] {
			return fmt.Errorf("duplicate instrument id '%s'", inst.ID)
		}
		seen[inst.ID] = true

		switch inst.Type {
		case models.InstrumentForex, models.InstrumentCrypto, models.InstrumentMetals:
		default:
			return fmt.Errorf("instrument '%s' has unknown type '%s'", inst.ID, inst.Type)
		}

		if inst.Price == "" {
			return fmt.Errorf("instrument '%s' must have a seed price", inst.ID)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// InstrumentsByType filters the catalog by category.
func (c *Config) InstrumentsByType(t models.MInstrumentType) []models.MInstrument {
	var out []models.MInstrument
	for _, inst := range c.Instruments {
		if inst.Type == t {
			out = append(out, inst)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
