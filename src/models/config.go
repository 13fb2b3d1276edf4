package models

// MConfig Structure
type MConfig struct {
	Name        string         `yaml:"name"`
	Host        string         `yaml:"host"`
	Port        int            `yaml:"port"`
	LogLevel    string         `yaml:"log_level"`
	Storage     MStorageConfig `yaml:"storage"`
	Network     MNetworkConfig `yaml:"network"`
	Feed        MFeedConfig    `yaml:"price_feed"`
	Session     MSessionConfig `yaml:"session"`
	Timeframes  []string       `yaml:"timeframes"`
	Instruments []MInstrument  `yaml:"instruments"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MNetworkConfig struct {
	RequestTimeout     int `yaml:"timeout"`
	MaxRetries         int `yaml:"retries"`
	ConcurrentRequests int `yaml:"concurrent_requests"`
}

// MFeedConfig holds per-category refresh cadences and upstream endpoints.
type MFeedConfig struct {
	CryptoIntervalSeconds int    `yaml:"crypto_interval_seconds"`
	ForexIntervalSeconds  int    `yaml:"forex_interval_seconds"`
	MetalsIntervalSeconds int    `yaml:"metals_interval_seconds"`
	TickerURL             string `yaml:"ticker_url"`
	ChartURL              string `yaml:"chart_url"`
	ForwarderURL          string `yaml:"forwarder_url"`
}

type MSessionConfig struct {
	AnalysisSeconds   int `yaml:"analysis_seconds"`
	RevealDelayMillis int `yaml:"reveal_delay_millis"`
}
