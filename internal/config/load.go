package config

import (
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Load reads and decodes the JSON config file and fills in defaults for
// values the user left out.
func Load(path string) (*Config, error) {
	cfgFile, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "not able to open config file")
	}
	defer cfgFile.Close()

	var cfg Config
	if err = jsoniter.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "not able to parse JSON from config file")
	}

	if cfg.Exchange.BaseURL == "" {
		cfg.Exchange.BaseURL = BitgetRESTBaseURL
	}
	if cfg.Exchange.ProductType == "" {
		cfg.Exchange.ProductType = "usdt-futures"
	}
	if cfg.Exchange.QuoteSuffix == "" {
		cfg.Exchange.QuoteSuffix = "USDT"
	}
	if cfg.Exchange.APIKeyEnv == "" {
		cfg.Exchange.APIKeyEnv = "BG_API_KEY"
	}
	if cfg.Exchange.SecretKeyEnv == "" {
		cfg.Exchange.SecretKeyEnv = "BG_SECRET_KEY"
	}
	if cfg.Exchange.PassphraseEnv == "" {
		cfg.Exchange.PassphraseEnv = "BG_PASSPHRASE"
	}
	if cfg.Exchange.RequestsPerSec <= 0 {
		cfg.Exchange.RequestsPerSec = 5
	}
	if cfg.Exchange.Burst <= 0 {
		cfg.Exchange.Burst = 1
	}

	if cfg.Sync.Granularity == "" {
		cfg.Sync.Granularity = "1H"
	}
	if cfg.Sync.CandleRowLimit <= 0 {
		cfg.Sync.CandleRowLimit = 200
	}
	if cfg.Sync.FundingPageSize <= 0 {
		cfg.Sync.FundingPageSize = 100
	}
	if cfg.Sync.InitialLookbackDays <= 0 {
		cfg.Sync.InitialLookbackDays = 90
	}
	if cfg.Sync.CandleLookbackHours <= 0 {
		cfg.Sync.CandleLookbackHours = 5
	}
	if cfg.Sync.FundingLookbackDays <= 0 {
		cfg.Sync.FundingLookbackDays = 1
	}

	if cfg.Storage == "" {
		cfg.Storage = "jsonfile"
	}
	if cfg.Connection.JSONFile.OutputDir == "" {
		cfg.Connection.JSONFile.OutputDir = "data_dump"
	}

	if len(cfg.Exchange.Symbols) == 0 {
		return nil, errors.New("at least one symbol should be configured")
	}
	return &cfg, nil
}
