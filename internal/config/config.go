package config

const (
	// BitgetRESTBaseURL is the bitget exchange base REST url.
	BitgetRESTBaseURL = "https://api.bitget.com"

	// BitgetSuccessCode is the business success code returned inside the
	// bitget response envelope. Any other code is a business failure even
	// when the HTTP status is 200.
	BitgetSuccessCode = "00000"
)

// Config contains config values for the app.
// Struct values are loaded from user defined JSON config file.
type Config struct {
	Exchange   Exchange   `json:"exchange"`
	Sync       Sync       `json:"sync"`
	Storage    string     `json:"storage"`
	Connection Connection `json:"connection"`
	Log        Log        `json:"log"`
}

// Exchange contains config values for the bitget exchange API.
type Exchange struct {
	BaseURL     string   `json:"base_url"`
	ProductType string   `json:"product_type"`
	Symbols     []string `json:"symbols"`
	QuoteSuffix string   `json:"quote_suffix"`

	// Environment variable names holding the API credentials.
	// Credential values themselves never live in the config file.
	APIKeyEnv     string `json:"api_key_env"`
	SecretKeyEnv  string `json:"secret_key_env"`
	PassphraseEnv string `json:"passphrase_env"`

	RequestsPerSec float64 `json:"requests_per_sec"`
	Burst          int     `json:"burst"`
}

// Sync contains config values for the synchronization engine.
type Sync struct {
	Granularity         string           `json:"granularity"`
	CandleRowLimit      int              `json:"candle_row_limit"`
	FundingPageSize     int              `json:"funding_page_size"`
	InitialLookbackDays int              `json:"initial_lookback_days"`
	CandleLookbackHours int              `json:"candle_lookback_hours"`
	FundingLookbackDays int              `json:"funding_lookback_days"`
	OIUnitDivisors      map[string]int64 `json:"oi_unit_divisors"`
}

// Connection contains config values for different API and storage connections.
type Connection struct {
	REST     REST     `json:"rest"`
	MySQL    MySQL    `json:"mysql"`
	ES       ES       `json:"elastic_search"`
	JSONFile JSONFile `json:"jsonfile"`
}

// REST contains config values for REST API connection.
type REST struct {
	ReqTimeoutSec       int `json:"request_timeout_sec"`
	MaxIdleConns        int `json:"max_idle_conns"`
	MaxIdleConnsPerHost int `json:"max_idle_conns_per_host"`
}

// MySQL contains config values for mysql.
type MySQL struct {
	User               string `json:"user"`
	Password           string `json:"password"`
	URL                string `json:"URL"`
	Schema             string `json:"schema"`
	ReqTimeoutSec      int    `json:"request_timeout_sec"`
	ConnMaxLifetimeSec int    `json:"conn_max_lifetime_sec"`
	MaxOpenConns       int    `json:"max_open_conns"`
	MaxIdleConns       int    `json:"max_idle_conns"`
}

// ES contains config values for elastic search.
type ES struct {
	Addresses           []string `json:"addresses"`
	Username            string   `json:"username"`
	Password            string   `json:"password"`
	IndexName           string   `json:"index_name"`
	ReqTimeoutSec       int      `json:"request_timeout_sec"`
	MaxIdleConns        int      `json:"max_idle_conns"`
	MaxIdleConnsPerHost int      `json:"max_idle_conns_per_host"`
}

// JSONFile contains config values for file based storage.
type JSONFile struct {
	OutputDir string `json:"output_dir"`
}

// Log contains config values for logging.
type Log struct {
	Level    string `json:"level"`
	FilePath string `json:"file_path"`
}
