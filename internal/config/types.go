package config

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	DSN            string                `yaml:"dsn"` // resolved database DSN
	RedisURL       string                `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Env            string                `yaml:"env"` // "development" | "production"
	Paths          RuntimePathsConfig    `yaml:"paths"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	Timezone       string                `yaml:"timezone"`
	AI             AIConfig              `yaml:"ai"`
	Quota          QuotaConfig           `yaml:"quota"`
}

type DatabaseRuntimeConfig struct {
	Driver    string            `yaml:"driver"` // mysql | sqlite
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Path      string            `yaml:"path"` // sqlite file
	Params    map[string]string `yaml:"params"`

	root string
}

type RedisRuntimeConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       int               `yaml:"db"`
	TLS      bool              `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

type RuntimePathsConfig struct {
	Data string `yaml:"data"`
	Logs string `yaml:"logs"`
}

// AIConfig selects and tunes the completion backends.
type AIConfig struct {
	Provider       string             `yaml:"provider"`
	Providers      []AIProvider       `yaml:"providers"`
	TitleModel     *AIModelAssignment `yaml:"title_model"`
	DialogueModel  *AIModelAssignment `yaml:"dialogue_model"`
	SynthesisModel *AIModelAssignment `yaml:"synthesis_model"`
	TimeoutSeconds int                `yaml:"timeout_seconds"`
	Temperature    float64            `yaml:"temperature"`
	MaxTokens      int                `yaml:"max_tokens"`
	SaveIntent     string             `yaml:"save_intent"` // phrase | model
	Breaker        BreakerConfig      `yaml:"breaker"`
}

type AIModelAssignment struct {
	ProviderID string `yaml:"provider_id"`
	Model      string `yaml:"model"`
}

type AIProvider struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"` // deepseek | openai | openai-compatible | qwen | anthropic | gemini
	APIKey       string `yaml:"api_key"`
	Endpoint     string `yaml:"endpoint"`
	DefaultModel string `yaml:"default_model"`
	Enabled      bool   `yaml:"enabled"`
}

type BreakerConfig struct {
	MaxRequests     uint32  `yaml:"max_requests"`
	IntervalSeconds int     `yaml:"interval_seconds"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	FailureRatio    float64 `yaml:"failure_ratio"`
	MinRequests     uint32  `yaml:"min_requests"`
}

type QuotaConfig struct {
	DailyRequests int    `yaml:"daily_requests"`
	Store         string `yaml:"store"` // database | redis
}

type rawAppConfig struct {
	Port               int               `yaml:"port"`
	DSN                string            `yaml:"dsn"`
	DatabaseURL        string            `yaml:"database_url"`
	RedisURL           string            `yaml:"redis_url"`
	Database           rawDatabaseConfig `yaml:"database"`
	Redis              rawRedisConfig    `yaml:"redis"`
	DBDriver           string            `yaml:"db_driver"`
	DBHost             string            `yaml:"db_host"`
	DBPort             int               `yaml:"db_port"`
	DBUser             string            `yaml:"db_user"`
	DBPassword         string            `yaml:"db_password"`
	DBName             string            `yaml:"db_name"`
	RedisHost          string            `yaml:"redis_host"`
	RedisPort          int               `yaml:"redis_port"`
	RedisPassword      string            `yaml:"redis_password"`
	RedisDB            *int              `yaml:"redis_db"`
	Env                string            `yaml:"env"`
	Paths              rawPathsConfig    `yaml:"paths"`
	LogDir             string            `yaml:"log_dir"`
	AllowedOrigins     []string          `yaml:"allowed_origins"`
	CORSAllowedOrigins []string          `yaml:"cors_allowed_origins"`
	JWTSecret          string            `yaml:"jwt_secret"`
	Timezone           string            `yaml:"timezone"`
	TZ                 string            `yaml:"tz"`
	AI                 rawAIConfig       `yaml:"ai"`
	AIProvider         string            `yaml:"ai_provider"`
	Quota              rawQuotaConfig    `yaml:"quota"`
	DailyRequestLimit  int               `yaml:"daily_request_limit"`
}

type rawDatabaseConfig struct {
	Driver    string            `yaml:"driver"`
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Path      string            `yaml:"path"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       *int              `yaml:"db"`
	TLS      *bool             `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

type rawPathsConfig struct {
	Data string `yaml:"data"`
	Logs string `yaml:"logs"`
}

type rawAIConfig struct {
	Provider       string             `yaml:"provider"`
	Providers      []AIProvider       `yaml:"providers"`
	TitleModel     *AIModelAssignment `yaml:"title_model"`
	DialogueModel  *AIModelAssignment `yaml:"dialogue_model"`
	SynthesisModel *AIModelAssignment `yaml:"synthesis_model"`
	TimeoutSeconds int                `yaml:"timeout_seconds"`
	Temperature    *float64           `yaml:"temperature"`
	MaxTokens      int                `yaml:"max_tokens"`
	SaveIntent     string             `yaml:"save_intent"`
	Breaker        rawBreakerConfig   `yaml:"breaker"`
}

type rawBreakerConfig struct {
	MaxRequests     uint32   `yaml:"max_requests"`
	IntervalSeconds int      `yaml:"interval_seconds"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
	FailureRatio    *float64 `yaml:"failure_ratio"`
	MinRequests     uint32   `yaml:"min_requests"`
}

type rawQuotaConfig struct {
	DailyRequests int    `yaml:"daily_requests"`
	Store         string `yaml:"store"`
}
