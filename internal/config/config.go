package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg, err := parse(content, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML content over the defaults and validates the result.
// Relative runtime paths resolve against the working directory.
func Parse(content []byte) (*AppConfig, error) {
	return parse(content, "")
}

func parse(content []byte, root string) (*AppConfig, error) {
	cfg := defaultAppConfig()
	cfg.Paths.Data = root
	raw := rawAppConfig{}
	if len(bytes.TrimSpace(content)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
	}

	applyRawAppConfig(&cfg, raw)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *AppConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", cfg.Port)
	}
	if cfg.Database.Driver != DriverMySQL && cfg.Database.Driver != DriverSQLite {
		return fmt.Errorf("invalid database.driver %q, expected mysql or sqlite", cfg.Database.Driver)
	}
	if cfg.Database.Driver == DriverMySQL {
		if err := validateMySQLDSN(cfg.DSN); err != nil {
			return err
		}
	}
	if cfg.Database.Port < 1 || cfg.Database.Port > 65535 {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", cfg.Database.Port)
	}
	if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", cfg.Redis.Port)
	}
	if cfg.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", cfg.Redis.DB)
	}
	if cfg.Quota.DailyRequests < 1 {
		return fmt.Errorf("invalid quota.daily_requests %d, expected > 0", cfg.Quota.DailyRequests)
	}
	if cfg.Quota.Store != QuotaStoreDatabase && cfg.Quota.Store != QuotaStoreRedis {
		return fmt.Errorf("invalid quota.store %q, expected database or redis", cfg.Quota.Store)
	}
	if cfg.AI.SaveIntent != SaveIntentPhrase && cfg.AI.SaveIntent != SaveIntentModel {
		return fmt.Errorf("invalid ai.save_intent %q, expected phrase or model", cfg.AI.SaveIntent)
	}
	if cfg.AI.Temperature < 0 || cfg.AI.Temperature > 2 {
		return fmt.Errorf("invalid ai.temperature %v, expected 0-2", cfg.AI.Temperature)
	}
	return nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Driver:    defaultDBDriver,
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		AI: AIConfig{
			Provider:       defaultAIProvider,
			TimeoutSeconds: defaultAITimeout,
			Temperature:    defaultAITemperature,
			MaxTokens:      defaultAIMaxTokens,
			SaveIntent:     defaultSaveIntent,
		},
		Quota: QuotaConfig{
			DailyRequests: defaultDailyRequests,
			Store:         defaultQuotaStore,
		},
	}
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.AI = normalizeAIConfig(cfg.AI)
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)
	cfg.AI = applyRawAIConfig(cfg.AI, raw)
	cfg.Quota = applyRawQuotaConfig(cfg.Quota, raw)
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.Paths.Data); v != "" {
		cfg.Paths.Data = v
	}
	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}

	switch {
	case raw.AllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	case raw.CORSAllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.CORSAllowedOrigins)
	}

	if v := strings.TrimSpace(raw.JWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TZ); v != "" {
		cfg.Timezone = v
	}

	cfg.Paths = normalizeRuntimePaths(cfg.Paths)
	cfg.Database.root = cfg.Paths.Data
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.Env = normalizeEnv(cfg.Env)
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.Database.Driver); v != "" {
		cfg.Driver = v
	}
	if v := strings.TrimSpace(raw.DBDriver); v != "" {
		cfg.Driver = v
	}
	if v := strings.TrimSpace(raw.Database.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Database.URL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.DatabaseURL); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Database.Host); v != "" {
		cfg.Host = v
	}
	if v := strings.TrimSpace(raw.DBHost); v != "" {
		cfg.Host = v
	}
	if raw.Database.Port != 0 {
		cfg.Port = raw.Database.Port
	}
	if raw.DBPort != 0 {
		cfg.Port = raw.DBPort
	}
	if v := strings.TrimSpace(raw.Database.User); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Database.Username); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.DBUser); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Database.Password); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(raw.DBPassword); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(raw.Database.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Database.DBName); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.DBName); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Database.Charset); v != "" {
		cfg.Charset = v
	}
	if raw.Database.ParseTime != nil {
		cfg.ParseTime = *raw.Database.ParseTime
	}
	if v := strings.TrimSpace(raw.Database.Loc); v != "" {
		cfg.Loc = v
	}
	if v := strings.TrimSpace(raw.Database.Path); v != "" {
		cfg.Path = v
	}
	if raw.Database.Params != nil {
		cfg.Params = copyStringMap(raw.Database.Params)
	}

	return normalizeDatabaseConfig(cfg)
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	cfg := current

	if v := strings.TrimSpace(raw.Redis.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.Redis.Host); v != "" {
		cfg.Host = v
	}
	if v := strings.TrimSpace(raw.RedisHost); v != "" {
		cfg.Host = v
	}
	if raw.Redis.Port != 0 {
		cfg.Port = raw.Redis.Port
	}
	if raw.RedisPort != 0 {
		cfg.Port = raw.RedisPort
	}
	if v := strings.TrimSpace(raw.Redis.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(raw.Redis.Password); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(raw.RedisPassword); v != "" {
		cfg.Password = v
	}
	if raw.Redis.DB != nil {
		cfg.DB = *raw.Redis.DB
	}
	if raw.RedisDB != nil {
		cfg.DB = *raw.RedisDB
	}
	if raw.Redis.TLS != nil {
		cfg.TLS = *raw.Redis.TLS
	}
	if v := strings.TrimSpace(raw.Redis.Scheme); v != "" {
		cfg.Scheme = v
	}
	if raw.Redis.Params != nil {
		cfg.Params = copyStringMap(raw.Redis.Params)
	}

	return normalizeRedisConfig(cfg)
}

func applyRawAIConfig(current AIConfig, raw rawAppConfig) AIConfig {
	cfg := current

	if v := strings.TrimSpace(raw.AI.Provider); v != "" {
		cfg.Provider = v
	}
	if v := strings.TrimSpace(raw.AIProvider); v != "" {
		cfg.Provider = v
	}
	if raw.AI.Providers != nil {
		cfg.Providers = append([]AIProvider(nil), raw.AI.Providers...)
	}
	if raw.AI.TitleModel != nil {
		cfg.TitleModel = raw.AI.TitleModel
	}
	if raw.AI.DialogueModel != nil {
		cfg.DialogueModel = raw.AI.DialogueModel
	}
	if raw.AI.SynthesisModel != nil {
		cfg.SynthesisModel = raw.AI.SynthesisModel
	}
	if raw.AI.TimeoutSeconds != 0 {
		cfg.TimeoutSeconds = raw.AI.TimeoutSeconds
	}
	if raw.AI.Temperature != nil {
		cfg.Temperature = *raw.AI.Temperature
	}
	if raw.AI.MaxTokens != 0 {
		cfg.MaxTokens = raw.AI.MaxTokens
	}
	if v := strings.TrimSpace(raw.AI.SaveIntent); v != "" {
		cfg.SaveIntent = v
	}
	if raw.AI.Breaker.MaxRequests != 0 {
		cfg.Breaker.MaxRequests = raw.AI.Breaker.MaxRequests
	}
	if raw.AI.Breaker.IntervalSeconds != 0 {
		cfg.Breaker.IntervalSeconds = raw.AI.Breaker.IntervalSeconds
	}
	if raw.AI.Breaker.TimeoutSeconds != 0 {
		cfg.Breaker.TimeoutSeconds = raw.AI.Breaker.TimeoutSeconds
	}
	if raw.AI.Breaker.FailureRatio != nil {
		cfg.Breaker.FailureRatio = *raw.AI.Breaker.FailureRatio
	}
	if raw.AI.Breaker.MinRequests != 0 {
		cfg.Breaker.MinRequests = raw.AI.Breaker.MinRequests
	}

	return normalizeAIConfig(cfg)
}

func applyRawQuotaConfig(current QuotaConfig, raw rawAppConfig) QuotaConfig {
	cfg := current
	if raw.Quota.DailyRequests != 0 {
		cfg.DailyRequests = raw.Quota.DailyRequests
	}
	if raw.DailyRequestLimit != 0 {
		cfg.DailyRequests = raw.DailyRequestLimit
	}
	if v := strings.TrimSpace(raw.Quota.Store); v != "" {
		cfg.Store = v
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	return cfg
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

func (c *AppConfig) LogDir() string {
	if c == nil {
		return resolveUnder("", "", "logs")
	}
	return resolveUnder(c.Paths.Data, c.Paths.Logs, "logs")
}
