package config

import (
	"os"
	"strings"
)

func normalizeDatabaseConfig(cfg DatabaseRuntimeConfig) DatabaseRuntimeConfig {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	if cfg.Driver == "sqlite3" {
		cfg.Driver = DriverSQLite
	}
	if cfg.Driver == "" {
		cfg.Driver = defaultDBDriver
	}
	cfg.Path = strings.TrimSpace(cfg.Path)
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.User = strings.TrimSpace(cfg.User)
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.Password = strings.TrimSpace(cfg.Password)
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.DBName = strings.TrimSpace(cfg.DBName)
	cfg.Charset = strings.TrimSpace(cfg.Charset)
	cfg.Loc = strings.TrimSpace(cfg.Loc)

	if cfg.User == "" && cfg.Username != "" {
		cfg.User = cfg.Username
	}
	if cfg.Name == "" && cfg.DBName != "" {
		cfg.Name = cfg.DBName
	}
	if cfg.Host == "" {
		cfg.Host = defaultDBHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultDBPort
	}
	if cfg.User == "" {
		cfg.User = defaultDBUser
	}
	if cfg.Password == "" {
		cfg.Password = defaultDBPassword
	}
	if cfg.Name == "" {
		cfg.Name = defaultDBName
	}
	if cfg.Charset == "" {
		cfg.Charset = defaultDBCharset
	}
	if cfg.Loc == "" {
		cfg.Loc = defaultDBLoc
	}
	if cfg.Params != nil {
		cfg.Params = copyStringMap(cfg.Params)
	}
	return cfg
}

func normalizeRedisConfig(cfg RedisRuntimeConfig) RedisRuntimeConfig {
	cfg.URL = normalizeRedisRawURL(cfg.URL)
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.Password = strings.TrimSpace(cfg.Password)
	cfg.Scheme = strings.ToLower(strings.TrimSpace(cfg.Scheme))

	if cfg.Host == "" && cfg.URL == "" {
		cfg.Host = defaultRedisHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultRedisPort
	}
	if cfg.DB < 0 {
		cfg.DB = defaultRedisDB
	}
	if cfg.Scheme == "" {
		if cfg.TLS {
			cfg.Scheme = "rediss"
		} else {
			cfg.Scheme = "redis"
		}
	}
	if cfg.Params != nil {
		cfg.Params = copyStringMap(cfg.Params)
	}
	return cfg
}

func normalizeRedisRawURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "redis://") || strings.HasPrefix(trimmed, "rediss://") {
		return trimmed
	}
	return "redis://" + trimmed
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	trimmed := strings.ToLower(strings.TrimSpace(env))
	if trimmed == "" {
		return defaultEnv
	}
	return trimmed
}

func normalizeRuntimePaths(paths RuntimePathsConfig) RuntimePathsConfig {
	paths.Data = strings.TrimSpace(paths.Data)
	paths.Logs = strings.TrimSpace(paths.Logs)
	return paths
}

func copyStringMap(input map[string]string) map[string]string {
	if input == nil {
		return nil
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		k := strings.TrimSpace(key)
		v := strings.TrimSpace(value)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

func normalizeAIConfig(cfg AIConfig) AIConfig {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = defaultAIProvider
	}
	cfg.SaveIntent = strings.ToLower(strings.TrimSpace(cfg.SaveIntent))
	if cfg.SaveIntent == "" {
		cfg.SaveIntent = defaultSaveIntent
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaultAITimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultAIMaxTokens
	}

	providers := make([]AIProvider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		p.ID = strings.TrimSpace(p.ID)
		p.Name = strings.TrimSpace(p.Name)
		p.Type = strings.ToLower(strings.TrimSpace(p.Type))
		p.APIKey = strings.TrimSpace(p.APIKey)
		p.Endpoint = strings.TrimRight(strings.TrimSpace(p.Endpoint), "/")
		p.DefaultModel = strings.TrimSpace(p.DefaultModel)
		if p.ID == "" {
			p.ID = p.Type
		}
		if p.Type == "" {
			p.Type = p.ID
		}
		if p.APIKey == "" {
			p.APIKey = apiKeyFromEnv(p.Type)
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		providers = append(providers, AIProvider{
			ID:      cfg.Provider,
			Type:    cfg.Provider,
			APIKey:  apiKeyFromEnv(cfg.Provider),
			Enabled: true,
		})
	}
	cfg.Providers = providers

	cfg.TitleModel = normalizeAssignment(cfg.TitleModel)
	cfg.DialogueModel = normalizeAssignment(cfg.DialogueModel)
	cfg.SynthesisModel = normalizeAssignment(cfg.SynthesisModel)
	cfg.Breaker = normalizeBreakerConfig(cfg.Breaker)
	return cfg
}

func normalizeAssignment(a *AIModelAssignment) *AIModelAssignment {
	if a == nil {
		return nil
	}
	next := &AIModelAssignment{
		ProviderID: strings.TrimSpace(a.ProviderID),
		Model:      strings.TrimSpace(a.Model),
	}
	if next.ProviderID == "" && next.Model == "" {
		return nil
	}
	return next
}

func normalizeBreakerConfig(cfg BreakerConfig) BreakerConfig {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = defaultBreakerMaxReq
	}
	if cfg.IntervalSeconds <= 0 {
		cfg.IntervalSeconds = defaultBreakerWindow
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaultBreakerTimeout
	}
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		cfg.FailureRatio = defaultBreakerRatio
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = defaultBreakerMinReq
	}
	return cfg
}

// apiKeyFromEnv reads <TYPE>_API_KEY, e.g. DEEPSEEK_API_KEY.
func apiKeyFromEnv(providerType string) string {
	name := strings.ToUpper(strings.TrimSpace(providerType))
	if name == "" {
		return ""
	}
	name = strings.NewReplacer("-", "_", ".", "_").Replace(name)
	return strings.TrimSpace(os.Getenv(name + "_API_KEY"))
}
