package config

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"
	defaultDBDriver   = "mysql"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "ideaflow"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultSQLitePath = "ideaflow.db"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0

	defaultAIProvider     = "deepseek"
	defaultAITimeout      = 30
	defaultAITemperature  = 0.7
	defaultAIMaxTokens    = 2000
	defaultSaveIntent     = SaveIntentModel
	defaultBreakerMaxReq  = 1
	defaultBreakerWindow  = 60
	defaultBreakerTimeout = 30
	defaultBreakerRatio   = 0.6
	defaultBreakerMinReq  = 5

	defaultDailyRequests = 50
	defaultQuotaStore    = QuotaStoreDatabase
)

const (
	SaveIntentPhrase = "phrase"
	SaveIntentModel  = "model"

	QuotaStoreDatabase = "database"
	QuotaStoreRedis    = "redis"

	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)
