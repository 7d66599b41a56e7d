package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort  string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost  string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName string `env:"SERVICE_NAME" envDefault:"aurin"`

	// 跨域来源，逗号分隔，* 表示回显任意来源
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// PostgreSQL 配置
	PostgreSQLHost       string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort       string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser       string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword   string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase   string `env:"POSTGRESQL_DATABASE" envDefault:"aurin"`
	PostgreSQLSchema     string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode    string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle    int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"30"`
	PostgreSQLMaxOpen    int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"200"`
	PostgreSQLReplicaDSN string `env:"POSTGRESQL_REPLICA_DSN"` // 可选，只读副本，扫描和轮询走这里

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"aurin"`

	// RabbitMQ 配置
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`

	// JWT 配置（访问令牌）
	JWTSecret        string `env:"JWT_SECRET"` // 必填
	JWTExpireMinutes int    `env:"JWT_EXPIRE_MINUTES" envDefault:"30"`
	JWTRefreshDays   int    `env:"JWT_REFRESH_DAYS" envDefault:"7"`

	// LiveProof 挑战令牌
	LiveProofSecret     string `env:"LIVEPROOF_SECRET"` // 必填，至少 32 字节
	LiveProofTTLSeconds int    `env:"LIVEPROOF_TTL_SECONDS" envDefault:"300"`

	// 限流配置
	RateLimitEnabled       bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPM           int  `env:"RATE_LIMIT_RPM" envDefault:"100"` // 通用接口每分钟请求数
	VerifyRateLimit        int  `env:"VERIFY_RATE_LIMIT" envDefault:"5"`
	VerifyRateWindowSecond int  `env:"VERIFY_RATE_WINDOW_SECONDS" envDefault:"60"`
	StartRateLimit         int  `env:"START_RATE_LIMIT" envDefault:"30"`
	StartRateWindowSecond  int  `env:"START_RATE_WINDOW_SECONDS" envDefault:"60"`

	// 凭证存储
	EvidenceBackend     string `env:"EVIDENCE_BACKEND" envDefault:"badger"` // badger, gridfs
	EvidenceBadgerPath  string `env:"EVIDENCE_BADGER_PATH" envDefault:"./data/evidence"`
	EvidenceMaxBytes    int    `env:"EVIDENCE_MAX_BYTES" envDefault:"5242880"`
	MongoURI            string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase       string `env:"MONGO_DATABASE" envDefault:"aurin"`
	EvidenceOrphanAfter int    `env:"EVIDENCE_ORPHAN_AFTER_MINUTES" envDefault:"60"`

	// 铸造配置
	MintProvider          string `env:"MINT_PROVIDER" envDefault:"ethereum"` // ethereum, mock
	EthereumRPCURL        string `env:"ETHEREUM_RPC_URL" envDefault:"http://localhost:8545"`
	MinterPrivateKey      string `env:"MINTER_PRIVATE_KEY"`
	ERC721Contract        string `env:"ERC721_CONTRACT_ADDRESS"`
	ERC1155Contract       string `env:"ERC1155_CONTRACT_ADDRESS"`
	MintMaxAttempts       int    `env:"MINT_MAX_ATTEMPTS" envDefault:"5"`
	MintMaxRounds         int    `env:"MINT_MAX_ROUNDS" envDefault:"3"`
	MintBackoffInitialMs  int    `env:"MINT_BACKOFF_INITIAL_MS" envDefault:"2000"`
	MintBackoffMaxMs      int    `env:"MINT_BACKOFF_MAX_MS" envDefault:"60000"`
	MintAttemptTimeoutSec int    `env:"MINT_ATTEMPT_TIMEOUT_SECONDS" envDefault:"180"`
	MintStaleAfterMinutes int    `env:"MINT_STALE_AFTER_MINUTES" envDefault:"30"` // 必须大于 MintLockTTL
	MintWorkerPrefetch    int    `env:"MINT_WORKER_PREFETCH" envDefault:"8"`

	// 调度配置
	SweepPendingGraceSeconds  int `env:"SWEEP_PENDING_GRACE_SECONDS" envDefault:"120"`
	SweepRetryCooldownMinutes int `env:"SWEEP_RETRY_COOLDOWN_MINUTES" envDefault:"10"`
	SweepBatchSize            int `env:"SWEEP_BATCH_SIZE" envDefault:"200"`
	SweepRedispatchSeconds    int `env:"SWEEP_REDISPATCH_INTERVAL_SECONDS" envDefault:"60"`
	SweepReconcileMinutes     int `env:"SWEEP_RECONCILE_INTERVAL_MINUTES" envDefault:"5"`
	SweepEvidenceMinutes      int `env:"SWEEP_EVIDENCE_INTERVAL_MINUTES" envDefault:"30"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪配置
	OTelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0.1"`
	ServiceVersion  string  `env:"SERVICE_VERSION" envDefault:"dev"`
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}
}

// MustValidate 由各个入口在启动时调用，缺少必填密钥直接退出
func MustValidate() {
	if Cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	if len(Cfg.LiveProofSecret) < 32 {
		log.Fatal("LIVEPROOF_SECRET is required and must be at least 32 bytes")
	}

	if Cfg.MintProvider == "ethereum" && Cfg.MinterPrivateKey == "" {
		log.Printf("WARN: MINTER_PRIVATE_KEY is not set, minting will fail until it is configured")
	}

	if Cfg.EvidenceBackend != "badger" && Cfg.EvidenceBackend != "gridfs" {
		log.Fatalf("EVIDENCE_BACKEND must be badger or gridfs, got %q", Cfg.EvidenceBackend)
	}

	if err := Cfg.validateMintTimings(); err != nil {
		log.Fatal(err)
	}
}

// validateMintTimings 对账只处理锁已过期的 minting，否则会和仍在重试的 worker 并发改同一条记录
func (c *Config) validateMintTimings() error {
	if c.MintMaxAttempts <= 0 || c.MintAttemptTimeoutSec <= 0 {
		return fmt.Errorf("MINT_MAX_ATTEMPTS and MINT_ATTEMPT_TIMEOUT_SECONDS must be positive")
	}
	if c.MintStaleAfter() <= c.MintLockTTL() {
		return fmt.Errorf("MINT_STALE_AFTER_MINUTES (%s) must exceed the mint lock TTL (%s)",
			c.MintStaleAfter(), c.MintLockTTL())
	}
	return nil
}

func (c *Config) GetDSN() string {
	return "host=" + c.PostgreSQLHost +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) LiveProofTTL() time.Duration {
	return time.Duration(c.LiveProofTTLSeconds) * time.Second
}

func (c *Config) MintBackoffInitial() time.Duration {
	return time.Duration(c.MintBackoffInitialMs) * time.Millisecond
}

func (c *Config) MintBackoffMax() time.Duration {
	return time.Duration(c.MintBackoffMaxMs) * time.Millisecond
}

func (c *Config) MintAttemptTimeout() time.Duration {
	return time.Duration(c.MintAttemptTimeoutSec) * time.Second
}

// MintLockTTL 覆盖一轮重试的最坏耗时
func (c *Config) MintLockTTL() time.Duration {
	return time.Duration(c.MintMaxAttempts) * (c.MintAttemptTimeout() + c.MintBackoffMax())
}

func (c *Config) MintStaleAfter() time.Duration {
	return time.Duration(c.MintStaleAfterMinutes) * time.Minute
}
