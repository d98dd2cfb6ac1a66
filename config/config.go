package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Postgres    Postgres
	Telegram    Telegram
	Redis       Redis
	HTTP        HTTP
	API         API
	Cache       Cache
	Sync        Sync
	Jobs        Jobs
	GoogleDrive GoogleDrive
}

type Postgres struct {
	Host            string `env:"PG_HOST"`
	Port            int    `env:"PG_PORT"`
	DbName          string `env:"PG_DB_NAME"`
	Password        string `env:"PG_PASSWORD"`
	User            string `env:"PG_USER"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME" envDefault:"300"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"60"`
	MigrationDir    string `env:"PG_MIGRATION_DIR" envDefault:"data/migrations"`
	NotifyChannel   string `env:"PG_NOTIFY_CHANNEL" envDefault:"portfolio_changes"`
}

type Telegram struct {
	Token      string        `env:"TELEGRAM_TOKEN" envDefault:""`
	UpdTimeout time.Duration `env:"TELEGRAM_UPD_TIMEOUT" envDefault:"10s"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type HTTP struct {
	Port         string        `env:"HTTP_PORT" envDefault:"8000"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}

type API struct {
	Debug         bool          `env:"API_DEBUG" envDefault:"false"`
	Timeout       time.Duration `env:"API_TIMEOUT" envDefault:"5s"`
	QuoteProvider string        `env:"QUOTE_PROVIDER" envDefault:"mock"`
	Fmp           Provider      `envPrefix:"FMP_"`
	Eodhd         Provider      `envPrefix:"EODHD_"`
	Proxy         Provider      `envPrefix:"PROXY_"`
	Crypto        Provider      `envPrefix:"CRYPTO_"`
}

type Provider struct {
	Url string `env:"URL" envDefault:""`
	Key string `env:"KEY" envDefault:""`
}

type Cache struct {
	PortfolioExpiration time.Duration `env:"CACHE_PORTFOLIO_EXPIRATION" envDefault:"0s"`
	QuoteTTL            time.Duration `env:"CACHE_QUOTE_TTL" envDefault:"5m"`
}

type Sync struct {
	ChunkSize     int           `env:"SYNC_CHUNK_SIZE" envDefault:"50"`
	ChunkDelay    time.Duration `env:"SYNC_CHUNK_DELAY" envDefault:"100ms"`
	RemoteTimeout time.Duration `env:"SYNC_REMOTE_TIMEOUT" envDefault:"5s"`
	// ImportWaitTimeout bounds how long ?wait=true import requests block on background persistence.
	ImportWaitTimeout time.Duration `env:"SYNC_IMPORT_WAIT_TIMEOUT" envDefault:"20s"`
}

type Jobs struct {
	MarketTickInterval   time.Duration `env:"MARKET_TICK_JOB_INTERVAL" envDefault:"5s"`
	DriveCleanupInterval time.Duration `env:"DRIVE_CLEANUP_JOB_INTERVAL" envDefault:"1h"`
}

type GoogleDrive struct {
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE" envDefault:""`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL" envDefault:"24h"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}
