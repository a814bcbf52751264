package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server       Server
	Database     Database
	Redis        Redis
	Proctor      Proctor
	GeminiApiKey string
}

type Server struct {
	Port string
}
type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Proctor holds the tunables of the attempt timing and monitoring pipeline.
type Proctor struct {
	TickInterval        time.Duration // countdown granularity, one second unless overridden
	SyncTimeout         time.Duration // deadline for one authoritative timer read
	ResyncToleranceSecs int           // local/server divergence tolerated before the server value is adopted
	TimerPersistTicks   int           // ticks between time_remaining checkpoints
	SignalRateWindowSec int           // per-kind evaluation window for high-frequency signals
	ReporterQueueSize   int
	ReporterMaxRetries  int
	PresenceTTL         time.Duration
	StartLockTTL        time.Duration
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	viper.SetDefault("PROCTOR_TICK_INTERVAL_MS", 1000)
	viper.SetDefault("PROCTOR_SYNC_TIMEOUT_SECONDS", 5)
	viper.SetDefault("PROCTOR_RESYNC_TOLERANCE_SECONDS", 2)
	viper.SetDefault("PROCTOR_TIMER_PERSIST_TICKS", 15)
	viper.SetDefault("PROCTOR_SIGNAL_RATE_WINDOW_SECONDS", 3)
	viper.SetDefault("PROCTOR_REPORTER_QUEUE_SIZE", 256)
	viper.SetDefault("PROCTOR_REPORTER_MAX_RETRIES", 2)
	viper.SetDefault("PROCTOR_PRESENCE_TTL_SECONDS", 120)
	viper.SetDefault("PROCTOR_START_LOCK_TTL_SECONDS", 10)

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.Redis.Addr = viper.GetString("REDIS_ADDR")
	config.Redis.Password = viper.GetString("REDIS_PASSWORD")
	config.Redis.DB = viper.GetInt("REDIS_DB")

	config.Proctor.TickInterval = time.Duration(viper.GetInt("PROCTOR_TICK_INTERVAL_MS")) * time.Millisecond
	config.Proctor.SyncTimeout = time.Duration(viper.GetInt("PROCTOR_SYNC_TIMEOUT_SECONDS")) * time.Second
	config.Proctor.ResyncToleranceSecs = viper.GetInt("PROCTOR_RESYNC_TOLERANCE_SECONDS")
	config.Proctor.TimerPersistTicks = viper.GetInt("PROCTOR_TIMER_PERSIST_TICKS")
	config.Proctor.SignalRateWindowSec = viper.GetInt("PROCTOR_SIGNAL_RATE_WINDOW_SECONDS")
	config.Proctor.ReporterQueueSize = viper.GetInt("PROCTOR_REPORTER_QUEUE_SIZE")
	config.Proctor.ReporterMaxRetries = viper.GetInt("PROCTOR_REPORTER_MAX_RETRIES")
	config.Proctor.PresenceTTL = time.Duration(viper.GetInt("PROCTOR_PRESENCE_TTL_SECONDS")) * time.Second
	config.Proctor.StartLockTTL = time.Duration(viper.GetInt("PROCTOR_START_LOCK_TTL_SECONDS")) * time.Second

	config.GeminiApiKey = viper.GetString("GEMINI_API_KEY")

	log.Info().Interface("config", config).Msg("Config loaded")
	return &config, nil

}
