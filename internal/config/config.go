// internal/config/config.go
package config

import (
	"log"
	"os"
	"sync"

	"github.com/andresuchdata/reorder-ai/internal/forecast"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Forecast ForecastConfig
	Storage  StorageConfig
	Drive    DriveConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	LogLevel       string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	UploadDir string
}

type CacheConfig struct {
	Enabled            bool
	RedisURL           string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	ModelTTLSeconds    int
	ForecastTTLSeconds int
	LockTTLSeconds     int
	LockWaitSeconds    int
}

type ForecastConfig struct {
	HistoryDays            int
	DefaultHorizonDays     int
	MinSaleEvents          int
	MinPopulatedDays       int
	MinTrainingRows        int
	TestRatio              float64
	RefitFullWindow        bool
	TrainOnMiss            bool
	SafetyBufferRatio      float64
	CycleStockRatio        float64
	FallbackOrderPadding   int
	HighConfidenceAccuracy float64
	RetrainIntervalMinutes int
	RetrainWorkers         int
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		instance = load(viper.GetViper())

		ensureDir(instance.App.UploadDir)
	})

	return instance
}

func load(v *viper.Viper) *Config {
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			UploadDir: v.GetString("APP_UPLOAD_DIR"),
		},
		Cache: CacheConfig{
			Enabled:            v.GetBool("CACHE_ENABLED"),
			RedisURL:           v.GetString("REDIS_URL"),
			RedisHost:          v.GetString("REDIS_HOST"),
			RedisPort:          v.GetString("REDIS_PORT"),
			RedisPassword:      v.GetString("REDIS_PASSWORD"),
			RedisDB:            v.GetInt("REDIS_DB"),
			ModelTTLSeconds:    v.GetInt("CACHE_MODEL_TTL_SECONDS"),
			ForecastTTLSeconds: v.GetInt("CACHE_FORECAST_TTL_SECONDS"),
			LockTTLSeconds:     v.GetInt("CACHE_LOCK_TTL_SECONDS"),
			LockWaitSeconds:    v.GetInt("CACHE_LOCK_WAIT_SECONDS"),
		},
		Forecast: ForecastConfig{
			HistoryDays:            v.GetInt("FORECAST_HISTORY_DAYS"),
			DefaultHorizonDays:     v.GetInt("FORECAST_DEFAULT_HORIZON_DAYS"),
			MinSaleEvents:          v.GetInt("FORECAST_MIN_SALE_EVENTS"),
			MinPopulatedDays:       v.GetInt("FORECAST_MIN_POPULATED_DAYS"),
			MinTrainingRows:        v.GetInt("FORECAST_MIN_TRAINING_ROWS"),
			TestRatio:              v.GetFloat64("FORECAST_TEST_RATIO"),
			RefitFullWindow:        v.GetBool("FORECAST_REFIT_FULL_WINDOW"),
			TrainOnMiss:            v.GetBool("FORECAST_TRAIN_ON_MISS"),
			SafetyBufferRatio:      v.GetFloat64("FORECAST_SAFETY_BUFFER_RATIO"),
			CycleStockRatio:        v.GetFloat64("FORECAST_CYCLE_STOCK_RATIO"),
			FallbackOrderPadding:   v.GetInt("FORECAST_FALLBACK_ORDER_PADDING"),
			HighConfidenceAccuracy: v.GetFloat64("FORECAST_HIGH_CONFIDENCE_ACCURACY"),
			RetrainIntervalMinutes: v.GetInt("FORECAST_RETRAIN_INTERVAL_MINUTES"),
			RetrainWorkers:         v.GetInt("FORECAST_RETRAIN_WORKERS"),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("STORAGE_ENABLED"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
			Prefix:    v.GetString("STORAGE_PREFIX"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			FolderID:        v.GetString("GOOGLE_DRIVE_FOLDER_ID"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "inventory")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_MODEL_TTL_SECONDS", 0)
	v.SetDefault("CACHE_FORECAST_TTL_SECONDS", 3600)
	v.SetDefault("CACHE_LOCK_TTL_SECONDS", 60)
	v.SetDefault("CACHE_LOCK_WAIT_SECONDS", 30)

	d := forecast.DefaultConfig()
	v.SetDefault("FORECAST_HISTORY_DAYS", d.WindowDays)
	v.SetDefault("FORECAST_DEFAULT_HORIZON_DAYS", d.DefaultHorizonDays)
	v.SetDefault("FORECAST_MIN_SALE_EVENTS", d.MinSaleEvents)
	v.SetDefault("FORECAST_MIN_POPULATED_DAYS", d.MinPopulatedDays)
	v.SetDefault("FORECAST_MIN_TRAINING_ROWS", d.MinTrainingRows)
	v.SetDefault("FORECAST_TEST_RATIO", d.TestRatio)
	v.SetDefault("FORECAST_REFIT_FULL_WINDOW", d.RefitFullWindow)
	v.SetDefault("FORECAST_TRAIN_ON_MISS", true)
	v.SetDefault("FORECAST_SAFETY_BUFFER_RATIO", d.Policy.SafetyBufferRatio)
	v.SetDefault("FORECAST_CYCLE_STOCK_RATIO", d.Policy.CycleStockRatio)
	v.SetDefault("FORECAST_FALLBACK_ORDER_PADDING", d.Policy.FallbackOrderPadding)
	v.SetDefault("FORECAST_HIGH_CONFIDENCE_ACCURACY", d.Policy.HighConfidenceAccuracy)
	v.SetDefault("FORECAST_RETRAIN_INTERVAL_MINUTES", 0)
	v.SetDefault("FORECAST_RETRAIN_WORKERS", 4)

	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_BUCKET", "forecast-models")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("STORAGE_PREFIX", "")
	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("GOOGLE_DRIVE_FOLDER_ID", "")
}

// Engine converts the forecast settings into the core's tuning.
func (f ForecastConfig) Engine() forecast.Config {
	return forecast.Config{
		WindowDays:         f.HistoryDays,
		DefaultHorizonDays: f.DefaultHorizonDays,
		MinSaleEvents:      f.MinSaleEvents,
		MinPopulatedDays:   f.MinPopulatedDays,
		MinTrainingRows:    f.MinTrainingRows,
		TestRatio:          f.TestRatio,
		RefitFullWindow:    f.RefitFullWindow,
		Policy: forecast.PolicyConfig{
			SafetyBufferRatio:      f.SafetyBufferRatio,
			CycleStockRatio:        f.CycleStockRatio,
			FallbackOrderPadding:   f.FallbackOrderPadding,
			HighConfidenceAccuracy: f.HighConfidenceAccuracy,
		},
	}
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
