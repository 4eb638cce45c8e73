package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Dispatch DispatchConfig
	Fare     FareConfig
	Plan     PlanConfig
	Maps     MapsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// DispatchConfig holds offer-window and penalty policy.
type DispatchConfig struct {
	OfferWindow     time.Duration // how long a single targeted offer stays open
	MissThreshold   int           // missed offers before suspension
	SuspendDuration time.Duration
	CommissionRate  float64 // platform fee as a fraction of final price
	SearchRadiusKm  float64 // live-location lookup radius around pickup
}

// FareConfig holds waiting-fee and night-window policy. The fare engine only
// applies the flat night add-on; this config decides when a trip counts as
// night.
type FareConfig struct {
	WaitingGrace     time.Duration // free waiting before the meter starts
	WaitingPerMinute int64         // accrual per full minute past grace
	NightStartHour   int           // inclusive, window may wrap midnight
	NightEndHour     int           // exclusive
	WindingFactor    float64       // straight-line to road-distance multiplier
	AvgSpeedKmh      float64       // duration estimate for the stub estimator
}

// PlanConfig holds the default pricing plan rates.
type PlanConfig struct {
	BaseFare       int64
	PerKm          int64
	PerMinute      int64
	NightSurcharge int64
}

// MapsConfig holds Google Maps configuration. An empty APIKey selects the
// built-in haversine estimator.
type MapsConfig struct {
	APIKey string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "dispatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "dispatch-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Dispatch: DispatchConfig{
			OfferWindow:     getDurationEnv("DISPATCH_OFFER_WINDOW", 15*time.Second),
			MissThreshold:   getIntEnv("DISPATCH_MISS_THRESHOLD", 3),
			SuspendDuration: getDurationEnv("DISPATCH_SUSPEND_DURATION", 2*time.Hour),
			CommissionRate:  getFloatEnv("DISPATCH_COMMISSION_RATE", 0.15),
			SearchRadiusKm:  getFloatEnv("DISPATCH_SEARCH_RADIUS_KM", 50),
		},
		Fare: FareConfig{
			WaitingGrace:     getDurationEnv("FARE_WAITING_GRACE", 300*time.Second),
			WaitingPerMinute: getInt64Env("FARE_WAITING_PER_MINUTE", 10),
			NightStartHour:   getIntEnv("FARE_NIGHT_START_HOUR", 23),
			NightEndHour:     getIntEnv("FARE_NIGHT_END_HOUR", 6),
			WindingFactor:    getFloatEnv("FARE_WINDING_FACTOR", 1.3),
			AvgSpeedKmh:      getFloatEnv("FARE_AVG_SPEED_KMH", 30),
		},
		Plan: PlanConfig{
			BaseFare:       getInt64Env("PLAN_BASE_FARE", 85),
			PerKm:          getInt64Env("PLAN_PER_KM", 25),
			PerMinute:      getInt64Env("PLAN_PER_MINUTE", 5),
			NightSurcharge: getInt64Env("PLAN_NIGHT_SURCHARGE", 20),
		},
		Maps: MapsConfig{
			APIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
