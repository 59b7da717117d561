package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type App struct {
	Env  string `yaml:"env"`
	Port int    `yaml:"port"`
}

func (a *App) PortString() string { return fmt.Sprintf("%d", a.Port) }

func (a *App) Development() bool { return a.Env != "production" }

type Auth struct {
	APIKey            string `yaml:"api_key"`
	JWTSecret         string `yaml:"jwt_secret"`
	AdminEmail        string `yaml:"admin_email"`
	AdminPasswordHash string `yaml:"admin_password_hash"`
}

type Crypto struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Store struct {
	// "memory" or "mongo"
	Driver string `yaml:"driver"`
}

type Mongo struct {
	URI string `yaml:"uri"`
	DB  string `yaml:"db"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Webhook struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (w *Webhook) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

type Limit struct {
	WindowMS int `yaml:"window_ms"`
	Max      int `yaml:"max"`
}

func (l Limit) Window() time.Duration { return time.Duration(l.WindowMS) * time.Millisecond }

type RateLimits struct {
	Chat  Limit `yaml:"chat"`
	Admin Limit `yaml:"admin"`
	Login Limit `yaml:"login"`
}

type Config struct {
	App        App        `yaml:"app"`
	Auth       Auth       `yaml:"auth"`
	Crypto     Crypto     `yaml:"crypto"`
	Store      Store      `yaml:"store"`
	Mongo      Mongo      `yaml:"mongo"`
	Redis      Redis      `yaml:"redis"`
	Kafka      Kafka      `yaml:"kafka"`
	Webhook    Webhook    `yaml:"webhook"`
	RateLimits RateLimits `yaml:"rate_limits"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat("config.yaml"); err == nil {
		b, _ := os.ReadFile("config.yaml")
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, err
		}
	}

	_ = godotenv.Load()
	overrideFromEnv(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("SERVICE_PORT"); v != "" {
		n, _ := strconv.Atoi(v)
		cfg.App.Port = n
	}

	if v := os.Getenv("API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		cfg.Auth.AdminEmail = v
	}
	if v := os.Getenv("ADMIN_PASSWORD_HASH"); v != "" {
		cfg.Auth.AdminPasswordHash = v
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		cfg.Crypto.EncryptionKey = v
	}

	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("MONGODB_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("MONGO_NAME"); v != "" {
		cfg.Mongo.DB = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("KAFKA_BROKER"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CHAT_EVENTS_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}

	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Webhook.URL = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 8080
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}
	if cfg.Webhook.TimeoutSeconds == 0 {
		cfg.Webhook.TimeoutSeconds = 10
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "chat.message.created"
	}

	if cfg.RateLimits.Chat.WindowMS == 0 {
		cfg.RateLimits.Chat = Limit{WindowMS: 60_000, Max: 30}
	}
	if cfg.RateLimits.Admin.WindowMS == 0 {
		cfg.RateLimits.Admin = Limit{WindowMS: 60_000, Max: 20}
	}
	if cfg.RateLimits.Login.WindowMS == 0 {
		cfg.RateLimits.Login = Limit{WindowMS: 900_000, Max: 5}
	}

	// demo credential pair (Test@123); override both in any real deployment
	if cfg.Auth.AdminEmail == "" {
		cfg.Auth.AdminEmail = "test@gmail.com"
	}
	if cfg.Auth.AdminPasswordHash == "" {
		cfg.Auth.AdminPasswordHash = "$2b$10$fslUEAGe.p4R6JhffBXRv.EKSOYXJi9XJbDPIggP57KDzvWYR6sUq"
	}
}

func validate(cfg *Config) error {
	if cfg.Auth.APIKey == "" {
		return errors.New("auth.api_key missing")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret missing")
	}
	if cfg.Crypto.EncryptionKey == "" {
		return errors.New("crypto.encryption_key missing")
	}

	switch cfg.Store.Driver {
	case "memory":
	case "mongo":
		if cfg.Mongo.URI == "" {
			return errors.New("mongo.uri required for mongo store")
		}
		if cfg.Mongo.DB == "" {
			return errors.New("mongo.db required for mongo store")
		}
		if cfg.Redis.Addr == "" {
			return errors.New("redis.addr required for mongo store")
		}
	default:
		return errors.New("invalid store.driver (use memory or mongo)")
	}

	return nil
}
