// Package config предоставляет структуры и функции для парсинга и загрузки конфига.
// Значения читаются из YAML-файла, путь к которому задаёт CONFIG_PATH,
// секреты могут быть переопределены переменными окружения.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	HTTPServer              `yaml:"http_server"`
	Auth                    `yaml:"auth"`
	Paddle                  `yaml:"paddle"`
	RateLimit               `yaml:"rate_limit"`
	Cache                   `yaml:"cache"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// RabbitMQ настройки публикации событий. Пустой URL отключает публикацию.
type RabbitMQ struct {
	URL          string        `yaml:"url" env:"RABBITMQ_URL"`
	Exchange     string        `yaml:"exchange" env-default:"cleancut.credits"`
	ConnRetries  int           `yaml:"conn_retries" env-default:"5"`
	ConnInterval time.Duration `yaml:"conn_interval" env-default:"2s"`
}

// Auth настройки проверки bearer-токенов и политики администраторов.
type Auth struct {
	JWTSecretKey string   `yaml:"jwt_secret_key" env:"AUTH_JWT_SECRET" env-required:"true"`
	AdminEmails  []string `yaml:"admin_emails" env:"AUTH_ADMIN_EMAILS" env-separator:","`
	AdminRole    string   `yaml:"admin_role" env-default:"admin"`
	// TokenTTL время жизни токенов, выпускаемых для локальной разработки.
	TokenTTL time.Duration `yaml:"token_ttl" env-default:"1h"`
}

// Paddle настройки webhook и соответствия price id планам.
type Paddle struct {
	WebhookSecret      string        `yaml:"webhook_secret" env:"PADDLE_WEBHOOK_SECRET" env-required:"true"`
	SignatureTolerance time.Duration `yaml:"signature_tolerance" env:"PADDLE_SIGNATURE_TOLERANCE"`
	PriceProMonthly    []string      `yaml:"price_pro_monthly" env:"PADDLE_PRICE_PRO_MONTHLY" env-separator:","`
	PriceLifetime      []string      `yaml:"price_lifetime" env:"PADDLE_PRICE_LIFETIME" env-separator:","`
}

// RateLimit ограничение частоты списаний на один аккаунт.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"2"`
	Burst int     `yaml:"burst" env-default:"5"`
}

// Cache время жизни записей в redis.
type Cache struct {
	LedgerTTL  time.Duration `yaml:"ledger_ttl" env-default:"5m"`
	WebhookTTL time.Duration `yaml:"webhook_ttl" env-default:"72h"`
}

// Load читает конфиг из файла path и переменных окружения.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cfg.AdminEmails = normalizeEmails(cfg.AdminEmails)
	return &cfg, nil
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH, завершает процесс при ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func normalizeEmails(emails []string) []string {
	res := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			res = append(res, e)
		}
	}
	return res
}

// String печатает конфиг без секретов.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"MigrationsPath: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"RabbitMQ:\n"+
			"  Enabled: %t\n"+
			"  Exchange: %s\n"+
			"Auth:\n"+
			"  AdminEmails: %d\n"+
			"Paddle:\n"+
			"  SignatureTolerance: %s\n"+
			"  Prices: %d pro_monthly, %d lifetime\n",
		c.Env,
		c.MigrationsPath,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.RabbitMQ.URL != "",
		c.Exchange,
		len(c.AdminEmails),
		c.SignatureTolerance,
		len(c.PriceProMonthly),
		len(c.PriceLifetime),
	)
}
