// Package config предоставляет структуры и функции для загрузки конфигурации витрины.
// Значения читаются из YAML-файла (CONFIG_PATH) и могут быть переопределены переменными окружения.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек.
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Backend                 Backend   `yaml:"backend"`
	Payment                 Payment   `yaml:"payment"`
	Checkout                Checkout  `yaml:"checkout"`
	Catalog                 Catalog   `yaml:"catalog"`
	Account                 Account   `yaml:"account"`
	Profile                 Profile   `yaml:"profile"`
	Reconcile               Reconcile `yaml:"reconcile"`
	RabbitMQ                RabbitMQ  `yaml:"rabbitmq"`
	SMTP                    SMTP      `yaml:"smtp"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"15s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// WriteTimeout должен перекрывать checkout.sync_timeout: колбэк оплаты ждёт синхронизацию.
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"90s"`
	// TrustedProxies адреса и подсети, чьим X-Real-IP/X-Forwarded-For можно верить.
	TrustedProxies []string `yaml:"trusted_proxies" env:"HTTP_TRUSTED_PROXIES" env-separator:","`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для сессионных токенов витрины.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Backend описывает удалённый REST API и получение его токена.
type Backend struct {
	BaseURL    string        `yaml:"base_url" env:"BACKEND_BASE_URL"`
	TokenPath  string        `yaml:"token_path" env-default:"/api/auth"`
	Identity   string        `yaml:"identity" env:"BACKEND_IDENTITY"`
	AuthScheme string        `yaml:"auth_scheme"`
	Timeout    time.Duration `yaml:"timeout" env-default:"20s"`
}

// Payment настройки виджета оплаты (Razorpay checkout).
type Payment struct {
	KeyID             string  `yaml:"key_id" env:"PAYMENT_KEY_ID"`
	Currency          string  `yaml:"currency" env-default:"INR"`
	MerchantName      string  `yaml:"merchant_name" env-default:"Konvert HR"`
	DescriptionPrefix string  `yaml:"description_prefix" env-default:"Subscription for"`
	Image             string  `yaml:"image" env-default:"/logo.svg"`
	ThemeColor        string  `yaml:"theme_color" env-default:"#E42128"`
	Prefill           Prefill `yaml:"prefill"`
}

// Prefill значения по умолчанию для формы виджета.
type Prefill struct {
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	Contact string `yaml:"contact"`
}

// Checkout настройки сессий оформления заказа.
type Checkout struct {
	SessionTTL time.Duration `yaml:"session_ttl" env-default:"24h"`
	// PaymentWaitTimeout ноль означает неограниченное ожидание колбэка виджета.
	PaymentWaitTimeout time.Duration `yaml:"payment_wait_timeout"`
	// SyncTimeout ограничивает синхронизацию с backend после принятого колбэка.
	SyncTimeout time.Duration `yaml:"sync_timeout" env-default:"60s"`
}

// Catalog настройки каталога тарифов.
type Catalog struct {
	CacheTTL time.Duration `yaml:"cache_ttl" env-default:"5m"`
}

// Account настройки регистрации.
type Account struct {
	GSTVerificationTTL time.Duration `yaml:"gst_verification_ttl" env-default:"30m"`
}

// Profile настройки подтверждения контактов по OTP.
type Profile struct {
	OTPCooldown    time.Duration `yaml:"otp_cooldown" env-default:"30s"`
	OTPVerifiedTTL time.Duration `yaml:"otp_verified_ttl" env-default:"10m"`
}

// Reconcile повторная передача неотправленных оплат в backend.
type Reconcile struct {
	Interval  time.Duration `yaml:"interval" env-default:"5m"`
	Grace     time.Duration `yaml:"grace" env-default:"10m"`
	BatchSize int           `yaml:"batch_size" env-default:"50"`
	// MaxAttempts после стольких неудачных повторов оплата остаётся для ручного разбора.
	MaxAttempts int `yaml:"max_attempts" env-default:"12"`
}

// RabbitMQ параметры подключения к брокеру.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
	// MessageRedeliveries сколько раз повторять сообщение после временной ошибки обработчика.
	MessageRedeliveries int           `yaml:"message_redeliveries" env-default:"5"`
	MessageRetryDelay   time.Duration `yaml:"message_retry_delay" env-default:"1m"`
}

// SMTP параметры почтового сервера для квитанций.
type SMTP struct {
	Host string `yaml:"host" env:"SMTP_HOST"`
	Port string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User string `yaml:"user" env:"SMTP_USER"`
	Pass string `yaml:"pass" env:"SMTP_PASS"`
}

// Load читает конфигурацию из файла по указанному пути.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"
	if configPath == "" {
		return nil, fmt.Errorf("%s: CONFIG_PATH is not set", op)
	}
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: file: %s - does not exist", op, configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: cannot read config: %w", op, err)
	}
	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("%s: backend.base_url is required", op)
	}
	if cfg.Checkout.SyncTimeout >= cfg.WriteTimeout {
		return nil, fmt.Errorf("%s: checkout.sync_timeout (%s) must be below http_server.write_timeout (%s)",
			op, cfg.Checkout.SyncTimeout, cfg.WriteTimeout)
	}
	return &cfg, nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"HTTPServer: %s (timeout %s, write %s, idle %s)\n"+
			"Redis: %s db=%d\n"+
			"Backend: %s token=%s timeout=%s\n"+
			"Payment: currency=%s merchant=%q\n"+
			"Checkout: session_ttl=%s payment_wait_timeout=%s sync_timeout=%s\n"+
			"RabbitMQ: configured=%t\n"+
			"SMTP: %s:%s\n",
		c.Env,
		c.AddressHTTP, c.TimeoutHTTP, c.WriteTimeout, c.IdleTimeout,
		c.AddressRedis, c.DB,
		c.Backend.BaseURL, c.Backend.TokenPath, c.Backend.Timeout,
		c.Payment.Currency, c.Payment.MerchantName,
		c.Checkout.SessionTTL, c.Checkout.PaymentWaitTimeout, c.Checkout.SyncTimeout,
		c.RabbitMQ.URL != "",
		c.SMTP.Host, c.SMTP.Port,
	)
}
