package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port      string `mapstructure:"PORT"`
	Env       string `mapstructure:"ENV"`
	AppName   string `mapstructure:"APP_NAME"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	DBDSN string `mapstructure:"DB_DSN"`

	RedisAddr string `mapstructure:"REDIS_ADDR"`
	RedisDB   int    `mapstructure:"REDIS_DB"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`

	MQTTBroker   string `mapstructure:"MQTT_BROKER"`
	MQTTClientID string `mapstructure:"MQTT_CLIENT_ID"`

	SMSQueueURL string `mapstructure:"SMS_QUEUE_URL"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	JWTIssuer string `mapstructure:"JWT_ISSUER"`

	HeartbeatInterval time.Duration `mapstructure:"HEARTBEAT_INTERVAL"`
	AlarmTimeout      time.Duration `mapstructure:"ALARM_TIMEOUT"`
	SuccessDelay      time.Duration `mapstructure:"ALARM_SUCCESS_DELAY"`
	SlotCount         int           `mapstructure:"SLOT_COUNT"`
	SeedDemo          bool          `mapstructure:"SEED_DEMO"`

	LessonsDocumentURL string `mapstructure:"LESSONS_DOCUMENT_URL"`
}

var keys = []string{
	"PORT", "ENV", "APP_NAME", "LOG_LEVEL", "LOG_FORMAT",
	"DB_DSN",
	"REDIS_ADDR", "REDIS_DB",
	"KAFKA_BROKERS", "KAFKA_TOPIC",
	"MQTT_BROKER", "MQTT_CLIENT_ID",
	"SMS_QUEUE_URL",
	"JWT_SECRET", "JWT_ISSUER",
	"HEARTBEAT_INTERVAL", "ALARM_TIMEOUT", "ALARM_SUCCESS_DELAY", "SLOT_COUNT", "SEED_DEMO",
	"LESSONS_DOCUMENT_URL",
}

// Load lee la configuración del entorno. Un .env opcional en el directorio
// de trabajo completa las variables que no estén seteadas.
func Load() (*Config, error) {
	// godotenv no pisa variables ya seteadas.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("APP_NAME", "pillsync")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KAFKA_TOPIC", "pillsync.history")
	v.SetDefault("MQTT_CLIENT_ID", "pillsync-api")
	v.SetDefault("JWT_ISSUER", "pillsync")
	v.SetDefault("HEARTBEAT_INTERVAL", "5s")
	v.SetDefault("ALARM_TIMEOUT", "60s")
	v.SetDefault("ALARM_SUCCESS_DELAY", "1800ms")
	v.SetDefault("SLOT_COUNT", 6)
	v.SetDefault("SEED_DEMO", true)

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Si no hay .env, seguimos con env + defaults.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Brokers separa KAFKA_BROKERS (lista separada por comas).
func (c *Config) Brokers() []string {
	out := make([]string, 0)
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Validate revisa los valores sin los cuales el servicio no puede arrancar.
// Fuera de development exigimos JWT_SECRET (el header de debug solo vale en dev).
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive, got %s", c.HeartbeatInterval)
	}
	if c.AlarmTimeout <= 0 {
		return fmt.Errorf("ALARM_TIMEOUT must be positive, got %s", c.AlarmTimeout)
	}
	if c.SuccessDelay < 0 {
		return fmt.Errorf("ALARM_SUCCESS_DELAY must not be negative, got %s", c.SuccessDelay)
	}
	if c.SlotCount < 1 || c.SlotCount > 32 {
		return fmt.Errorf("SLOT_COUNT must be between 1 and 32, got %d", c.SlotCount)
	}
	if !c.IsDev() && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	return nil
}
