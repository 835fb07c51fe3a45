package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env         string `yaml:"env" env:"ENV" env-default:"local"`
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`
	RedisAddr   string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	HTTPServer  `yaml:"http_server"`
	Inference   Inference `yaml:"inference"`
	Hardware    Hardware  `yaml:"hardware"`
	Session     Session   `yaml:"session"`
	Finalizer   Finalizer `yaml:"finalizer"`
	MQTT        MQTT      `yaml:"mqtt"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

// Inference points at the predictive model service.
type Inference struct {
	URL     string        `yaml:"url" env:"INFERENCE_URL" env-default:"http://localhost:5000"`
	Timeout time.Duration `yaml:"timeout" env-default:"5s"`
}

// Hardware points at the serial sensor bridge.
type Hardware struct {
	URL          string        `yaml:"url" env:"HARDWARE_URL" env-default:"http://localhost:5000"`
	Timeout      time.Duration `yaml:"timeout" env-default:"10s"`
	PollInterval time.Duration `yaml:"poll_interval" env-default:"500ms"`
}

type Session struct {
	LockTTL time.Duration `yaml:"lock_ttl" env-default:"2h"`
	Tick    time.Duration `yaml:"tick" env-default:"1s"`
}

type Finalizer struct {
	MaxAttempts     uint64        `yaml:"max_attempts" env-default:"5"`
	InitialInterval time.Duration `yaml:"initial_interval" env-default:"200ms"`
	MaxInterval     time.Duration `yaml:"max_interval" env-default:"3s"`
}

// MQTT is optional; an empty broker disables the live monitor subscriber.
type MQTT struct {
	Broker      string `yaml:"broker" env:"MQTT_BROKER"`
	ClientID    string `yaml:"client_id" env-default:"clinic-session-service"`
	Username    string `yaml:"username" env:"MQTT_USERNAME"`
	Password    string `yaml:"password" env:"MQTT_PASSWORD"`
	TopicPrefix string `yaml:"topic_prefix" env-default:"monitor"`
	QoS         byte   `yaml:"qos" env-default:"1"`
}

func MustLoad() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("Config file does not exist: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}

	return cfg
}

func Load(configPath string) (*Config, error) {
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
