package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env          string `yaml:"env" env-default:"local"`
	JWTSecret    string `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	IngestSecret string `yaml:"ingest_secret" env:"INGEST_HMAC_SECRET" env-required:"true"`
	Dispatcher   `yaml:"dispatcher"`
	RabbitMQ     `yaml:"rabbitmq"`
	Postgres     `yaml:"postgres"`
	HTTPServer   `yaml:"http_server"`
	Redis        `yaml:"redis"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Postgres struct {
	Host     string `yaml:"host" env-default:"postgres"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"password" env-required:"true"`
	DBName   string `yaml:"dbname" env-required:"true"`
	SSLMode  string `yaml:"sslmode" env-default:"disabled"`
}

type RabbitMQ struct {
	URL            string `yaml:"url" env-required:"true"`
	TaskQueue      string `yaml:"task_queue" env-default:"parse_tasks"`
	ResultQueue    string `yaml:"result_queue" env-default:"parse_results"`
	WorkerPoolSize int    `yaml:"worker_pool_size" env-default:"10"`
}

type Dispatcher struct {
	PollInterval time.Duration `yaml:"poll_interval" env-default:"1m"`
	BatchSize    int           `yaml:"batch_size" env-default:"50"`
}

type Redis struct {
	Addr       string        `yaml:"addr" env-default:"redis:6379"`
	Db         int           `yaml:"db" env-default:"1"`
	DefaultTTL time.Duration `yaml:"default_ttl" env-default:"1m"`
}

func MustLoad(configPath string) *Config {
	// проверка существования файла
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", configPath)
	}

	return &cfg
}
