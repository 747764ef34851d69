package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string     `yaml:"log-level" env:"CMIUC_LOG_LEVEL" env-default:"info"`
	Stomp      Stomp      `yaml:"stomp"`
	Reconnect  Reconnect  `yaml:"reconnect"`
	Redis      Redis      `yaml:"redis"`
	Credential Credential `yaml:"credential"`
	Status     Status     `yaml:"status"`
}

type Stomp struct {
	Endpoint  string        `yaml:"endpoint" env:"CMIUC_STOMP_ENDPOINT" env-default:"ws://localhost:8081/ws-stomp"`
	Host      string        `yaml:"host" env:"CMIUC_STOMP_HOST" env-default:"localhost"`
	HeartBeat time.Duration `yaml:"heart-beat" env:"CMIUC_STOMP_HEART_BEAT" env-default:"10s"`
	Receipts  bool          `yaml:"receipts" env:"CMIUC_STOMP_RECEIPTS" env-default:"false"`
}

type Reconnect struct {
	InitialInterval time.Duration `yaml:"initial-interval" env:"CMIUC_RECONNECT_INITIAL_INTERVAL" env-default:"500ms"`
	MaxInterval     time.Duration `yaml:"max-interval" env:"CMIUC_RECONNECT_MAX_INTERVAL" env-default:"10s"`
	MaxElapsedTime  time.Duration `yaml:"max-elapsed-time" env:"CMIUC_RECONNECT_MAX_ELAPSED_TIME" env-default:"1m"`
}

type Redis struct {
	Host string `yaml:"host" env:"CMIUC_REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"CMIUC_REDIS_PORT" env-default:"6379"`
}

type Credential struct {
	Key string `yaml:"key" env:"CMIUC_CREDENTIAL_KEY" env-default:"accessToken"`
}

type Status struct {
	Addr string `yaml:"addr" env:"CMIUC_STATUS_ADDR" env-default:""`
}

// Load reads the YAML file at path when it exists and falls back to the environment otherwise.
func Load(path string) (*Config, error) {
	config := &Config{}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err = cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("unable to read config from env: %w", err)
		}

		return config, nil
	}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	return config, nil
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
