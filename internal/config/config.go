package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string  `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	ListenAddr string  `yaml:"listen-addr" env:"GAME_SERVER_ADDR" env-default:""`
	SocketPort string  `yaml:"socket-port" env:"GAME_SERVER_PORT" env-default:"10801"`
	HTTPPort   string  `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	TokenKey   string  `yaml:"token-key" env:"GAME_TOKEN_KEY" env-default:""`
	Storage    Storage `yaml:"storage"`
	Redis      Redis   `yaml:"redis"`
}

// Storage selects the session store backend: "memory" (default) keeps
// sessions in process, "redis" shares them across processes.
type Storage struct {
	Type string `yaml:"type" env:"STORAGE_TYPE" env-default:"memory"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// MustLoad - load all configurations from the config file with environment
// overrides.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
