package commands

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config of the chat CLI. Flags take precedence over the environment.
type Config struct {
	Addr        string `envconfig:"CHAT_ADDR" default:"localhost:8080"`
	Identity    string `envconfig:"CHAT_IDENTITY"`
	DisplayName string `envconfig:"CHAT_DISPLAY_NAME"`
	LogLevel    string `envconfig:"CHAT_LOG_LEVEL" default:"ERROR"`
	// CHAT_COLOURS enables colorized output
	Colours bool `envconfig:"CHAT_COLOURS" default:"true"`
}

// LoadConfig reads an optional .env file then the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
