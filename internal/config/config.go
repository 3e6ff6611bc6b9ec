package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env-default:"8080"`
}

type MongoConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"true"`
	Host     string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env-default:""`
	Database string `yaml:"database" env-default:"churchreg"`
}

type RegistrationConfig struct {
	// BaseUrl is the public address encoded into printed QR codes.
	BaseUrl string `yaml:"base_url" env-default:"http://localhost:8080"`
	// TokenLength is the number of alphanumeric characters in a token code.
	TokenLength int `yaml:"token_length" env-default:"8"`
	// TokenAttempts bounds collision retries during token generation.
	TokenAttempts int `yaml:"token_attempts" env-default:"5"`
	// BulkLimit caps in-flight approvals during a bulk request.
	BulkLimit int `yaml:"bulk_limit" env-default:"4"`
}

type Config struct {
	Registration RegistrationConfig `yaml:"registration"`
	Mongo        MongoConfig        `yaml:"mongo"`
	Listen       Listen             `yaml:"listen"`
	Env          string             `yaml:"env" env-default:"local"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
