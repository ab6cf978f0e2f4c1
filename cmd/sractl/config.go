package main

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pyropy/softraid/core/constants"
)

type Config struct {
	Store struct {
		Path string `envconfig:"SRACTL_STORE" default:"data"`
	}
	Volume struct {
		MaxRequests     int `envconfig:"SRACTL_MAX_REQUESTS" default:"64"`
		MaxRequestBytes int `envconfig:"SRACTL_MAX_REQUEST_BYTES" default:"1048576"`
		BlockSize       int `envconfig:"SRACTL_BLOCK_SIZE" default:"512"`
	}
	Device struct {
		Workers int `envconfig:"SRACTL_DEVICE_WORKERS" default:"4"`
	}
}

func GetConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Device.Workers <= 0 {
		cfg.Device.Workers = constants.DEFAULT_DEVICE_WORKERS
	}

	return &cfg, nil
}
