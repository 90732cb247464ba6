package config

import (
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr         string        `yaml:"addr"`
	PublicURL    string        `yaml:"public-url"`
	Capacity     int           `yaml:"capacity"`
	FetchTimeout time.Duration `yaml:"fetch-timeout"`
	Disk         *Disk         `yaml:"disk"`
	Backend      *Backend      `yaml:"backend"`
	S3           *S3           `yaml:"s3"`
	Rules        []Rule        `yaml:"rules"`
}

// Disk switches the blob store from memory to the given directory.
type Disk struct {
	Dir          string `yaml:"dir"`
	Limit        string `yaml:"limit"`
	CleanOnStart *bool  `yaml:"clean-on-start"`
}

// ShouldCleanOnStart defaults to true since handles never survive a restart.
func (disk *Disk) ShouldCleanOnStart() bool {
	if disk.CleanOnStart == nil {
		return true
	}

	return *disk.CleanOnStart
}

type Backend struct {
	BaseURL string `yaml:"base-url"`
	Token   string `yaml:"token"`
}

type S3 struct {
	Endpoint        string        `yaml:"endpoint"`
	Region          string        `yaml:"region"`
	AccessKeyID     string        `yaml:"access-key-id"`
	AccessKeySecret string        `yaml:"access-key-secret"`
	Expires         time.Duration `yaml:"expires"`
}

type Rule struct {
	Pattern          string   `yaml:"pattern"`
	IgnoreParameters []string `yaml:"ignore-parameters"`
}

func Parse(r io.Reader) (*Config, error) {
	var config Config

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
