package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"` // postgres only
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	OpenAI struct {
		APIKey      string `yaml:"apiKey"`
		Model       string `yaml:"model"`
		VisionModel string `yaml:"visionModel"`
	} `yaml:"openai"`

	Pipeline struct {
		Workers            int     `yaml:"workers"`
		MinCharsPerPage    int     `yaml:"minCharsPerPage"`
		MinOCRConfidence   float64 `yaml:"minOCRConfidence"`
		VendorPageFraction float64 `yaml:"vendorPageFraction"`
		SectionStride      int     `yaml:"sectionStride"`
		TokenBudget        int     `yaml:"tokenBudget"` // 0 = unlimited
		StageTimeoutSec    int     `yaml:"stageTimeoutSec"`
		GlobalTimeoutSec   int     `yaml:"globalTimeoutSec"`
		RetryAttempts      int     `yaml:"retryAttempts"`
		WorkDir            string  `yaml:"workDir"`
		OCRLanguage        string  `yaml:"ocrLanguage"`
	} `yaml:"pipeline"`

	Thresholds struct {
		Version   string             `yaml:"version"`
		Overrides map[string]float64 `yaml:"overrides"` // detector id → threshold
	} `yaml:"thresholds"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`
}

// Load baca file config.yaml
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.VisionModel == "" {
		c.OpenAI.VisionModel = "gpt-4o"
	}
	p := &c.Pipeline
	if p.Workers <= 0 {
		p.Workers = 4
	}
	if p.MinCharsPerPage <= 0 {
		p.MinCharsPerPage = 200
	}
	if p.MinOCRConfidence <= 0 {
		p.MinOCRConfidence = 0.5
	}
	if p.VendorPageFraction <= 0 {
		p.VendorPageFraction = 0.1
	}
	if p.SectionStride <= 0 {
		p.SectionStride = 6
	}
	if p.StageTimeoutSec <= 0 {
		p.StageTimeoutSec = 300
	}
	if p.GlobalTimeoutSec <= 0 {
		p.GlobalTimeoutSec = 900
	}
	if p.RetryAttempts <= 0 {
		p.RetryAttempts = 3
	}
	if p.WorkDir == "" {
		p.WorkDir = "./temp"
	}
	if p.OCRLanguage == "" {
		p.OCRLanguage = "eng"
	}
	if c.Thresholds.Version == "" {
		c.Thresholds.Version = "v1"
	}
	if c.RateLimit.Capacity <= 0 {
		c.RateLimit.Capacity = 30
	}
	if c.RateLimit.RefillRate <= 0 {
		c.RateLimit.RefillRate = 5
	}
}

// StageTimeout durasi per pipeline stage
func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Pipeline.StageTimeoutSec) * time.Second
}

// GlobalTimeout durasi maksimum satu analysis run
func (c *Config) GlobalTimeout() time.Duration {
	return time.Duration(c.Pipeline.GlobalTimeoutSec) * time.Second
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		ssl,
	)
}
