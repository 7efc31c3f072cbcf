package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Env string `yaml:"env"` // "production" switches to JSON logs
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz Quiz `yaml:"quiz"`
}

// Quiz configures every session the server starts.
type Quiz struct {
	Questions          int    `yaml:"questions"`
	SecondsPerQuestion int    `yaml:"seconds_per_question"`
	ImagePattern       string `yaml:"image_pattern"`
	Options            []int  `yaml:"options"`
	AnswerKey          string `yaml:"answer_key"`        // path, http(s) URL, or stored key ref
	AnswerKeySource    string `yaml:"answer_key_source"` // "file" or "postgres"
	AnswerKeyDir       string `yaml:"answer_key_dir"`
	KeyTTL             string `yaml:"key_ttl"`
	KeyFetchTimeout    string `yaml:"key_fetch_timeout"`
	ReportFormat       string `yaml:"report_format"` // "guessed" or "plain"
	ReportDir          string `yaml:"report_dir"`
	Retention          string `yaml:"retention"`
	ReportRetention    string `yaml:"report_retention"` // how long the in-memory report copy stays downloadable
	ReapInterval       string `yaml:"reap_interval"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Env = "development"
	cfg.Quiz = Quiz{
		Questions:          120,
		SecondsPerQuestion: 60,
		ImagePattern:       "questions/%d.JPG",
		Options:            []int{1, 2, 3, 4},
		AnswerKey:          "answers.txt",
		AnswerKeySource:    "file",
		ReportFormat:       "guessed",
	}
	return cfg
}

// Load reads YAML config from path on top of Default. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
