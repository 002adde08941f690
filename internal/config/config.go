// Package config loads and holds all anonymizer service configuration.
// Settings are read from defaults first, then anonymizer-config.json,
// then environment variables. Environment wins.
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
)

// Config holds the full service configuration.
type Config struct {
	Port        int    `json:"port"`
	BindAddress string `json:"bindAddress"`

	// AllowedOrigin is the single browser origin permitted by CORS.
	AllowedOrigin string `json:"allowedOrigin"`

	// TempDir holds per-request input/output files. Created at startup
	// if absent.
	TempDir string `json:"tempDir"`

	// OllamaEndpoint and OllamaModel select the NER model backend.
	OllamaEndpoint string `json:"ollamaEndpoint"`
	OllamaModel    string `json:"ollamaModel"`

	// DetectTimeoutSecs bounds one model inference pass. 0 disables the
	// timeout; a slow inference then blocks its request indefinitely.
	DetectTimeoutSecs int `json:"detectTimeoutSecs"`

	// DetectionCachePath is the bbolt file for cached model detections.
	// Empty keeps the cache in memory only.
	DetectionCachePath string `json:"detectionCachePath"`
	// DetectionCacheSize bounds the number of cached documents.
	DetectionCacheSize int `json:"detectionCacheSize"`

	// MaxUploadMB limits the size of one uploaded PDF.
	MaxUploadMB int `json:"maxUploadMB"`

	// MaxConns caps concurrent client connections. Model inference blocks
	// a request start to finish, so accepted connections pile up otherwise.
	MaxConns int `json:"maxConns"`

	// OutputTTLSecs controls the background sweep of redacted output files
	// left behind for streaming. 0 disables sweeping and outputs accumulate.
	OutputTTLSecs int `json:"outputTTLSecs"`

	LogLevel string `json:"logLevel"`
}

// Load returns config with defaults overridden by anonymizer-config.json
// and env vars.
func Load() *Config {
	cfg := defaults()
	loadFile(cfg, "anonymizer-config.json")
	loadEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		Port:               8000,
		BindAddress:        "127.0.0.1",
		AllowedOrigin:      "http://localhost:3000",
		TempDir:            "temp",
		OllamaEndpoint:     "http://localhost:11434",
		OllamaModel:        "qwen2.5:3b",
		DetectTimeoutSecs:  120,
		DetectionCachePath: "",
		DetectionCacheSize: 2048,
		MaxUploadMB:        50,
		MaxConns:           32,
		OutputTTLSecs:      3600,
		LogLevel:           "info",
	}
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // file is optional
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
	} else {
		log.Printf("[CONFIG] Loaded %s", path)
	}
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("BIND_ADDRESS"); v != "" {
		cfg.BindAddress = v
	}
	if v := os.Getenv("ALLOWED_ORIGIN"); v != "" {
		cfg.AllowedOrigin = v
	}
	if v := os.Getenv("TEMP_DIR"); v != "" {
		cfg.TempDir = v
	}
	if v := os.Getenv("OLLAMA_ENDPOINT"); v != "" {
		cfg.OllamaEndpoint = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.OllamaModel = v
	}
	if v := os.Getenv("DETECT_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DetectTimeoutSecs = n
		}
	}
	if v := os.Getenv("DETECTION_CACHE_PATH"); v != "" {
		cfg.DetectionCachePath = v
	}
	if v := os.Getenv("DETECTION_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DetectionCacheSize = n
		}
	}
	if v := os.Getenv("MAX_UPLOAD_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxUploadMB = n
		}
	}
	if v := os.Getenv("MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConns = n
		}
	}
	if v := os.Getenv("OUTPUT_TTL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OutputTTLSecs = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
