package config

import (
	"encoding/json"
	"os"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.Port != 8000 {
		t.Errorf("Port: got %d, want 8000", cfg.Port)
	}
	if cfg.BindAddress != "127.0.0.1" {
		t.Errorf("BindAddress: got %s", cfg.BindAddress)
	}
	if cfg.AllowedOrigin != "http://localhost:3000" {
		t.Errorf("AllowedOrigin: got %s", cfg.AllowedOrigin)
	}
	if cfg.TempDir != "temp" {
		t.Errorf("TempDir: got %s", cfg.TempDir)
	}
	if cfg.OllamaEndpoint != "http://localhost:11434" {
		t.Errorf("OllamaEndpoint: got %s", cfg.OllamaEndpoint)
	}
	if cfg.OllamaModel == "" {
		t.Error("OllamaModel should have a default")
	}
	if cfg.DetectTimeoutSecs != 120 {
		t.Errorf("DetectTimeoutSecs: got %d, want 120", cfg.DetectTimeoutSecs)
	}
	if cfg.DetectionCacheSize != 2048 {
		t.Errorf("DetectionCacheSize: got %d, want 2048", cfg.DetectionCacheSize)
	}
	if cfg.MaxUploadMB != 50 {
		t.Errorf("MaxUploadMB: got %d, want 50", cfg.MaxUploadMB)
	}
	if cfg.MaxConns != 32 {
		t.Errorf("MaxConns: got %d, want 32", cfg.MaxConns)
	}
	if cfg.OutputTTLSecs != 3600 {
		t.Errorf("OutputTTLSecs: got %d, want 3600", cfg.OutputTTLSecs)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel: got %s", cfg.LogLevel)
	}
}

func TestLoadEnv_Port(t *testing.T) {
	t.Setenv("PORT", "9000")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.Port != 9000 {
		t.Errorf("Port: got %d, want 9000", cfg.Port)
	}
}

func TestLoadEnv_PortInvalidIgnored(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.Port != 8000 {
		t.Errorf("invalid PORT should keep default, got %d", cfg.Port)
	}
}

func TestLoadEnv_AllowedOrigin(t *testing.T) {
	t.Setenv("ALLOWED_ORIGIN", "https://anonymizer.example.com")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.AllowedOrigin != "https://anonymizer.example.com" {
		t.Errorf("AllowedOrigin: got %s", cfg.AllowedOrigin)
	}
}

func TestLoadEnv_OllamaSettings(t *testing.T) {
	t.Setenv("OLLAMA_ENDPOINT", "http://remote:11434")
	t.Setenv("OLLAMA_MODEL", "llama3.2:1b")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.OllamaEndpoint != "http://remote:11434" {
		t.Errorf("OllamaEndpoint: got %s", cfg.OllamaEndpoint)
	}
	if cfg.OllamaModel != "llama3.2:1b" {
		t.Errorf("OllamaModel: got %s", cfg.OllamaModel)
	}
}

func TestLoadEnv_DetectTimeoutZeroDisables(t *testing.T) {
	t.Setenv("DETECT_TIMEOUT_SECS", "0")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.DetectTimeoutSecs != 0 {
		t.Errorf("DetectTimeoutSecs: got %d, want 0", cfg.DetectTimeoutSecs)
	}
}

func TestLoadFile_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/anonymizer-config.json"

	fileCfg := map[string]any{
		"port":          9100,
		"tempDir":       "/var/anonymizer/tmp",
		"allowedOrigin": "http://localhost:4000",
		"outputTTLSecs": 60,
	}
	data, err := json.Marshal(fileCfg)
	if err != nil {
		t.Fatalf("marshal test config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write test config: %v", err)
	}

	cfg := defaults()
	loadFile(cfg, path)

	if cfg.Port != 9100 {
		t.Errorf("Port: got %d, want 9100", cfg.Port)
	}
	if cfg.TempDir != "/var/anonymizer/tmp" {
		t.Errorf("TempDir: got %s", cfg.TempDir)
	}
	if cfg.AllowedOrigin != "http://localhost:4000" {
		t.Errorf("AllowedOrigin: got %s", cfg.AllowedOrigin)
	}
	if cfg.OutputTTLSecs != 60 {
		t.Errorf("OutputTTLSecs: got %d, want 60", cfg.OutputTTLSecs)
	}
	// Untouched fields keep their defaults.
	if cfg.OllamaEndpoint != "http://localhost:11434" {
		t.Errorf("OllamaEndpoint changed unexpectedly: %s", cfg.OllamaEndpoint)
	}
}

func TestLoadFile_MissingFileKeepsDefaults(t *testing.T) {
	cfg := defaults()
	loadFile(cfg, t.TempDir()+"/does-not-exist.json")
	if cfg.Port != 8000 {
		t.Errorf("Port changed on missing file: %d", cfg.Port)
	}
}

func TestLoadFile_MalformedFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/bad.json"
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write bad config: %v", err)
	}
	cfg := defaults()
	loadFile(cfg, path)
	if cfg.Port != 8000 {
		t.Errorf("Port changed on malformed file: %d", cfg.Port)
	}
}

func TestEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/anonymizer-config.json"
	if err := os.WriteFile(path, []byte(`{"port": 9100}`), 0o600); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	t.Setenv("PORT", "9200")

	cfg := defaults()
	loadFile(cfg, path)
	loadEnv(cfg)

	if cfg.Port != 9200 {
		t.Errorf("env should win over file: got %d, want 9200", cfg.Port)
	}
}
