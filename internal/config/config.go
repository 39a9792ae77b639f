/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables (optionally seeded from a .env file) are treated as read-only overrides.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type ExtractionConfig struct {
	URL       string `yaml:"url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // "file" | "sqlite" | "postgres"
	Dir    string `yaml:"dir"`
	DSN    string `yaml:"dsn"`
}

type RenderConfig struct {
	FontPath     string  `yaml:"font_path"`
	FontSizePt   float64 `yaml:"font_size_pt"`
	PixelRatio   float64 `yaml:"pixel_ratio"`
	ExportTarget string  `yaml:"export_target"` // "compact" (1080) | "print" (1123)
	FetchRemote  bool    `yaml:"fetch_remote_images"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int              `yaml:"config_version"`
	Extraction    ExtractionConfig `yaml:"extraction"`
	Storage       StorageConfig    `yaml:"storage"`
	Render        RenderConfig     `yaml:"render"`
	Server        ServerConfig     `yaml:"server"`
	Logging       LoggingConfig    `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Extraction:    ExtractionConfig{URL: "http://localhost:54321/functions/v1/process-lesson", TimeoutMs: 120000},
		Storage:       StorageConfig{Driver: "file", Dir: ""},
		Render:        RenderConfig{FontSizePt: 11, PixelRatio: 2, ExportTarget: "compact"},
		Server:        ServerConfig{Addr: ":8080"},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvExtractionURL     = "LP_EXTRACTION_URL"
	EnvExtractionTimeout = "LP_EXTRACTION_TIMEOUT_MS"
	EnvExtractionToken   = "LP_EXTRACTION_TOKEN"
	EnvStorageDriver     = "LP_STORAGE_DRIVER"
	EnvStorageDir        = "LP_STORAGE_DIR"
	EnvStorageDSN        = "LP_DATABASE_URL"
	EnvFontPath          = "LP_FONT_PATH"
	EnvPixelRatio        = "LP_PIXEL_RATIO"
	EnvExportTarget      = "LP_EXPORT_TARGET"
	EnvServerAddr        = "LP_ADDR"
	EnvLogLevel          = "LP_LOG_LEVEL"
	EnvLogFormat         = "LP_LOG_FORMAT"
	EnvLogSource         = "LP_LOG_SOURCE"
	EnvLogFile           = "LP_LOG_FILE"
	// EnvConfigPath points Load/Save at an explicit file (tests, containers).
	EnvConfigPath = "LP_CONFIG"
)

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "LessonPrep")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "LessonPrep")
	default:
		base = filepath.Join(os.Getenv("HOME"), ".config", "lessonprep")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, loads .env from the
// working directory and merges environment overrides. The extraction token is resolved
// from the environment first, then from the OS keychain, and returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	// .env never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, "", err
	}
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	if tok := strings.TrimSpace(os.Getenv(EnvExtractionToken)); tok != "" {
		return cfg, tok, nil
	}
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into the OS keychain (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if v := strings.TrimSpace(src.Extraction.URL); v != "" {
		dst.Extraction.URL = v
	}
	if src.Extraction.TimeoutMs > 0 {
		dst.Extraction.TimeoutMs = src.Extraction.TimeoutMs
	}
	if v := strings.ToLower(strings.TrimSpace(src.Storage.Driver)); v != "" {
		dst.Storage.Driver = v
	}
	if v := strings.TrimSpace(src.Storage.Dir); v != "" {
		dst.Storage.Dir = v
	}
	if v := strings.TrimSpace(src.Storage.DSN); v != "" {
		dst.Storage.DSN = v
	}
	if v := strings.TrimSpace(src.Render.FontPath); v != "" {
		dst.Render.FontPath = v
	}
	if src.Render.FontSizePt > 0 {
		dst.Render.FontSizePt = src.Render.FontSizePt
	}
	if src.Render.PixelRatio > 0 {
		dst.Render.PixelRatio = src.Render.PixelRatio
	}
	if v := strings.ToLower(strings.TrimSpace(src.Render.ExportTarget)); v != "" {
		dst.Render.ExportTarget = v
	}
	dst.Render.FetchRemote = src.Render.FetchRemote
	if v := strings.TrimSpace(src.Server.Addr); v != "" {
		dst.Server.Addr = v
	}
	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	dst.Logging.Source = src.Logging.Source
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvExtractionURL)); v != "" {
		cfg.Extraction.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvExtractionTimeout)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Extraction.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDriver)); v != "" {
		cfg.Storage.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDir)); v != "" {
		cfg.Storage.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDSN)); v != "" {
		cfg.Storage.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvFontPath)); v != "" {
		cfg.Render.FontPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPixelRatio)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Render.PixelRatio = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportTarget)); v != "" {
		cfg.Render.ExportTarget = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"extraction.url":        EnvExtractionURL,
		"extraction.timeout_ms": EnvExtractionTimeout,
		"storage.driver":        EnvStorageDriver,
		"storage.dir":           EnvStorageDir,
		"storage.dsn":           EnvStorageDSN,
		"render.font_path":      EnvFontPath,
		"render.pixel_ratio":    EnvPixelRatio,
		"render.export_target":  EnvExportTarget,
		"server.addr":           EnvServerAddr,
		"logging.level":         EnvLogLevel,
		"logging.format":        EnvLogFormat,
		"logging.source":        EnvLogSource,
		"logging.file":          EnvLogFile,
	}
	env, ok := names[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout returns the extraction request timeout.
func (e ExtractionConfig) Timeout() time.Duration {
	if e.TimeoutMs <= 0 {
		return time.Duration(Defaults().Extraction.TimeoutMs) * time.Millisecond
	}
	return time.Duration(e.TimeoutMs) * time.Millisecond
}

// StorageDir resolves the directory used by the file and sqlite stores.
func (s StorageConfig) StorageDir() string {
	if s.Dir != "" {
		return s.Dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "lessonprep")
	}
	return filepath.Join(os.TempDir(), "lessonprep")
}
