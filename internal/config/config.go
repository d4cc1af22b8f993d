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

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Editor        EditorConfig  `yaml:"editor"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
	// BackupKeep is how many manifest backups survive a prune run.
	BackupKeep int `yaml:"backup_keep"`
	// BackupPrune is a cron expression; empty disables pruning.
	BackupPrune string `yaml:"backup_prune"`
}

// EditorConfig tunes the canvas interaction engine.
type EditorConfig struct {
	GridSize        float64 `yaml:"grid_size"`
	DebounceMs      int     `yaml:"debounce_ms"`
	MinImageSize    float64 `yaml:"min_image_size"`
	MinTextSize     float64 `yaml:"min_text_size"`
	MinScale        float64 `yaml:"min_scale"`
	MaxScale        float64 `yaml:"max_scale"`
	GesturesEnabled bool    `yaml:"gestures_enabled"`
	ReadOnly        bool    `yaml:"read_only"`
	LockImageAspect bool    `yaml:"lock_image_aspect"`
	SmartGuides     bool    `yaml:"smart_guides"`
	PanThreshold    float64 `yaml:"pan_threshold"`
}

// Backend kinds.
const (
	BackendManifest = "manifest"
	BackendSQLite   = "sqlite"
	BackendHTTP     = "http"
	BackendPostgres = "postgres"
)

type BackendConfig struct {
	Kind        string `yaml:"kind"`
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	DSN         string `yaml:"dsn"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Theme: "system", BackupKeep: 20, BackupPrune: "@hourly"},
		Editor: EditorConfig{
			GridSize:        10,
			DebounceMs:      400,
			MinImageSize:    50,
			MinTextSize:     20,
			MinScale:        0.5,
			MaxScale:        3,
			GesturesEnabled: true,
			LockImageAspect: true,
			SmartGuides:     false,
			PanThreshold:    5,
		},
		Backend: BackendConfig{Kind: BackendManifest, BaseURL: "http://localhost:8080", TimeoutMs: 15000},
		Logging: LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvBackendKind      = "PAGECRAFT_BACKEND"
	EnvBackendURL       = "PAGECRAFT_BACKEND_URL"
	EnvBackendTimeoutMs = "PAGECRAFT_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "PAGECRAFT_TLS_INSECURE"
	EnvPGDSN            = "PAGECRAFT_PG_DSN"
	EnvTelemetryOptIn   = "PAGECRAFT_TELEMETRY_OPT_IN"
	EnvGridSize         = "PAGECRAFT_GRID_SIZE"
	EnvDebounceMs       = "PAGECRAFT_DEBOUNCE_MS"
	EnvReadOnly         = "PAGECRAFT_READ_ONLY"
	EnvGestures         = "PAGECRAFT_GESTURES"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "PAGECRAFT_LOG_LEVEL"
	EnvLogFormat = "PAGECRAFT_LOG_FORMAT"
	EnvLogSource = "PAGECRAFT_LOG_SOURCE"
	EnvLogFile   = "PAGECRAFT_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "Pagecraft"
	keyringToken   = "backend_token"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Pagecraft")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Pagecraft")
	default: // linux and others
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "pagecraft")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "pagecraft")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the backend token from keyring (not kept inside the struct; returned separately).
// A missing keyring entry or an unavailable keyring yields an empty token.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
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
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into OS keyring (if non-empty).
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

// ForgetToken removes the backend token from the keyring.
func ForgetToken() error {
	err := tokenStore.Delete(keyringService, keyringToken)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	if src.General.BackupKeep > 0 {
		dst.General.BackupKeep = src.General.BackupKeep
	}
	if p := strings.TrimSpace(src.General.BackupPrune); p != "" {
		dst.General.BackupPrune = p
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn

	// editor
	e, se := &dst.Editor, src.Editor
	if se.GridSize > 0 {
		e.GridSize = se.GridSize
	}
	if se.DebounceMs > 0 {
		e.DebounceMs = se.DebounceMs
	}
	if se.MinImageSize > 0 {
		e.MinImageSize = se.MinImageSize
	}
	if se.MinTextSize > 0 {
		e.MinTextSize = se.MinTextSize
	}
	if se.MinScale > 0 {
		e.MinScale = se.MinScale
	}
	if se.MaxScale > 0 {
		e.MaxScale = se.MaxScale
	}
	if se.PanThreshold > 0 {
		e.PanThreshold = se.PanThreshold
	}
	e.GesturesEnabled = se.GesturesEnabled
	e.ReadOnly = se.ReadOnly
	e.LockImageAspect = se.LockImageAspect
	e.SmartGuides = se.SmartGuides

	if k := strings.ToLower(strings.TrimSpace(src.Backend.Kind)); k != "" {
		dst.Backend.Kind = k
	}
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	if src.Backend.DSN != "" {
		dst.Backend.DSN = src.Backend.DSN
	}
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBackendKind)); v != "" {
		cfg.Backend.Kind = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTLSInsec)); v != "" {
		cfg.Backend.TLSInsecure = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvPGDSN)); v != "" {
		cfg.Backend.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvGridSize)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Editor.GridSize = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvDebounceMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Editor.DebounceMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvReadOnly)); v != "" {
		cfg.Editor.ReadOnly = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvGestures)); v != "" {
		cfg.Editor.GesturesEnabled = truthy(v)
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"backend.kind":             EnvBackendKind,
	"backend.base_url":         EnvBackendURL,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"backend.tls_insecure":     EnvBackendTLSInsec,
	"backend.dsn":              EnvPGDSN,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"editor.grid_size":         EnvGridSize,
	"editor.debounce_ms":       EnvDebounceMs,
	"editor.read_only":         EnvReadOnly,
	"editor.gestures_enabled":  EnvGestures,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Timeout returns the backend request timeout.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// Debounce returns the commit debounce delay.
func (e EditorConfig) Debounce() time.Duration {
	if e.DebounceMs <= 0 {
		return time.Duration(Defaults().Editor.DebounceMs) * time.Millisecond
	}
	return time.Duration(e.DebounceMs) * time.Millisecond
}
