package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// RecognizerConfig describes the external speech-recognition capability.
// The locale is fixed at configuration time; the runtime never switches
// languages mid-session.
type RecognizerConfig struct {
	Mode           string `yaml:"mode"` // none, mock, exec, bus
	Command        string `yaml:"command"`
	Locale         string `yaml:"locale"`
	Continuous     bool   `yaml:"continuous"`
	InterimResults bool   `yaml:"interim_results"`
}

// DisplayConfig sizes the caption viewport in pixels and maps terminal cells
// to pixels for the TUI front-end.
type DisplayConfig struct {
	ViewportWidth  int `yaml:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height"`
	CellWidth      int `yaml:"cell_width"`
	CellHeight     int `yaml:"cell_height"`
}

type TimelineConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Recognizer  RecognizerConfig `yaml:"recognizer"`
	Display     DisplayConfig    `yaml:"display"`
	Timeline    TimelineConfig   `yaml:"timeline"`
}

func Default() Config {
	return Config{
		RuntimeName: "caption-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Recognizer: RecognizerConfig{
			Mode:           "mock",
			Locale:         "ko-KR",
			Continuous:     true,
			InterimResults: true,
		},
		Display: DisplayConfig{
			ViewportWidth:  1280,
			ViewportHeight: 720,
			CellWidth:      9,
			CellHeight:     18,
		},
		Timeline: TimelineConfig{
			Path:          "./data/caption-timeline.db",
			RetentionMode: "ephemeral",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "CAPTION_RUNTIME_NAME")
	overrideString(&cfg.Environment, "CAPTION_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "CAPTION_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "CAPTION_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "CAPTION_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "CAPTION_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "CAPTION_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "CAPTION_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "CAPTION_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "CAPTION_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "CAPTION_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "CAPTION_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "CAPTION_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "CAPTION_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "CAPTION_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Recognizer.Mode, "CAPTION_RECOGNIZER_MODE")
	overrideString(&cfg.Recognizer.Command, "CAPTION_RECOGNIZER_COMMAND")
	overrideString(&cfg.Recognizer.Locale, "CAPTION_RECOGNIZER_LOCALE")
	overrideBool(&cfg.Recognizer.Continuous, "CAPTION_RECOGNIZER_CONTINUOUS")
	overrideBool(&cfg.Recognizer.InterimResults, "CAPTION_RECOGNIZER_INTERIM_RESULTS")
	overrideInt(&cfg.Display.ViewportWidth, "CAPTION_DISPLAY_VIEWPORT_WIDTH")
	overrideInt(&cfg.Display.ViewportHeight, "CAPTION_DISPLAY_VIEWPORT_HEIGHT")
	overrideInt(&cfg.Display.CellWidth, "CAPTION_DISPLAY_CELL_WIDTH")
	overrideInt(&cfg.Display.CellHeight, "CAPTION_DISPLAY_CELL_HEIGHT")
	overrideString(&cfg.Timeline.Path, "CAPTION_TIMELINE_PATH")
	overrideString(&cfg.Timeline.RetentionMode, "CAPTION_TIMELINE_RETENTION_MODE")
	overrideInt(&cfg.Timeline.RetentionDays, "CAPTION_TIMELINE_RETENTION_DAYS")
	overrideInt(&cfg.Timeline.MaxSessions, "CAPTION_TIMELINE_MAX_SESSIONS")
	overrideBool(&cfg.Timeline.VacuumOnStart, "CAPTION_TIMELINE_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Recognizer.Mode {
	case "none", "mock", "exec", "bus":
	default:
		return errors.New("recognizer.mode must be one of none|mock|exec|bus")
	}
	if cfg.Recognizer.Mode == "exec" && cfg.Recognizer.Command == "" {
		return errors.New("recognizer.command must be set when mode=exec")
	}
	if cfg.Recognizer.Mode != "none" && cfg.Recognizer.Locale == "" {
		return errors.New("recognizer.locale must not be empty")
	}
	if cfg.Display.ViewportWidth <= 0 || cfg.Display.ViewportHeight <= 0 {
		return errors.New("display viewport dimensions must be positive")
	}
	if cfg.Display.CellWidth <= 0 || cfg.Display.CellHeight <= 0 {
		return errors.New("display cell dimensions must be positive")
	}
	if cfg.Timeline.Path == "" {
		return errors.New("timeline.path must not be empty")
	}
	switch cfg.Timeline.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("timeline.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Timeline.RetentionDays < 0 {
		return errors.New("timeline.retention_days must be >= 0")
	}
	return nil
}
