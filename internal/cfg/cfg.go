package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DataMode selects whether the dashboard serves local fixtures or polls
// the live ChakraOps backend.
const (
	ModeMock = "MOCK"
	ModeLive = "LIVE"
)

type Settings struct {
	BaseURL      string
	APIKey       string
	DataMode     string
	TriggerToken string
	DataPath     string
	ListenPort   int
	MetricsPort  int
	RESTTimeout  time.Duration
	PollInterval time.Duration
	BackoffPoll  time.Duration
	SnapshotPoll time.Duration
	DevProxy     bool
}

type ConfigFile struct {
	API struct {
		BaseURL      string `yaml:"baseURL"`
		Key          string `yaml:"key"`
		TriggerToken string `yaml:"triggerToken"`
	} `yaml:"api"`

	Dashboard struct {
		DataMode   string `yaml:"dataMode"`
		ListenPort int    `yaml:"listenPort"`
		DevProxy   bool   `yaml:"devProxy"`
	} `yaml:"dashboard"`

	Polling struct {
		Interval         string `yaml:"interval"`
		BackoffInterval  string `yaml:"backoffInterval"`
		SnapshotInterval string `yaml:"snapshotInterval"`
		RESTTimeout      string `yaml:"restTimeout"`
	} `yaml:"polling"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		MetricsPort int    `yaml:"metricsPort"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	s := Settings{
		BaseURL:      getEnvOrDefault("CHAKRA_API_BASE_URL", config.API.BaseURL),
		APIKey:       getEnvOrDefault("CHAKRA_API_KEY", config.API.Key),
		TriggerToken: getEnvOrDefault("CHAKRA_TRIGGER_TOKEN", config.API.TriggerToken),
		DataMode:     getEnvOrDefault("CHAKRA_DATA_MODE", config.Dashboard.DataMode),
		DataPath:     getEnvOrDefault("DATA_PATH", config.System.DataPath),
		ListenPort:   intOrFallback(os.Getenv("LISTEN_PORT"), config.Dashboard.ListenPort, 8090),
		MetricsPort:  intOrFallback(os.Getenv("METRICS_PORT"), config.System.MetricsPort, 9090),
		RESTTimeout:  durationOrDefault(config.Polling.RESTTimeout, 15*time.Second),
		PollInterval: durationOrDefault(config.Polling.Interval, 60*time.Second),
		BackoffPoll:  durationOrDefault(config.Polling.BackoffInterval, 120*time.Second),
		SnapshotPoll: durationOrDefault(config.Polling.SnapshotInterval, 900*time.Second),
		DevProxy:     config.Dashboard.DevProxy,
	}
	applyLegacyEnv(&s)

	if err := validateSettings(&s); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return s, nil
}

func loadFromEnv() (Settings, error) {
	s := Settings{
		BaseURL:      os.Getenv("CHAKRA_API_BASE_URL"),
		APIKey:       os.Getenv("CHAKRA_API_KEY"),
		TriggerToken: os.Getenv("CHAKRA_TRIGGER_TOKEN"),
		DataMode:     getEnvOrDefault("CHAKRA_DATA_MODE", ModeMock),
		DataPath:     os.Getenv("DATA_PATH"),
		ListenPort:   getIntOrDefault("LISTEN_PORT", 8090),
		MetricsPort:  getIntOrDefault("METRICS_PORT", 9090),
		RESTTimeout:  getDurationOrDefault("REST_TIMEOUT", 15*time.Second),
		PollInterval: getDurationOrDefault("POLL_INTERVAL", 60*time.Second),
		BackoffPoll:  getDurationOrDefault("POLL_BACKOFF_INTERVAL", 120*time.Second),
		SnapshotPoll: getDurationOrDefault("SNAPSHOT_POLL_INTERVAL", 900*time.Second),
		DevProxy:     getBoolOrDefault("DEV_PROXY", false),
	}
	applyLegacyEnv(&s)

	if err := validateSettings(&s); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return s, nil
}

// applyLegacyEnv honors the VITE_-prefixed variables the browser bundle
// historically read, so existing deployments keep working unchanged.
func applyLegacyEnv(s *Settings) {
	if s.BaseURL == "" {
		s.BaseURL = os.Getenv("VITE_API_BASE_URL")
	}
	if s.APIKey == "" {
		s.APIKey = os.Getenv("VITE_API_KEY")
	}
	if s.DataMode == "" || s.DataMode == ModeMock {
		if v := os.Getenv("VITE_DATA_MODE"); v != "" {
			s.DataMode = v
		}
	}
	if s.TriggerToken == "" {
		s.TriggerToken = os.Getenv("VITE_EVALUATE_TRIGGER_TOKEN")
	}
	if s.DataMode == "" {
		s.DataMode = ModeMock
	}
}

func validateSettings(s *Settings) error {
	if s.DataMode != ModeMock && s.DataMode != ModeLive {
		return fmt.Errorf("data mode must be %s or %s, got %q", ModeMock, ModeLive, s.DataMode)
	}
	if s.DataMode == ModeLive && s.BaseURL == "" && !s.DevProxy {
		return fmt.Errorf("base URL is required in %s mode", ModeLive)
	}
	if s.ListenPort < 1024 || s.ListenPort > 65535 {
		return fmt.Errorf("listen port must be between 1024 and 65535, got %d", s.ListenPort)
	}
	if s.MetricsPort < 1024 || s.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", s.MetricsPort)
	}
	if s.RESTTimeout < time.Second || s.RESTTimeout > time.Minute {
		return fmt.Errorf("REST timeout must be between 1s and 1m, got %v", s.RESTTimeout)
	}
	if s.PollInterval < time.Second {
		return fmt.Errorf("poll interval must be at least 1s, got %v", s.PollInterval)
	}
	if s.BackoffPoll < s.PollInterval {
		return fmt.Errorf("backoff interval %v must not be shorter than poll interval %v", s.BackoffPoll, s.PollInterval)
	}
	if s.SnapshotPoll < s.PollInterval {
		return fmt.Errorf("snapshot interval %v must not be shorter than poll interval %v", s.SnapshotPoll, s.PollInterval)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func durationOrDefault(v string, defaultValue time.Duration) time.Duration {
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

func intOrFallback(env string, fileValue, defaultValue int) int {
	if env != "" {
		if i, err := strconv.Atoi(env); err == nil {
			return i
		}
	}
	if fileValue != 0 {
		return fileValue
	}
	return defaultValue
}
