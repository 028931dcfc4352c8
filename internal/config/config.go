package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port          int    `koanf:"port"`
		WebhookSecret string `koanf:"webhook_secret"`
	} `koanf:"server"`

	Tracker struct {
		Repo  string `koanf:"repo"`
		Token string `koanf:"token"`
		Bot   string `koanf:"bot"`
		Admin string `koanf:"admin"`
		// Issues below MinIssue predate the triage templates and are
		// never touched.
		MinIssue    int    `koanf:"min_issue"`
		IgnoreLabel string `koanf:"ignore_label"`
		// "outside-contributors" or "generic"; selects the wording used
		// when some requested assignees are refused by the tracker.
		AssignFailureNote string `koanf:"assign_failure_note"`
	} `koanf:"tracker"`

	Repo struct {
		Dir                 string `koanf:"dir"`
		Remote              string `koanf:"remote"`
		SyncIntervalSeconds int    `koanf:"sync_interval_seconds"`
	} `koanf:"repo"`

	Alias struct {
		Path  string `koanf:"path"`
		Watch bool   `koanf:"watch"`
	} `koanf:"alias"`

	Buildlog struct {
		HistoryURL string `koanf:"history_url"`
		LogURL     string `koanf:"log_url"`
	} `koanf:"buildlog"`

	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"server.port":                 9007,
		"tracker.min_issue":           700,
		"tracker.ignore_label":        "no-triage",
		"tracker.assign_failure_note": "outside-contributors",
		"repo.sync_interval_seconds":  600,
		"log.level":                   "info",
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./triagebot.toml", "$HOME/.triagebot.toml", "/etc/triagebot/triagebot.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix TRIAGEBOT_
	k.Load(env.Provider("TRIAGEBOT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "TRIAGEBOT_")), "_", ".", -1)
	}), nil)

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# triagebot configuration

[server]
port = 9007
webhook_secret = "your-webhook-secret"

[tracker]
repo = "example-org/repo"
token = "your-tracker-token"
bot = "triagebot"
admin = ""
min_issue = 700
ignore_label = "no-triage"
# "outside-contributors" or "generic"
assign_failure_note = "outside-contributors"

[repo]
dir = "/var/lib/triagebot/checkout"
remote = "git@github.com:example-org/repo.git"
sync_interval_seconds = 600

[alias]
path = ""
watch = false

[buildlog]
history_url = "https://build.example.org/packages/{pkg}"
log_url = "https://build.example.org/packages/{pkg}/log/latest"

[log]
level = "info"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.Tracker.Repo == "" {
		return fmt.Errorf("tracker repo is required")
	}
	if !strings.Contains(config.Tracker.Repo, "/") {
		return fmt.Errorf("tracker repo must be in owner/name form, got %q", config.Tracker.Repo)
	}
	if config.Tracker.Token == "" {
		return fmt.Errorf("tracker token is required")
	}
	if config.Tracker.Bot == "" {
		return fmt.Errorf("tracker bot identity is required")
	}
	if config.Repo.Dir == "" {
		return fmt.Errorf("repo dir is required")
	}

	switch config.Tracker.AssignFailureNote {
	case "", "outside-contributors", "generic":
	default:
		return fmt.Errorf("unknown assign_failure_note %q", config.Tracker.AssignFailureNote)
	}

	return nil
}
