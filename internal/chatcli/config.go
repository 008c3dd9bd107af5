// config.go holds .chatstate config types and resolution (load, flag merge, active state).
package chatcli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	configDirName  = ".chatstate"
	configFileName = "config.yaml"
	stateFileName  = "state.yaml"
)

// localConfig holds optional values from .chatstate/config.yaml (flags override).
type localConfig struct {
	DB             string        `yaml:"db"`
	Server         string        `yaml:"server"`
	ValkeyAddr     string        `yaml:"valkey_addr"`
	ValkeyPassword string        `yaml:"valkey_password"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	NATSURL        string        `yaml:"nats_url"`
	NATSUser       string        `yaml:"nats_user"`
	NATSPassword   string        `yaml:"nats_password"`
	Trace          bool          `yaml:"trace"`
	Timeout        time.Duration `yaml:"timeout"`
}

// activeState is the persisted pointer to the conversation the CLI works on.
type activeState struct {
	SessionID string `yaml:"session_id"`
	TopicID   string `yaml:"topic_id,omitempty"`
	ThreadID  string `yaml:"thread_id,omitempty"`
}

// loadLocalConfig tries ./.chatstate/config.yaml then ~/.chatstate/config.yaml.
// Returns (config, pathToConfigFile, nil). If neither file exists, returns (empty, "", nil).
func loadLocalConfig() (localConfig, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return localConfig{}, "", err
	}
	try := []string{
		filepath.Join(cwd, configDirName, configFileName),
	}
	if home, err := os.UserHomeDir(); err == nil {
		try = append(try, filepath.Join(home, configDirName, configFileName))
	}
	for _, p := range try {
		cfg, err := readConfigFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return localConfig{}, "", err
		}
		return cfg, p, nil
	}
	return localConfig{}, "", nil
}

func readConfigFile(path string) (localConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return localConfig{}, err
	}
	var cfg localConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return localConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// mergeFlags lays every explicitly set flag over cfg.
func mergeFlags(cfg localConfig, flags *pflag.FlagSet) (localConfig, error) {
	var override localConfig
	changed := func(name string) bool { return flags.Changed(name) }

	if changed("db") {
		override.DB, _ = flags.GetString("db")
	}
	if changed("server") {
		override.Server, _ = flags.GetString("server")
	}
	if changed("valkey") {
		override.ValkeyAddr, _ = flags.GetString("valkey")
	}
	if changed("nats-url") {
		override.NATSURL, _ = flags.GetString("nats-url")
	}
	if changed("timeout") {
		override.Timeout, _ = flags.GetDuration("timeout")
	}
	if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
		return cfg, fmt.Errorf("failed to merge flags: %w", err)
	}
	// mergo skips zero values, so an explicit --trace=false is applied here.
	if changed("trace") {
		cfg.Trace, _ = flags.GetBool("trace")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return cfg, nil
}

// resolveConfigDir returns the .chatstate directory next to the config
// file, or under the working directory when no config was found.
func resolveConfigDir(configPath string) string {
	if configPath != "" {
		return filepath.Dir(configPath)
	}
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, configDirName)
}

// loadState reads the active pointers. A missing file is an empty state.
func loadState(dir string) (activeState, error) {
	data, err := os.ReadFile(filepath.Join(dir, stateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return activeState{}, nil
		}
		return activeState{}, err
	}
	var st activeState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return activeState{}, fmt.Errorf("%s: %w", stateFileName, err)
	}
	return st, nil
}

func saveState(dir string, st activeState) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, stateFileName), data, 0o644)
}
