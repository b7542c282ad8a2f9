package config

import (
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Loader struct {
	configPath string
	envFiles   []string
}

const (
	DefaultConfigPath = "config.yaml"
	EnvPrefix         = "XYSYNC_"
)

func NewLoader(configPath string) *Loader {
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	return &Loader{configPath: configPath}
}

// WithEnvFiles makes Load read the given dotenv files, which must exist.
// Without it Load reads .env from the working directory if there is one.
func (l *Loader) WithEnvFiles(files ...string) *Loader {
	l.envFiles = files
	return l
}

// Load reads the YAML file, applies XYSYNC_* environment overrides, then
// validates and processes the result.
func (l *Loader) Load() (*Config, error) {
	c, err := os.ReadFile(l.configPath)
	if err != nil {
		return nil, NewReadError(l.configPath, err)
	}
	cfg := NewConfig()
	err = yaml.Unmarshal(c, cfg)
	if err != nil {
		return nil, NewParseError(l.configPath, err)
	}
	if err = l.applyEnv(cfg); err != nil {
		return nil, NewEnvError(err)
	}
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	cfg.Process(filepath.Dir(l.configPath))
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	if len(l.envFiles) > 0 {
		if err := godotenv.Load(l.envFiles...); err != nil {
			return err
		}
	} else {
		_ = godotenv.Load()
	}
	return env.ParseWithOptions(&cfg.Global, env.Options{Prefix: EnvPrefix})
}

func (l *Loader) getConfigPath() string {
	return l.configPath
}
