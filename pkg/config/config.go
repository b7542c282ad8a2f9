package config

import (
	"fmt"
	"path/filepath"

	"xysync/pkg/mathchan"
	"xysync/pkg/model"
)

type Config struct {
	Global       GlobalConfig        `yaml:"global"`
	Channels     []ChannelConfig     `yaml:"channels"`
	XYPlots      []XYPlotConfig      `yaml:"xy_plots"`
	MathChannels []MathChannelConfig `yaml:"math_channels"`
}

// GlobalConfig can be overridden from XYSYNC_* environment variables.
type GlobalConfig struct {
	LogLevel    string  `yaml:"log_level" env:"LOG_LEVEL"`
	ReplaySpeed float64 `yaml:"replay_speed" env:"REPLAY_SPEED"`
}

type ChannelConfig struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels"`
	// Source is a CSV file of timestamp,value rows. Channels without a
	// source are created empty.
	Source string `yaml:"source"`
}

type XYPlotConfig struct {
	X model.ChannelID `yaml:"x"`
	Y model.ChannelID `yaml:"y"`
}

type MathChannelConfig struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels"`
	Op     string            `yaml:"op"`
	A      model.ChannelID   `yaml:"a"`
	B      model.ChannelID   `yaml:"b"`
}

func (cc ChannelConfig) Channel() *model.Channel {
	return &model.Channel{Name: cc.Name, Labels: model.LabelsFromMap(cc.Labels)}
}

func (mc MathChannelConfig) Channel() *model.Channel {
	return &model.Channel{Name: mc.Name, Labels: model.LabelsFromMap(mc.Labels)}
}

func NewConfig() *Config {
	return &Config{}
}

var logLevels = map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}

func (c *Config) Validate() error {
	if c.Global.ReplaySpeed < 0 {
		return fmt.Errorf("%w: replay_speed (%v) must be >= 0", ErrInvalidConfig, c.Global.ReplaySpeed)
	}
	if !logLevels[c.Global.LogLevel] {
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.Global.LogLevel)
	}

	known := make(map[model.ChannelID]bool, len(c.Channels)+len(c.MathChannels))
	for i, cc := range c.Channels {
		if cc.Name == "" {
			return fmt.Errorf("%w: channels[%d]: name is required", ErrInvalidConfig, i)
		}
		id := cc.Channel().ID()
		if known[id] {
			return fmt.Errorf("%w: duplicate channel %q", ErrInvalidConfig, id)
		}
		known[id] = true
	}

	// math channels may use the output of the ones declared before them
	for i, mc := range c.MathChannels {
		if mc.Name == "" {
			return fmt.Errorf("%w: math_channels[%d]: name is required", ErrInvalidConfig, i)
		}
		id := mc.Channel().ID()
		if _, err := mathchan.ParseOp(mc.Op); err != nil {
			return fmt.Errorf("%w: math channel %q: %v", ErrInvalidConfig, id, err)
		}
		if err := checkPair(known, mc.A, mc.B); err != nil {
			return fmt.Errorf("%w: math channel %q: %v", ErrInvalidConfig, id, err)
		}
		if known[id] {
			return fmt.Errorf("%w: duplicate channel %q", ErrInvalidConfig, id)
		}
		known[id] = true
	}

	for i, p := range c.XYPlots {
		if err := checkPair(known, p.X, p.Y); err != nil {
			return fmt.Errorf("%w: xy_plots[%d]: %v", ErrInvalidConfig, i, err)
		}
	}
	return nil
}

func checkPair(known map[model.ChannelID]bool, a, b model.ChannelID) error {
	if !known[a] {
		return fmt.Errorf("unknown channel %q", a)
	}
	if !known[b] {
		return fmt.Errorf("unknown channel %q", b)
	}
	if a == b {
		return fmt.Errorf("channel %q paired with itself", a)
	}
	return nil
}

const DefaultLogLevel = "info"

// Process fills in defaults and resolves relative sources against dir.
func (c *Config) Process(dir string) {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}
	for i := range c.Channels {
		src := c.Channels[i].Source
		if src != "" && !filepath.IsAbs(src) && dir != "" {
			c.Channels[i].Source = filepath.Join(dir, src)
		}
	}
}
