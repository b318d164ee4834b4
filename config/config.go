// Package config loads the settings of the gofat32 host tool.
//
// A config file is optional. Every key has a default and command line flags
// override what the file sets:
//
//	image: disk.img
//	partition-start: 2048
//	log-level: info
//	device:
//	  mode: ide        # ide or file
//	  max-polls: 100000
//	  max-wait: 2s
//	  busy-polls: 0
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aligator/gofat32/checkpoint"
	"github.com/aligator/gofat32/ide"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Device modes.
const (
	// ModeIDE drives the image through the ATA register protocol of an
	// emulated controller.
	ModeIDE = "ide"
	// ModeFile reads the image directly.
	ModeFile = "file"
)

// DefaultPartitionStart is the first sector of a partition aligned to 1 MiB.
const DefaultPartitionStart = 2048

var (
	ErrReadConfig = errors.New("cannot read config")
	ErrFormat     = errors.New("invalid config")
)

type Device struct {
	Mode      string        `yaml:"mode"`
	MaxPolls  int           `yaml:"max-polls"`
	MaxWait   time.Duration `yaml:"max-wait"`
	BusyPolls int           `yaml:"busy-polls"`
}

type Config struct {
	Image          string `yaml:"image"`
	PartitionStart uint32 `yaml:"partition-start"`
	LogLevel       string `yaml:"log-level"`
	Device         Device `yaml:"device"`
}

// Default returns the configuration used without a config file.
func Default() Config {
	return Config{
		PartitionStart: DefaultPartitionStart,
		LogLevel:       logrus.InfoLevel.String(),
		Device: Device{
			Mode:     ModeIDE,
			MaxPolls: ide.DefaultTimeout.MaxPolls,
		},
	}
}

// Load reads path from fs on top of Default. Unknown keys are rejected.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, checkpoint.Wrap(err, ErrReadConfig)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, checkpoint.Wrap(fmt.Errorf("%s: %w", path, err), ErrFormat)
	}

	return cfg, cfg.Validate()
}

// Validate checks values a file or a flag may have set wrong.
func (c Config) Validate() error {
	switch c.Device.Mode {
	case ModeIDE, ModeFile:
	default:
		return checkpoint.Wrapf(ErrFormat, "unknown device mode %q", c.Device.Mode)
	}
	if c.Device.MaxPolls < 0 || c.Device.MaxWait < 0 || c.Device.BusyPolls < 0 {
		return checkpoint.Wrapf(ErrFormat, "negative device limits")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (logrus.Level, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return level, checkpoint.Wrap(err, ErrFormat)
	}
	return level, nil
}

// Timeout is the driver timeout policy of the device section.
func (c Config) Timeout() ide.Timeout {
	return ide.Timeout{
		MaxPolls: c.Device.MaxPolls,
		MaxWait:  c.Device.MaxWait,
	}
}
