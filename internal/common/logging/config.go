package logging

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

var validLogFormats = map[string]bool{
	FormatText: true,
	FormatJSON: true,
}

type Config struct {
	// Logging to stdout
	Console ConsoleConfig
	File    FileConfig
}

type ConsoleConfig struct {
	// Log level, e.g. info, error etc
	Level string
	// Either text or json
	Format string
}

type FileConfig struct {
	Enabled bool
	Level   string
	Format  string
	// Location of the log file on disk
	LogFile  string
	Rotation RotationConfig
}

type RotationConfig struct {
	// Maximum size in megabytes of the log file before it gets rotated
	MaxSizeMb int
	// Maximum number of old log files to retain
	MaxBackups int
	// Maximum number of days to retain old log files
	MaxAgeDays int
	// Whether to gzip rotated log files
	Compress bool
}

func (c Config) Validate() error {
	if _, err := parseLogLevel(c.Console.Level); err != nil {
		return errors.WithMessage(err, "console")
	}
	if err := validateLogFormat(c.Console.Format); err != nil {
		return errors.WithMessage(err, "console")
	}
	if !c.File.Enabled {
		return nil
	}

	if _, err := parseLogLevel(c.File.Level); err != nil {
		return errors.WithMessage(err, "file")
	}
	if err := validateLogFormat(c.File.Format); err != nil {
		return errors.WithMessage(err, "file")
	}
	if c.File.LogFile == "" {
		return errors.New("file: logFile must be set when file logging is enabled")
	}
	rotation := c.File.Rotation
	if rotation.MaxSizeMb < 0 || rotation.MaxBackups < 0 || rotation.MaxAgeDays < 0 {
		return errors.New("file: rotation limits must not be negative")
	}
	return nil
}

func validateLogFormat(f string) error {
	if !validLogFormats[strings.ToLower(f)] {
		return errors.Errorf("unknown log format: %s. Valid formats are %s", f, maps.Keys(validLogFormats))
	}
	return nil
}

func parseLogLevel(level string) (log.Level, error) {
	return log.ParseLevel(strings.ToLower(level))
}
