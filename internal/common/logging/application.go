package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const RFC3339Milli = "2006-01-02T15:04:05.000Z07:00"

// MustConfigureApplicationLogging calls ConfigureApplicationLogging and exits the process if it fails.
func MustConfigureApplicationLogging(config Config) {
	if err := ConfigureApplicationLogging(log.StandardLogger(), config); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error initializing logging: "+err.Error())
		os.Exit(1)
	}
}

// ConfigureApplicationLogging sends the output of logger to stdout and, if enabled, to a rotated log
// file. Each output filters on its own level and uses its own format.
func ConfigureApplicationLogging(logger *log.Logger, config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}

	consoleLevel, _ := parseLogLevel(config.Console.Level)
	hooks := []*levelWriterHook{
		newLevelWriterHook(os.Stdout, consoleLevel, config.Console.Format),
	}
	if config.File.Enabled {
		fileLevel, _ := parseLogLevel(config.File.Level)
		hooks = append(hooks, newLevelWriterHook(&lumberjack.Logger{
			Filename:   config.File.LogFile,
			MaxSize:    config.File.Rotation.MaxSizeMb,
			MaxBackups: config.File.Rotation.MaxBackups,
			MaxAge:     config.File.Rotation.MaxAgeDays,
			Compress:   config.File.Rotation.Compress,
		}, fileLevel, config.File.Format))
	}

	level := log.PanicLevel
	replacement := make(log.LevelHooks)
	for _, hook := range hooks {
		level = max(level, hook.level)
		replacement.Add(hook)
	}
	logger.ReplaceHooks(replacement)
	logger.SetOutput(io.Discard)
	logger.SetLevel(level)
	return nil
}

// levelWriterHook writes every entry at or above level to writer.
type levelWriterHook struct {
	writer    io.Writer
	level     log.Level
	formatter log.Formatter
}

func newLevelWriterHook(writer io.Writer, level log.Level, format string) *levelWriterHook {
	var formatter log.Formatter
	if strings.ToLower(format) == FormatJSON {
		formatter = &log.JSONFormatter{TimestampFormat: RFC3339Milli}
	} else {
		formatter = &log.TextFormatter{FullTimestamp: true, TimestampFormat: RFC3339Milli, DisableColors: writer != os.Stdout}
	}
	return &levelWriterHook{writer: writer, level: level, formatter: formatter}
}

func (h *levelWriterHook) Levels() []log.Level {
	return log.AllLevels[:h.level+1]
}

func (h *levelWriterHook) Fire(entry *log.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(line)
	return err
}
