package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	commonconfig "github.com/data-integrations/google-drive-sub000/internal/common/config"
	"github.com/data-integrations/google-drive-sub000/internal/common/logging"
)

const envPrefix = "SHEETSINK"

// LoadConfig reads config.yaml from defaultPath, merges each of overrideConfigs over it in order, then
// applies any SHEETSINK_ prefixed environment variables, e.g. SHEETSINK_SINK_WORKERS for sink.workers.
// Flags in flags, if given, that were set on the command line take precedence over everything else.
// The result is decoded into config and validated.
func LoadConfig(config commonconfig.Config, defaultPath string, overrideConfigs []string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigName("config")
	v.AddConfigPath(defaultPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read default config from %s", defaultPath)
	}
	log.Infof("Read base config from %s", v.ConfigFileUsed())

	for _, overrideConfig := range overrideConfigs {
		v.SetConfigFile(overrideConfig)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to merge config from %s", overrideConfig)
		}
		log.Infof("Merged config from %s", overrideConfig)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer("::", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if err := v.Unmarshal(config, commonconfig.CustomHooks...); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := config.Validate(); err != nil {
		commonconfig.LogValidationErrors(err)
		return nil, errors.WithMessage(err, "invalid config")
	}
	return v, nil
}

// ConfigureLogging sets up console logging with defaults, for use until the real logging config has
// been loaded.
func ConfigureLogging() {
	logging.MustConfigureApplicationLogging(logging.Config{
		Console: logging.ConsoleConfig{Level: "info", Format: logging.FormatText},
	})
}

// ServeMetrics exposes the default prometheus registry on /metrics. The returned function shuts the
// server down.
func ServeMetrics(port uint16) (shutdown func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("Serving metrics on port %d", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Failed to shut down metrics server")
		}
	}
}
