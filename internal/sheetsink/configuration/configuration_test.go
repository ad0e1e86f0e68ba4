package configuration_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-integrations/google-drive-sub000/internal/common"
	"github.com/data-integrations/google-drive-sub000/internal/sheetsink/configuration"
)

const defaultConfigPath = "../../../config/sheetsink"

func TestDefaultConfigIsValid(t *testing.T) {
	var config configuration.SheetSinkConfiguration
	_, err := common.LoadConfig(&config, defaultConfigPath, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, configuration.BackendXlsx, config.Backend)
	assert.Equal(t, 4, config.Sink.Workers)
	assert.Equal(t, time.Second, config.Sink.FlushInterval)
	assert.Equal(t, uint(8), config.Sink.Retry.MaxAttempts)
	assert.Equal(t, 32*time.Second, config.Sink.Retry.MaxWait)
	assert.True(t, config.Sink.RateLimit.Enabled())
}

func TestBackendFromEnvironment(t *testing.T) {
	t.Setenv("SHEETSINK_BACKEND", "Memory")
	t.Setenv("SHEETSINK_SINK_WORKERS", "9")

	var config configuration.SheetSinkConfiguration
	_, err := common.LoadConfig(&config, defaultConfigPath, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, configuration.BackendMemory, config.Backend)
	assert.Equal(t, 9, config.Sink.Workers)
}

func TestUnknownBackend(t *testing.T) {
	t.Setenv("SHEETSINK_BACKEND", "postgres")

	var config configuration.SheetSinkConfiguration
	_, err := common.LoadConfig(&config, defaultConfigPath, nil, nil)
	assert.Error(t, err)
}

func TestSinkConfiguration_Validate(t *testing.T) {
	valid := func() configuration.SinkConfiguration {
		var config configuration.SheetSinkConfiguration
		_, err := common.LoadConfig(&config, defaultConfigPath, nil, nil)
		require.NoError(t, err)
		return config.Sink
	}
	tests := map[string]struct {
		modify  func(c *configuration.SinkConfiguration)
		isValid bool
	}{
		"defaults": {
			modify:  func(c *configuration.SinkConfiguration) {},
			isValid: true,
		},
		"no workers": {
			modify: func(c *configuration.SinkConfiguration) { c.Workers = 0 },
		},
		"negative batch size": {
			modify: func(c *configuration.SinkConfiguration) { c.MaxBatchSize = -1 },
		},
		"zero flush interval": {
			modify: func(c *configuration.SinkConfiguration) { c.FlushInterval = 0 },
		},
		"no retry attempts": {
			modify: func(c *configuration.SinkConfiguration) { c.Retry.MaxAttempts = 0 },
		},
		"max wait below base delay": {
			modify: func(c *configuration.SinkConfiguration) { c.Retry.MaxWait = c.Retry.BaseDelay / 2 },
		},
		"rate limit disabled": {
			modify:  func(c *configuration.SinkConfiguration) { c.RateLimit.RequestsPerSecond = 0 },
			isValid: true,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			tc.modify(&c)
			err := c.Validate()
			if tc.isValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
