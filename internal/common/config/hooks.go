package config

import (
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is implemented by every top level configuration struct.
type Config interface {
	Validate() error
}

// CustomHooks replaces viper's default decode hooks, so the defaults are composed back in.
// Types implementing encoding.TextUnmarshaler, such as enums, are decoded and checked by their
// UnmarshalText.
var CustomHooks = []viper.DecoderConfigOption{
	viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)),
}
