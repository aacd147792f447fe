// vidpress/config/config.go
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	FFBin         string        `mapstructure:"FF_BIN"`
	FFProbeBin    string        `mapstructure:"FFPROBE_BIN"`
	FFPreset      string        `mapstructure:"FF_PRESET"`
	FFExtraArgs   string        `mapstructure:"FF_EXTRA_ARGS"`
	EncodeTimeout time.Duration `mapstructure:"ENCODE_TIMEOUT"`
	InputDir      string        `mapstructure:"INPUT_DIR"`
	OutputDir     string        `mapstructure:"OUTPUT_DIR"`
	MaxUploadSize int64         `mapstructure:"MAX_UPLOAD_SIZE"`
	JobRetention  time.Duration `mapstructure:"JOB_RETENTION"`
	DownloadGrace time.Duration `mapstructure:"DOWNLOAD_GRACE"`
	FileRetention time.Duration `mapstructure:"FILE_RETENTION"`
	SweepEvery    time.Duration `mapstructure:"SWEEP_EVERY"`
	MinFreeDisk   int64         `mapstructure:"MIN_FREE_DISK"`
	Port          string        `mapstructure:"PORT"`
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

func Load() (*Config, error) {
	vp := viper.New()

	// Defaults are strings where a decode hook parses them.
	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("FFPROBE_BIN", "ffprobe")
	vp.SetDefault("FF_PRESET", "fast")
	vp.SetDefault("FF_EXTRA_ARGS", "")
	vp.SetDefault("ENCODE_TIMEOUT", "30m")
	vp.SetDefault("INPUT_DIR", "uploads/input")
	vp.SetDefault("OUTPUT_DIR", "uploads/output")
	vp.SetDefault("MAX_UPLOAD_SIZE", "2GB")
	vp.SetDefault("JOB_RETENTION", "5m")
	vp.SetDefault("DOWNLOAD_GRACE", "30s")
	vp.SetDefault("FILE_RETENTION", "1h")
	vp.SetDefault("SWEEP_EVERY", "5m")
	vp.SetDefault("MIN_FREE_DISK", "200MB")
	vp.SetDefault("PORT", "3000")

	vp.SetConfigName("vidpress_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/vidpress/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	vp.SetEnvPrefix("VIDPRESS")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
