// vidpress/config/config_test.go
package config_test

import (
	"testing"
	"time"

	"vidpress/config"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Run("loads default values correctly", func(t *testing.T) {
		t.Setenv("VIDPRESS_PORT", "")
		t.Setenv("VIDPRESS_FF_BIN", "")
		t.Setenv("VIDPRESS_MAX_UPLOAD_SIZE", "")
		t.Setenv("VIDPRESS_JOB_RETENTION", "")
		t.Setenv("VIDPRESS_DOWNLOAD_GRACE", "")

		cfg, err := config.Load()
		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "3000", cfg.Port)
		assert.Equal(t, "ffmpeg", cfg.FFBin)
		assert.Equal(t, "ffprobe", cfg.FFProbeBin)
		assert.Equal(t, int64(2*1024*1024*1024), cfg.MaxUploadSize)
		assert.Equal(t, 5*time.Minute, cfg.JobRetention)
		assert.Equal(t, 30*time.Second, cfg.DownloadGrace)
		assert.Equal(t, 30*time.Minute, cfg.EncodeTimeout)
		assert.Equal(t, "uploads/input", cfg.InputDir)
		assert.Equal(t, "uploads/output", cfg.OutputDir)
	})

	t.Run("overrides defaults with environment variables", func(t *testing.T) {
		t.Setenv("VIDPRESS_PORT", "8080")
		t.Setenv("VIDPRESS_FF_BIN", "/opt/ffmpeg/bin/ffmpeg")
		t.Setenv("VIDPRESS_MAX_UPLOAD_SIZE", "500MB")
		t.Setenv("VIDPRESS_JOB_RETENTION", "90s")
		t.Setenv("VIDPRESS_FF_EXTRA_ARGS", "-threads 2")

		cfg, err := config.Load()
		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFBin)
		assert.Equal(t, int64(500*1024*1024), cfg.MaxUploadSize)
		assert.Equal(t, 90*time.Second, cfg.JobRetention)
		assert.Equal(t, "-threads 2", cfg.FFExtraArgs)
	})
}
