package main

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigLayersOverDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("phrase.calibration", 120000)
	viper.Set("timeout", "5s")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 120000.0, cfg.Phrase.Calibration)
	assert.Equal(t, 30000.0, cfg.SingleItem.Calibration)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("feedback.good_min", 95)

	_, err := loadConfig()
	assert.Error(t, err)
}
