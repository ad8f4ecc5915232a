package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-sync-tool/internal/config"
	apperrors "db-sync-tool/internal/errors"
	"db-sync-tool/internal/logging"
)

func minimalConfig() *config.SyncConfig {
	cfg := config.NewSyncConfig()
	cfg.Origin = config.EndpointConfig{
		Name: "production",
		Host: "db.example.com",
		User: "deploy",
		DB: config.DatabaseCredentials{
			Name: "shop", User: "shop", Password: "secret",
		},
	}
	cfg.Target = config.EndpointConfig{
		Name: "local",
		DB: config.DatabaseCredentials{
			Name: "shop_dev", User: "root", Password: "root",
		},
	}
	cfg.SetDefaults()
	return cfg
}

func TestNewValidatesConfiguration(t *testing.T) {
	cfg := minimalConfig()
	cfg.Origin.User = "" // remote endpoint without ssh user

	_, err := New(cfg, Options{LogLevel: logging.LogLevelQuiet})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeConfiguration, apperrors.TypeOf(err))
	assert.Equal(t, 2, ExitCode(err))
}

func TestNewAppliesReverse(t *testing.T) {
	cfg := minimalConfig()
	cfg.Reverse = true

	app, err := New(cfg, Options{LogLevel: logging.LogLevelQuiet})
	require.NoError(t, err)

	assert.Equal(t, "local", app.cfg.Origin.Name)
	assert.Equal(t, "production", app.cfg.Target.Name)
}

func TestNewAcceptsValidConfiguration(t *testing.T) {
	app, err := New(minimalConfig(), Options{LogLevel: logging.LogLevelQuiet})
	require.NoError(t, err)
	require.NotNil(t, app.Logger())
	assert.Equal(t, logging.LogLevelQuiet, app.Logger().GetLevel())
}

func TestExitCodeMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"configuration", apperrors.Newf(apperrors.ErrorTypeConfiguration, "bad config"), 2},
		{"parse", apperrors.Newf(apperrors.ErrorTypeParse, "bad php array"), 2},
		{"identifier", apperrors.Newf(apperrors.ErrorTypeIdentifier, "bad table name"), 2},
		{"connection", apperrors.Newf(apperrors.ErrorTypeConnection, "ssh refused"), 3},
		{"database", apperrors.Newf(apperrors.ErrorTypeDatabase, "dump failed"), 4},
		{"unknown", assert.AnError, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
