package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/remindbot/core/config"
	coretelegram "github.com/m3rciful/remindbot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type app struct{ closed bool }

func (a *app) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}

func (a *app) Close() error {
	a.closed = true
	return nil
}

func TestRunWiresHooksAndCloses(t *testing.T) {
	t.Setenv("REMINDBOT_TEST_CONFIG", "")
	a := &app{}
	var gotPath string
	started, stopped := false, false

	err := Run(Options{
		ConfigEnvVar: "REMINDBOT_TEST_CONFIG",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			gotPath = path
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(context.Context, ConfigCarrier) (TelegramApp, error) { return a, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			started = true
			require.NoError(t, opts.OnStop(ctx, coretelegram.Runtime{}))
			stopped = true
			return nil
		},
	})
	require.NoError(t, err)
	assert.Empty(t, gotPath)
	assert.True(t, started)
	assert.True(t, stopped)
	assert.True(t, a.closed)
}

func TestRunFailsOnBadConfig(t *testing.T) {
	boom := errors.New("token is required")
	err := Run(Options{
		LoadConfig: func(string) (ConfigCarrier, error) { return nil, boom },
		Bootstrap:  func(context.Context, ConfigCarrier) (TelegramApp, error) { return nil, nil },
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunLoadsEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("REMINDBOT_ENVFILE_CONFIG=from-dotenv.yaml\n"), 0o600))
	t.Setenv("REMINDBOT_ENVFILE_CONFIG", "")
	require.NoError(t, os.Unsetenv("REMINDBOT_ENVFILE_CONFIG"))

	var gotPath string
	err := Run(Options{
		EnvFiles:     []string{filepath.Join(dir, "missing.env"), envFile},
		ConfigEnvVar: "REMINDBOT_ENVFILE_CONFIG",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			gotPath = path
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(context.Context, ConfigCarrier) (TelegramApp, error) { return &app{}, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram:    func(context.Context, coretelegram.RunOptions) error { return nil },
	})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.yaml", gotPath)
}
