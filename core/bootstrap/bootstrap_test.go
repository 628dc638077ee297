package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/remindbot/core/config"
	coredatabase "github.com/m3rciful/remindbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunSkipsDatabaseWhenUnconfigured(t *testing.T) {
	connected := false
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.False(t, connected)
	assert.NoError(t, res.Close())
}

func TestRunPropagatesConnectError(t *testing.T) {
	boom := errors.New("refused")
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Host: "db"},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			return nil, boom
		},
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	assert.Error(t, err)
}
