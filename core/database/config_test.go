package database

import (
	"os"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaultsAndDSN(t *testing.T) {
	assert.False(t, Config{}.Enabled())

	cfg := Config{Host: "db", User: "bot", Password: "p@ss", Name: "reminders"}
	assert.True(t, cfg.Enabled())
	assert.Equal(t, "user=bot password=p@ss host=db port=5432 dbname=reminders sslmode=disable", cfg.DSN())
	assert.Equal(t, "postgres://bot:p%40ss@db:5432/reminders?sslmode=disable", cfg.URL())
}

func TestUpMigrationsOrderAndRange(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_add_index.up.sql":         {Data: []byte("CREATE INDEX x ON y (z);")},
		"0001_reminder_events.up.sql":   {Data: []byte("CREATE TABLE y (z int);")},
		"0001_reminder_events.down.sql": {Data: []byte("DROP TABLE y;")},
		"0003_x.up.sql":                 {Data: []byte("SELECT 1;")},
		"README.md":                     {Data: []byte("notes")},
	}
	files := upMigrations(fsys)
	assert.Equal(t, []string{"0001_reminder_events.up.sql", "0002_add_index.up.sql", "0003_x.up.sql"}, names(files))

	assert.Equal(t, []string{"0002_add_index.up.sql"}, names(appliedBetween(files, 1, 2)))
	assert.Len(t, appliedBetween(files, 1, 3), 2)
	assert.Empty(t, appliedBetween(files, 3, 3))
}

func TestRepositoryMigrationsAreListed(t *testing.T) {
	files := upMigrations(os.DirFS("../../migrations"))
	require.NotEmpty(t, files)
	assert.Equal(t, uint64(1), files[0].version)
}
