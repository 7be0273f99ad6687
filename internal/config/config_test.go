package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/vending-machine/internal/core/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, ":50051", cfg.Server.GRPCAddr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, ArchiveNone, cfg.Archive.Driver)
	assert.Equal(t, 2, cfg.Archive.Workers)
	assert.Equal(t, "@every 1m", cfg.Scheduler.StockSyncSchedule)
	assert.Equal(t, "info", cfg.LogLevel)

	denoms, err := cfg.AcceptedDenominations()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDenominations, denoms)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("ARCHIVE_DRIVER", "mysql")
	t.Setenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/vending?parseTime=true")
	t.Setenv("ACCEPTED_DENOMINATIONS", "1.00, 5.00")
	t.Setenv("ARCHIVE_WORKERS", "4")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ArchiveMySQL, cfg.Archive.Driver)
	assert.Equal(t, 4, cfg.Archive.Workers)

	denoms, err := cfg.AcceptedDenominations()
	require.NoError(t, err)
	assert.Equal(t, []domain.Money{100, 500}, denoms)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("MACHINE_ID=lobby-2\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MACHINE_ID") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lobby-2", cfg.Machine.ID)

	_, err = Load(filepath.Join(dir, "missing.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Archive.Driver = "postgres" }},
		{"mysql without dsn", func(c *Config) { c.Archive.Driver = ArchiveMySQL }},
		{"mongo without uri", func(c *Config) { c.Archive.Driver = ArchiveMongo }},
		{"zero workers", func(c *Config) { c.Archive.Workers = 0 }},
		{"zero queue", func(c *Config) { c.Archive.QueueSize = 0 }},
		{"sub-cent denomination", func(c *Config) { c.Machine.Denominations = "0.255" }},
		{"negative denomination", func(c *Config) { c.Machine.Denominations = "-1.00" }},
		{"empty denominations", func(c *Config) { c.Machine.Denominations = " , " }},
		{"no machine id", func(c *Config) { c.Machine.ID = "" }},
		{"malformed mysql dsn", func(c *Config) {
			c.Archive.Driver = ArchiveMySQL
			c.Archive.MySQLDSN = "root@db:3306"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}

func TestValidate_MySQLDSNParsesTime(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Archive.Driver = ArchiveMySQL
	cfg.Archive.MySQLDSN = "root:secret@tcp(db:3306)/vending"

	require.NoError(t, cfg.Validate())
	assert.Contains(t, cfg.Archive.MySQLDSN, "parseTime=true")
	assert.True(t, strings.HasPrefix(cfg.Archive.MySQLDSN, "root:secret@tcp(db:3306)/vending?"), cfg.Archive.MySQLDSN)
}
