package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rhino-rox/rhino-rox/internal/logging"
)

func writeIni(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rhino-rox.conf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesEverySection(t *testing.T) {
	path := writeIni(t, `
; comment
[server]
max_clients = 500
cron_frequency = 20
max_memory = 1gb
pidfile = /tmp/rhino-rox.pid

[logging]
log_level = debug
log_file = /tmp/rhino-rox.log

[network]
port = 7070
bind = 127.0.0.1
tcp_backlog = 256

[lazyfree]
server_del = 1

[database]
max_dbs = 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 500, cfg.Server.MaxClients)
	require.Equal(t, 20, cfg.Server.CronFrequency)
	require.Equal(t, int64(1024*1024*1024), cfg.Server.MaxMemory)
	require.Equal(t, "/tmp/rhino-rox.pid", cfg.Server.PidFile)
	require.Equal(t, logging.LevelDebug, cfg.Logging.LogLevel)
	require.Equal(t, "/tmp/rhino-rox.log", cfg.Logging.LogFile)
	require.Equal(t, 7070, cfg.Network.Port)
	require.Equal(t, "127.0.0.1", cfg.Network.Bind)
	require.Equal(t, 256, cfg.Network.TCPBacklog)
	require.True(t, cfg.Lazyfree.ServerDel)
	require.Equal(t, 4, cfg.Database.MaxDBs)
}

func TestLoadKeepsDefaultsForUnsetKeys(t *testing.T) {
	path := writeIni(t, `[network]
port = 9999
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Network.Port)
	require.Equal(t, Default().Server.MaxClients, cfg.Server.MaxClients)
	require.Equal(t, Default().Database.MaxDBs, cfg.Database.MaxDBs)
}

func TestLoadRejectsOutOfRangePort(t *testing.T) {
	path := writeIni(t, `[network]
port = 70000
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsCronFrequencyAboveMax(t *testing.T) {
	path := writeIni(t, `[server]
cron_frequency = 2000
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeIni(t, `[server]
bogus_key = 1
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	path := writeIni(t, `[logging]
log_level = verbose
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.conf"))
	require.Error(t, err)
}

func TestMemtollSuffixes(t *testing.T) {
	cases := map[string]int64{
		"0":     0,
		"100":   100,
		"100b":  100,
		"1k":    1000,
		"1kb":   1024,
		"2m":    2 * 1000 * 1000,
		"2mb":   2 * 1024 * 1024,
		"1g":    1000 * 1000 * 1000,
		"1gb":   1024 * 1024 * 1024,
		"1GB":   1024 * 1024 * 1024,
	}
	for in, want := range cases {
		got, err := memtoll(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := memtoll("1xb")
	require.Error(t, err)
}
