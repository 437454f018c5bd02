package rhinorox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	o := DefaultOptions()
	o.Bind = "127.0.0.1"
	o.Port = 0
	o.MaxClients = 8
	o.MaxDBs = 2
	return o
}

func TestDefaultOptionsMatchesConfigDefaults(t *testing.T) {
	o := DefaultOptions()
	require.Equal(t, 6969, o.Port)
	require.Equal(t, "0.0.0.0", o.Bind)
	require.Equal(t, 10000, o.MaxClients)
	require.Equal(t, 16, o.MaxDBs)
}

func TestNewServerBuildsWithBuiltInMetrics(t *testing.T) {
	s, err := NewServer(testOptions())
	require.NoError(t, err)
	defer s.Close()

	require.NotNil(t, s.Metrics())
}

func TestNewServerHonorsCustomObserver(t *testing.T) {
	opts := testOptions()
	opts.Observer = NoOpObserver{}

	s, err := NewServer(opts)
	require.NoError(t, err)
	defer s.Close()

	require.Nil(t, s.Metrics())
}

func TestNewServerRejectsBadConfigPath(t *testing.T) {
	opts := testOptions()
	opts.ConfigPath = "/nonexistent/rhino-rox.conf"

	_, err := NewServer(opts)
	require.Error(t, err)
}

func TestServerRunAndShutdown(t *testing.T) {
	s, err := NewServer(testOptions())
	require.NoError(t, err)
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	time.Sleep(20 * time.Millisecond)
	s.Shutdown()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
