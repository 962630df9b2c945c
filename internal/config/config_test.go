package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	require.Equal(t, 8443, cfg.Port)
	require.Equal(t, "/groupcall", cfg.WSPath)
	require.Equal(t, 54*time.Second, cfg.PingPeriod)
	require.Equal(t, EngineKurento, cfg.Media.Engine)
	require.Equal(t, "ws://localhost:8888/kurento", cfg.Media.KurentoURL)
	require.Equal(t, 10*time.Second, cfg.Media.CallTimeout)
	require.Equal(t, 300, cfg.Media.MaxRecvBandwidth)
	require.Equal(t, 100, cfg.Media.MinRecvBandwidth)
	require.Len(t, cfg.Media.ICEServers, 2)
	require.False(t, cfg.TLS.Enabled())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "groupcall.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
port: 9000
media:
  engine: pion
  max_recv_bandwidth: 500
tls:
  cert_file: cert.pem
  key_file: key.pem
`), 0o600))
	t.Setenv("GROUPCALL_MEDIA_CALL_TIMEOUT", "3s")

	cfg, err := Load(viper.New(), file)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, EnginePion, cfg.Media.Engine)
	require.Equal(t, 500, cfg.Media.MaxRecvBandwidth)
	require.Equal(t, 3*time.Second, cfg.Media.CallTimeout)
	require.True(t, cfg.TLS.Enabled())
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	v := viper.New()
	v.Set("media.engine", "gstreamer")
	t.Chdir(t.TempDir())
	_, err = Load(v, "")
	require.ErrorContains(t, err, "gstreamer")
}
