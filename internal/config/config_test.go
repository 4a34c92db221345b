package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoot() *cobra.Command {
	root := &cobra.Command{Use: "lv0"}
	root.PersistentFlags().String("base-url", "", "")
	root.PersistentFlags().StringP("out-dir", "o", ".", "")
	root.PersistentFlags().BoolP("verbose", "v", false, "")
	root.PersistentFlags().Int("jobs", 1, "")
	return root
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(home, "cache"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	viper.Reset()
	t.Cleanup(viper.Reset)
	return filepath.Join(home, "config", "lv0")
}

func TestInitDefaults(t *testing.T) {
	isolate(t)
	require.NoError(t, Init(testRoot()))

	assert.Equal(t, "http://localhost:5000", viper.GetString("base_url"))
	pol := Policy()
	assert.Equal(t, time.Second, pol.Interval)
	assert.Equal(t, 900, pol.MaxPolls)
	assert.Equal(t, 15*time.Minute, pol.Timeout)
	_, ok := S3()
	assert.False(t, ok)
}

func TestInitPrecedence(t *testing.T) {
	cfgDir := isolate(t)
	require.NoError(t, os.MkdirAll(cfgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(
		"base_url: http://from-file:5000\n"+
			"poll_interval: 2s\n"+
			"max_polls: 10\n"+
			"s3:\n  bucket: reports\n  endpoint: minio:9000\n"), 0o644))
	t.Setenv("LV0_MAX_POLLS", "5")

	root := testRoot()
	require.NoError(t, root.PersistentFlags().Set("base-url", "http://from-flag:5000"))
	require.NoError(t, Init(root))

	assert.Equal(t, "http://from-flag:5000", viper.GetString("base_url"))
	pol := Policy()
	assert.Equal(t, 2*time.Second, pol.Interval)
	assert.Equal(t, 5, pol.MaxPolls)

	s3, ok := S3()
	require.True(t, ok)
	assert.Equal(t, "reports", s3.Bucket)
	assert.Equal(t, "minio:9000", s3.Endpoint)
	assert.Equal(t, "reports", s3.Prefix)
}

func TestInitRejectsBrokenConfig(t *testing.T) {
	cfgDir := isolate(t)
	require.NoError(t, os.MkdirAll(cfgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte("base_url: [unclosed\n"), 0o644))
	assert.Error(t, Init(testRoot()))
}
