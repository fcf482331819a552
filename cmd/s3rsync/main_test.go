package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3rsync/s3rsync/internal/config"
)

func TestLoadConfigMergesFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, config.ConfigFileName)
	require.NoError(t, os.WriteFile(configFile, []byte(
		"bucket: file-bucket\nprefix: file-prefix\nregion: oss-cn-beijing\nextensions:\n  - .txt\n  - .md\nblacklist: true\n",
	), 0o644))

	t.Cleanup(viper.Reset)

	require.NoError(t, loadConfig(rootCmd, dir))

	assert.Equal(t, "file-bucket", viper.GetString("bucket"))
	assert.Equal(t, "file-prefix", viper.GetString("prefix"))
	assert.Equal(t, "oss-cn-beijing", viper.GetString("region"))
	assert.Equal(t, []string{".txt", ".md"}, viper.GetStringSlice("extensions"))
	assert.True(t, viper.GetBool("blacklist"))

	// a changed flag takes precedence over the file
	t.Cleanup(func() {
		bucket := rootCmd.Flags().Lookup("bucket")
		bucket.Value.Set("")
		bucket.Changed = false
	})
	require.NoError(t, rootCmd.Flags().Set("bucket", "flag-bucket"))
	assert.Equal(t, "flag-bucket", viper.GetString("bucket"))
}

func TestLoadConfigMissingFileIsFine(t *testing.T) {
	t.Cleanup(viper.Reset)
	assert.NoError(t, loadConfig(rootCmd, t.TempDir()))
}

func TestConfigUnmarshalsFromViper(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, config.ConfigFileName)
	require.NoError(t, os.WriteFile(configFile, []byte(
		"bucket: my-bucket\nprefix: backups\nendpoint-url: https://oss.example.com\nregion: oss-cn-beijing\nextensions:\n  - .txt\nblacklist: true\nconcurrency: 8\n",
	), 0o644))

	t.Cleanup(viper.Reset)
	require.NoError(t, loadConfig(rootCmd, dir))

	cfg := &config.Config{}
	require.NoError(t, viper.Unmarshal(cfg))

	assert.Equal(t, "my-bucket", cfg.Bucket)
	assert.Equal(t, "backups", cfg.Prefix)
	assert.Equal(t, "https://oss.example.com", cfg.Endpoint)
	assert.Equal(t, "oss-cn-beijing", cfg.Region)
	assert.Equal(t, []string{".txt"}, cfg.Extensions)
	assert.True(t, cfg.Blacklist)
	assert.Equal(t, 8, cfg.Concurrency)
}
