package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfigPath(t *testing.T) {
	env := func(values map[string]string) func(string) string {
		return func(key string) string { return values[key] }
	}

	tests := []struct {
		name    string
		goos    string
		env     map[string]string
		want    string
		wantErr bool
	}{
		{"darwin", "darwin", nil, filepath.Join("/home/u", "Library", "Application Support", "Claude", "claude_desktop_config.json"), false},
		{"linux default", "linux", nil, filepath.Join("/home/u", ".config", "Claude", "claude_desktop_config.json"), false},
		{"linux xdg", "linux", map[string]string{"XDG_CONFIG_HOME": "/xdg"}, filepath.Join("/xdg", "Claude", "claude_desktop_config.json"), false},
		{"windows", "windows", map[string]string{"APPDATA": "C:/AppData"}, filepath.Join("C:/AppData", "Claude", "claude_desktop_config.json"), false},
		{"windows without appdata", "windows", nil, "", true},
		{"plan9", "plan9", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClientConfigPath(tt.goos, env(tt.env), "/home/u")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegisterKeepsOtherServers(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "Claude", "claude_desktop_config.json")
	require.NoError(t, SaveClientConfig(configPath, &ClientConfig{MCPServers: map[string]MCPServerConfig{
		"other": {Command: "/usr/bin/other"},
	}}))

	binary := filepath.Join(t.TempDir(), "mcp-server-lite")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0755))

	entry, err := Register(configPath, Options{
		BinaryPath:  binary,
		DataDir:     "/data/acmg",
		InterVarURL: "http://intervar.local",
	})
	require.NoError(t, err)
	assert.Equal(t, binary, entry.Command)
	assert.Equal(t, "/data/acmg", entry.Env["ACMG_DATA_DIR"])
	assert.NotContains(t, entry.Env, "ACMG_AUTOACMG_URL")

	config, err := LoadClientConfig(configPath)
	require.NoError(t, err)
	assert.Contains(t, config.MCPServers, "other")
	assert.Contains(t, config.MCPServers, ServerName)

	status, err := GetStatus(configPath)
	require.NoError(t, err)
	assert.True(t, status.Registered)
	assert.Empty(t, status.Issues)
	assert.Equal(t, "/data/acmg", status.DataDir)

	removed, err := Unregister(configPath)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = Unregister(configPath)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestGetStatus_MissingBinary(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	_, err := Register(configPath, Options{BinaryPath: "/nonexistent/mcp-server-lite"})
	require.NoError(t, err)

	status, err := GetStatus(configPath)
	require.NoError(t, err)
	assert.True(t, status.Registered)
	require.Len(t, status.Issues, 1)
	assert.Contains(t, status.Issues[0], "not found")
}

func TestLoadClientConfig(t *testing.T) {
	dir := t.TempDir()

	config, err := LoadClientConfig(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, config.MCPServers)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	_, err = LoadClientConfig(bad)
	assert.Error(t, err)
}
