package cliconfig

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
host = "hl7.example.org"
port = 6661
connection_timeout = "45s"
socket_timeout = "5s"
max_attempts = 4
retry_low = "250ms"
retry_high = "10s"
wait_ack = false
keep_open = true
encoding = "windows-1252"
delimiters = "\r|^~\\&"
validate = true
log_level = "debug"
log_format = "zerolog"
metrics_addr = ":9102"

[watch]
pattern = "*.txt"
debounce = "1s"
archive_dir = "/var/spool/hl7/sent"
`

func TestLoadFileConfig(t *testing.T) {
	require := require.New(t)

	fs := afero.NewMemMapFs()
	require.NoError(afero.WriteFile(fs, "/etc/hl7send/config.toml", []byte(sampleConfig), 0o644))
	require.True(FileExists(fs, "/etc/hl7send/config.toml"))
	require.False(FileExists(fs, "/etc/hl7send/missing.toml"))

	fc, err := LoadFileConfig(fs, "/etc/hl7send/config.toml")
	require.NoError(err)
	require.Equal("hl7.example.org", fc.Host)
	require.Equal(6661, fc.Port)
	require.Equal("\r|^~\\&", fc.Delimiters)
	require.NotNil(fc.WaitAck)
	require.False(*fc.WaitAck)
	require.Nil(fc.TLS)
	require.Equal("*.txt", fc.Watch.Pattern)

	cfg := DefaultConfig()
	require.NoError(ApplyFileConfig(&cfg, fc, map[string]bool{}))
	require.NoError(cfg.Validate())

	require.Equal("hl7.example.org", cfg.Host)
	require.Equal(6661, cfg.Port)
	require.Equal(45*time.Second, cfg.ConnectionTimeout)
	require.Equal(5*time.Second, cfg.SocketTimeout)
	require.Equal(4, cfg.MaxAttempts)
	require.Equal(250*time.Millisecond, cfg.RetryLow)
	require.Equal(10*time.Second, cfg.RetryHigh)
	require.False(cfg.WaitAck)
	require.True(cfg.KeepOpen)
	require.True(cfg.ValidateHeaders)
	require.False(cfg.TLS)
	require.Equal("windows-1252", cfg.Encoding)
	require.Equal("debug", cfg.LogLevel)
	require.Equal(LogFormatZerolog, cfg.LogFormat)
	require.Equal(":9102", cfg.MetricsAddr)
	require.Equal("*.txt", cfg.WatchPattern)
	require.Equal(time.Second, cfg.WatchDebounce)
	require.Equal("/var/spool/hl7/sent", cfg.ArchiveDir)
}

func TestLoadFileConfig_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := LoadFileConfig(fs, "/missing.toml")
	require.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/broken.toml", []byte("host = "), 0o644))
	_, err = LoadFileConfig(fs, "/broken.toml")
	require.Error(t, err)
}

func TestApplyFileConfig(t *testing.T) {
	trueVal := true

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name:       "applies values",
			fileConfig: FileConfig{Host: "a", Port: 2000, RetryLow: "2s", TLS: &trueVal},
			changed:    map[string]bool{},
			expected:   Config{Host: "a", Port: 2000, RetryLow: 2 * time.Second, TLS: true},
		},
		{
			name:       "respects changed flags",
			fileConfig: FileConfig{Host: "file-host", Port: 2000, KeepOpen: &trueVal},
			changed:    map[string]bool{"host": true, "keep-open": true},
			initial:    Config{Host: "flag-host"},
			expected:   Config{Host: "flag-host", Port: 2000},
		},
		{
			name:       "skips empty and non-positive values",
			fileConfig: FileConfig{Port: -1, MaxAttempts: 0},
			changed:    map[string]bool{},
			initial:    Config{Port: 2575, MaxAttempts: 10},
			expected:   Config{Port: 2575, MaxAttempts: 10},
		},
		{
			name:       "invalid duration",
			fileConfig: FileConfig{SocketTimeout: "soon"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
		{
			name:       "invalid watch debounce",
			fileConfig: FileConfig{Watch: WatchFileConfig{Debounce: "later"}},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, cfg)
		})
	}
}
