package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"port": 9090,
		"database_url": "postgres://localhost/apply",
		"default_min_score": 60,
		"retry_backoff": "2s",
		"resume_tailoring_enabled": true,
		"show_browser": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres://localhost/apply", cfg.DatabaseURL)
	assert.Equal(t, 60.0, cfg.DefaultMinScore)
	assert.Equal(t, 2*time.Second, cfg.RetryBackoffDuration())
	assert.True(t, cfg.ResumeTailoringEnabled)
	assert.True(t, cfg.ShowBrowser)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "valid", cfg: Config{DefaultMinScore: 80, RetryBackoff: "500ms", LogLevel: "debug"}},
		{name: "empty is valid", cfg: Config{}},
		{name: "min score too high", cfg: Config{DefaultMinScore: 101}, wantErr: "default_min_score"},
		{name: "negative port", cfg: Config{Port: -1}, wantErr: "port"},
		{name: "bad backoff", cfg: Config{RetryBackoff: "soon"}, wantErr: "retry_backoff"},
		{name: "negative step delay", cfg: Config{StepDelay: "-1s"}, wantErr: "step_delay"},
		{name: "unknown log level", cfg: Config{LogLevel: "chatty"}, wantErr: "log_level"},
		{name: "unknown resume format", cfg: Config{ResumeFormat: "docx"}, wantErr: "resume_format"},
		{name: "latex needs template", cfg: Config{ResumeFormat: "latex"}, wantErr: "template_path"},
		{name: "missing template", cfg: Config{TemplatePath: "/nonexistent/resume.tex"}, wantErr: "template file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/apply")
	t.Setenv("REDIS_URL", "redis://env:6379/0")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("PORT", "7070")
	t.Setenv("RESUME_TAILORING_ENABLED", "true")

	cfg := Config{DatabaseURL: "postgres://file/apply", Port: 8080}
	cfg.ApplyEnv()

	assert.Equal(t, "postgres://env/apply", cfg.DatabaseURL)
	assert.Equal(t, "redis://env:6379/0", cfg.RedisURL)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 7070, cfg.Port)
	assert.True(t, cfg.ResumeTailoringEnabled)
}

func TestApplyEnv_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("PORT", "eighty")
	t.Setenv("RESUME_TAILORING_ENABLED", "maybe")

	cfg := Config{Port: 8080}
	cfg.ApplyEnv()

	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.ResumeTailoringEnabled)
}

func TestMergeWithDefaults(t *testing.T) {
	partial := Config{
		DatabaseURL:  "postgres://custom/apply",
		RetryBackoff: "3s",
	}

	merged := partial.MergeWithDefaults(Defaults())

	assert.Equal(t, "postgres://custom/apply", merged.DatabaseURL)
	assert.Equal(t, "3s", merged.RetryBackoff)

	assert.Equal(t, DefaultPort, merged.Port)
	assert.Equal(t, DefaultMinScore, merged.DefaultMinScore)
	assert.Equal(t, "html", merged.ResumeFormat)
	assert.Equal(t, DefaultOutputDir, merged.OutputDir)
	assert.Equal(t, "info", merged.LogLevel)
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://x"}

	merged := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, "postgres://x", merged.DatabaseURL)
	assert.Zero(t, merged.Port)
}

func TestDurationFallbacks(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, DefaultRetryBackoff, cfg.RetryBackoffDuration())
	assert.Equal(t, DefaultTailoringBudget, cfg.TailoringBudgetDuration())
	assert.Equal(t, DefaultResolverTTL, cfg.ResolverCacheTTLDuration())
	assert.Zero(t, cfg.StepDelayDuration())

	cfg.StepDelay = "250ms"
	assert.Equal(t, 250*time.Millisecond, cfg.StepDelayDuration())
}
