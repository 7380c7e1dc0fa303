package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsReturnsDefaultsWhenMissing(t *testing.T) {
	t.Setenv("HELIOSCOPE_SETTINGS_PATH", filepath.Join(t.TempDir(), "settings.json"))

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 18, settings.DefaultZoom)
	assert.Equal(t, 1, settings.DefaultRadius)
	assert.Equal(t, "esri", settings.DefaultProvider)
	assert.Equal(t, StoreFile, settings.StoreKind)
	assert.NoError(t, settings.Validate())
}

func TestSaveThenLoadMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	t.Setenv("HELIOSCOPE_SETTINGS_PATH", path)

	require.NoError(t, SaveSettings(&UserSettings{DefaultZoom: 16, InferenceMode: InferenceExec}))

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 16, settings.DefaultZoom)
	assert.Equal(t, InferenceExec, settings.InferenceMode)
	assert.Equal(t, "esri", settings.BatchProvider)
	assert.Equal(t, 120, settings.AnalysisTimeoutSeconds)
}

func TestLoadSettingsRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	t.Setenv("HELIOSCOPE_SETTINGS_PATH", path)

	_, err := LoadSettings()
	assert.Error(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("HELIOSCOPE_SETTINGS_PATH", filepath.Join(t.TempDir(), "settings.json"))
	t.Setenv("HELIOSCOPE_STORE", StoreS3)
	t.Setenv("HELIOSCOPE_S3_ENDPOINT", "localhost:9000")
	t.Setenv("HELIOSCOPE_S3_USE_SSL", "true")
	t.Setenv("HELIOSCOPE_ANALYSIS_TIMEOUT_SECONDS", "30")
	t.Setenv("HELIOSCOPE_BATCH_TIMEOUT_SECONDS", "not-a-number")

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, StoreS3, settings.StoreKind)
	assert.Equal(t, "localhost:9000", settings.S3.Endpoint)
	assert.True(t, settings.S3.UseSSL)
	assert.Equal(t, 30, settings.AnalysisTimeoutSeconds)
	assert.Equal(t, 1800, settings.BatchTimeoutSeconds)
	assert.NoError(t, settings.Validate())
}

func TestValidate(t *testing.T) {
	s := DefaultSettings()
	s.InferenceMode = "grpc"
	assert.Error(t, s.Validate())

	s = DefaultSettings()
	s.StoreKind = StorePostgres
	assert.Error(t, s.Validate())
	s.PostgresURL = "postgres://localhost/helioscope"
	assert.NoError(t, s.Validate())

	s = DefaultSettings()
	s.AnalysisTimeoutSeconds = 0
	assert.Error(t, s.Validate())
}

func TestEnvironmentSecretsStayOffDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	t.Setenv("HELIOSCOPE_SETTINGS_PATH", path)
	t.Setenv("HELIOSCOPE_S3_SECRET_KEY", "env-only-secret")
	t.Setenv("HELIOSCOPE_DATABASE_URL", "postgres://user:pw@db/helioscope")
	t.Setenv("HELIOSCOPE_ANALYSIS_TIMEOUT_SECONDS", "30")

	settings, err := LoadSettings()
	require.NoError(t, err)
	settings.DefaultCenterLat = 48.85
	require.NoError(t, SaveSettings(settings))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "env-only-secret")
	assert.NotContains(t, string(data), "postgres://user:pw@db/helioscope")
	assert.Contains(t, string(data), "48.85")

	// The running process keeps the overrides
	assert.Equal(t, "env-only-secret", settings.S3.SecretKey)
	assert.Equal(t, "postgres://user:pw@db/helioscope", settings.PostgresURL)
	assert.Equal(t, 30, settings.AnalysisTimeoutSeconds)

	persisted := settings.Persisted()
	assert.Empty(t, persisted.S3.SecretKey)
	assert.Empty(t, persisted.PostgresURL)
	assert.Equal(t, 120, persisted.AnalysisTimeoutSeconds)
	assert.Equal(t, 48.85, persisted.DefaultCenterLat)

	os.Unsetenv("HELIOSCOPE_S3_SECRET_KEY")
	os.Unsetenv("HELIOSCOPE_DATABASE_URL")
	os.Unsetenv("HELIOSCOPE_ANALYSIS_TIMEOUT_SECONDS")

	reloaded, err := LoadSettings()
	require.NoError(t, err)
	assert.Empty(t, reloaded.S3.SecretKey)
	assert.Empty(t, reloaded.PostgresURL)
	assert.Equal(t, 120, reloaded.AnalysisTimeoutSeconds)
	assert.Equal(t, 48.85, reloaded.DefaultCenterLat)
}

func TestApplyEnvTwiceKeepsFileValue(t *testing.T) {
	t.Setenv("HELIOSCOPE_GOOGLE_API_KEY", "from-env")

	s := DefaultSettings()
	s.GoogleAPIKey = "from-file"
	ApplyEnv(s)
	ApplyEnv(s)

	assert.Equal(t, "from-env", s.GoogleAPIKey)
	assert.Equal(t, "from-file", s.Persisted().GoogleAPIKey)
}

func TestRadiusDefaultsOnlyWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	t.Setenv("HELIOSCOPE_SETTINGS_PATH", path)

	require.NoError(t, os.WriteFile(path, []byte(`{"defaultZoom": 17}`), 0600))
	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 1, settings.DefaultRadius)
	assert.Equal(t, 1, settings.BatchRadius)

	require.NoError(t, os.WriteFile(path, []byte(`{"defaultRadius": 0, "batchRadius": 0}`), 0600))
	settings, err = LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 0, settings.DefaultRadius)
	assert.Equal(t, 0, settings.BatchRadius)
}
