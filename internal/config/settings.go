package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Inference backends
const (
	InferenceHTTP = "http"
	InferenceExec = "exec"
)

// Persistence backends
const (
	StoreFile     = "file"
	StoreS3       = "s3"
	StorePostgres = "postgres"
	StoreNone     = "none"
)

// S3Settings configures the S3-compatible result store
type S3Settings struct {
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
	Bucket    string `json:"bucket"`
	UseSSL    bool   `json:"useSSL"`
}

// UserSettings represents persistent user preferences
type UserSettings struct {
	// Default map settings
	DefaultCenterLat float64 `json:"defaultCenterLat"`
	DefaultCenterLon float64 `json:"defaultCenterLon"`
	DefaultZoom      int     `json:"defaultZoom"`
	DefaultRadius    int     `json:"defaultRadius"`
	DefaultProvider  string  `json:"defaultProvider"`
	GoogleAPIKey     string  `json:"googleApiKey,omitempty"`

	// Tile fetching
	TileWorkers        int `json:"tileWorkers"`
	TileCacheEntries   int `json:"tileCacheEntries"`
	TileTimeoutSeconds int `json:"tileTimeoutSeconds"`

	// Inference backend
	InferenceMode    string `json:"inferenceMode"` // "http" or "exec"
	InferenceURL     string `json:"inferenceUrl"`
	PythonPath       string `json:"pythonPath"`
	ModelRunnerPath  string `json:"modelRunnerPath"`
	ModelPath        string `json:"modelPath"`
	InferenceTimeout int    `json:"inferenceTimeoutSeconds"`

	// Persistence
	StoreKind   string     `json:"storeKind"` // "file", "s3", "postgres", "none"
	OutputDir   string     `json:"outputDir"`
	S3          S3Settings `json:"s3"`
	PostgresURL string     `json:"postgresUrl,omitempty"`

	// Pipeline bounds
	AnalysisTimeoutSeconds int `json:"analysisTimeoutSeconds"`
	BatchTimeoutSeconds    int `json:"batchTimeoutSeconds"`

	// Batch parameters shared by every row
	BatchZoom     int    `json:"batchZoom"`
	BatchRadius   int    `json:"batchRadius"`
	BatchProvider string `json:"batchProvider"`
	BatchName     string `json:"batchName"`

	// Telemetry
	PostHogKey  string `json:"postHogKey,omitempty"`
	PostHogHost string `json:"postHogHost,omitempty"`

	// fileValues holds what ApplyEnv overwrote, keyed by variable name
	fileValues map[string]any
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	homeDir, _ := os.UserHomeDir()
	outputDir := filepath.Join(homeDir, "Documents", "helioscope")

	return &UserSettings{
		DefaultCenterLat:       12.8604075, // Bengaluru, India
		DefaultCenterLon:       77.6625644,
		DefaultZoom:            18,
		DefaultRadius:          1,
		DefaultProvider:        "esri",
		TileWorkers:            8,
		TileCacheEntries:       512,
		TileTimeoutSeconds:     15,
		InferenceMode:          InferenceHTTP,
		InferenceURL:           "http://127.0.0.1:8000",
		PythonPath:             "python3",
		ModelRunnerPath:        "run_model.py",
		ModelPath:              "best.pt",
		InferenceTimeout:       90,
		StoreKind:              StoreFile,
		OutputDir:              outputDir,
		S3:                     S3Settings{Region: "us-east-1", Bucket: "helioscope-results"},
		AnalysisTimeoutSeconds: 120,
		BatchTimeoutSeconds:    1800,
		BatchZoom:              18,
		BatchRadius:            1,
		BatchProvider:          "esri",
		BatchName:              "batch",
	}
}

// AnalysisTimeout bounds one interactive analysis
func (s *UserSettings) AnalysisTimeout() time.Duration {
	return time.Duration(s.AnalysisTimeoutSeconds) * time.Second
}

// BatchTimeout bounds one batch run
func (s *UserSettings) BatchTimeout() time.Duration {
	return time.Duration(s.BatchTimeoutSeconds) * time.Second
}

// TileTimeout bounds a single tile request
func (s *UserSettings) TileTimeout() time.Duration {
	return time.Duration(s.TileTimeoutSeconds) * time.Second
}

// InferenceRequestTimeout bounds a single inference call
func (s *UserSettings) InferenceRequestTimeout() time.Duration {
	return time.Duration(s.InferenceTimeout) * time.Second
}

// GetSettingsPath returns the OS-specific settings file path
func GetSettingsPath() string {
	if override := strings.TrimSpace(os.Getenv("HELIOSCOPE_SETTINGS_PATH")); override != "" {
		return override
	}

	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".helioscope", "settings", "settings.json")
}

// LoadSettings loads user settings from disk, then applies .env and environment overrides
func LoadSettings() (*UserSettings, error) {
	settings, err := loadSettingsFile(GetSettingsPath())
	if err != nil {
		return nil, err
	}

	// .env is optional
	_ = godotenv.Load()
	ApplyEnv(settings)

	return settings, nil
}

func loadSettingsFile(settingsPath string) (*UserSettings, error) {
	// If file doesn't exist, return defaults
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	mergeDefaults(&settings, DefaultSettings())

	// Zero is a valid radius, so only a missing key takes the default
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err == nil {
		defaults := DefaultSettings()
		if _, ok := keys["defaultRadius"]; !ok {
			settings.DefaultRadius = defaults.DefaultRadius
		}
		if _, ok := keys["batchRadius"]; !ok {
			settings.BatchRadius = defaults.BatchRadius
		}
	}
	return &settings, nil
}

// mergeDefaults fills zero-valued fields from defaults
func mergeDefaults(settings, defaults *UserSettings) {
	if settings.DefaultZoom == 0 {
		settings.DefaultZoom = defaults.DefaultZoom
	}
	if settings.DefaultProvider == "" {
		settings.DefaultProvider = defaults.DefaultProvider
	}
	if settings.DefaultCenterLat == 0 && settings.DefaultCenterLon == 0 {
		settings.DefaultCenterLat = defaults.DefaultCenterLat
		settings.DefaultCenterLon = defaults.DefaultCenterLon
	}
	if settings.TileWorkers == 0 {
		settings.TileWorkers = defaults.TileWorkers
	}
	if settings.TileCacheEntries == 0 {
		settings.TileCacheEntries = defaults.TileCacheEntries
	}
	if settings.TileTimeoutSeconds == 0 {
		settings.TileTimeoutSeconds = defaults.TileTimeoutSeconds
	}
	if settings.InferenceMode == "" {
		settings.InferenceMode = defaults.InferenceMode
	}
	if settings.InferenceURL == "" {
		settings.InferenceURL = defaults.InferenceURL
	}
	if settings.PythonPath == "" {
		settings.PythonPath = defaults.PythonPath
	}
	if settings.ModelRunnerPath == "" {
		settings.ModelRunnerPath = defaults.ModelRunnerPath
	}
	if settings.ModelPath == "" {
		settings.ModelPath = defaults.ModelPath
	}
	if settings.InferenceTimeout == 0 {
		settings.InferenceTimeout = defaults.InferenceTimeout
	}
	if settings.StoreKind == "" {
		settings.StoreKind = defaults.StoreKind
	}
	if settings.OutputDir == "" {
		settings.OutputDir = defaults.OutputDir
	}
	if settings.S3.Region == "" {
		settings.S3.Region = defaults.S3.Region
	}
	if settings.S3.Bucket == "" {
		settings.S3.Bucket = defaults.S3.Bucket
	}
	if settings.AnalysisTimeoutSeconds == 0 {
		settings.AnalysisTimeoutSeconds = defaults.AnalysisTimeoutSeconds
	}
	if settings.BatchTimeoutSeconds == 0 {
		settings.BatchTimeoutSeconds = defaults.BatchTimeoutSeconds
	}
	if settings.BatchZoom == 0 {
		settings.BatchZoom = defaults.BatchZoom
	}
	if settings.BatchProvider == "" {
		settings.BatchProvider = defaults.BatchProvider
	}
	if settings.BatchName == "" {
		settings.BatchName = defaults.BatchName
	}
}

// envBinding ties one HELIOSCOPE_* variable to the field it overrides
type envBinding struct {
	key   string
	field func(*UserSettings) any
}

var envBindings = []envBinding{
	{"HELIOSCOPE_GOOGLE_API_KEY", func(s *UserSettings) any { return &s.GoogleAPIKey }},
	{"HELIOSCOPE_INFERENCE_MODE", func(s *UserSettings) any { return &s.InferenceMode }},
	{"HELIOSCOPE_INFERENCE_URL", func(s *UserSettings) any { return &s.InferenceURL }},
	{"HELIOSCOPE_PYTHON", func(s *UserSettings) any { return &s.PythonPath }},
	{"HELIOSCOPE_MODEL_RUNNER", func(s *UserSettings) any { return &s.ModelRunnerPath }},
	{"HELIOSCOPE_MODEL_PATH", func(s *UserSettings) any { return &s.ModelPath }},
	{"HELIOSCOPE_STORE", func(s *UserSettings) any { return &s.StoreKind }},
	{"HELIOSCOPE_OUTPUT_DIR", func(s *UserSettings) any { return &s.OutputDir }},
	{"HELIOSCOPE_DATABASE_URL", func(s *UserSettings) any { return &s.PostgresURL }},
	{"HELIOSCOPE_S3_ENDPOINT", func(s *UserSettings) any { return &s.S3.Endpoint }},
	{"HELIOSCOPE_S3_REGION", func(s *UserSettings) any { return &s.S3.Region }},
	{"HELIOSCOPE_S3_ACCESS_KEY", func(s *UserSettings) any { return &s.S3.AccessKey }},
	{"HELIOSCOPE_S3_SECRET_KEY", func(s *UserSettings) any { return &s.S3.SecretKey }},
	{"HELIOSCOPE_S3_BUCKET", func(s *UserSettings) any { return &s.S3.Bucket }},
	{"HELIOSCOPE_S3_USE_SSL", func(s *UserSettings) any { return &s.S3.UseSSL }},
	{"HELIOSCOPE_ANALYSIS_TIMEOUT_SECONDS", func(s *UserSettings) any { return &s.AnalysisTimeoutSeconds }},
	{"HELIOSCOPE_BATCH_TIMEOUT_SECONDS", func(s *UserSettings) any { return &s.BatchTimeoutSeconds }},
	{"HELIOSCOPE_POSTHOG_KEY", func(s *UserSettings) any { return &s.PostHogKey }},
	{"HELIOSCOPE_POSTHOG_HOST", func(s *UserSettings) any { return &s.PostHogHost }},
}

// ApplyEnv overrides settings with HELIOSCOPE_* environment variables.
// The values they replace are remembered so Persisted can put them back.
func ApplyEnv(s *UserSettings) {
	for _, b := range envBindings {
		var previous any
		switch field := b.field(s).(type) {
		case *string:
			value := envOr(b.key, *field)
			if value == *field {
				continue
			}
			previous, *field = *field, value
		case *int:
			value := envOrInt(b.key, *field)
			if value == *field {
				continue
			}
			previous, *field = *field, value
		case *bool:
			value := envOrBool(b.key, *field)
			if value == *field {
				continue
			}
			previous, *field = *field, value
		}

		if s.fileValues == nil {
			s.fileValues = make(map[string]any)
		}
		// Keep the first value seen; a second pass must not record an env value as the file's
		if _, seen := s.fileValues[b.key]; !seen {
			s.fileValues[b.key] = previous
		}
	}
}

// Persisted returns a copy with every environment override replaced by the
// value it shadowed. This is what goes to disk and to the frontend.
func (s *UserSettings) Persisted() *UserSettings {
	out := *s
	out.fileValues = nil
	for _, b := range envBindings {
		previous, ok := s.fileValues[b.key]
		if !ok {
			continue
		}
		switch field := b.field(&out).(type) {
		case *string:
			*field = previous.(string)
		case *int:
			*field = previous.(int)
		case *bool:
			*field = previous.(bool)
		}
	}
	return &out
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// SaveSettings saves user settings to disk
func SaveSettings(settings *UserSettings) error {
	settingsPath := GetSettingsPath()

	// Ensure directory exists
	dir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings.Persisted(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// Validate checks settings that the app cannot run without
func (s *UserSettings) Validate() error {
	if s.AnalysisTimeoutSeconds <= 0 {
		return fmt.Errorf("analysis timeout must be positive")
	}
	if s.BatchTimeoutSeconds <= 0 {
		return fmt.Errorf("batch timeout must be positive")
	}

	switch s.InferenceMode {
	case InferenceHTTP:
		if s.InferenceURL == "" {
			return fmt.Errorf("inference URL is required for http mode")
		}
	case InferenceExec:
		if s.ModelRunnerPath == "" || s.ModelPath == "" {
			return fmt.Errorf("model runner and model path are required for exec mode")
		}
	default:
		return fmt.Errorf("invalid inference mode: %s (must be http or exec)", s.InferenceMode)
	}

	switch s.StoreKind {
	case StoreFile:
		if s.OutputDir == "" {
			return fmt.Errorf("output directory cannot be empty")
		}
	case StoreS3:
		if s.S3.Endpoint == "" || s.S3.Bucket == "" {
			return fmt.Errorf("s3 endpoint and bucket are required")
		}
	case StorePostgres:
		if s.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required")
		}
	case StoreNone:
	default:
		return fmt.Errorf("invalid store kind: %s (must be file, s3, postgres, or none)", s.StoreKind)
	}

	return nil
}
