package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/posthog/posthog-go"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"helioscope/internal/analysis"
	"helioscope/internal/batch"
	"helioscope/internal/common"
	"helioscope/internal/config"
	"helioscope/internal/gateway"
	"helioscope/internal/ratelimit"
	"helioscope/internal/session"
	"helioscope/internal/tiles"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// App struct
type App struct {
	ctx      context.Context
	cancel   context.CancelFunc
	settings *config.UserSettings
	mu       sync.Mutex
	devMode  bool // Enable verbose logging in dev mode only
	phClient posthog.Client

	fetcher    *tiles.Fetcher
	rateLimits *ratelimit.Tracker
	gateway    *gateway.Service
	session    *session.Session
	batch      *batch.Runner
	lastBatch  *batch.Report
}

// ProviderInfo describes one imagery provider for the provider selector
type ProviderInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	NeedsKey    bool   `json:"needsKey"`
}

// ResultView is an analysis record plus display helpers
type ResultView struct {
	session.Record
	ConfidenceLabel string `json:"confidenceLabel"`
}

// NewApp creates a new App application struct
func NewApp() *App {
	// Load user settings
	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Failed to load settings, using defaults: %v", err)
		settings = config.DefaultSettings()
	}
	log.Printf("Settings loaded from: %s", config.GetSettingsPath())

	rateLimits := ratelimit.NewTracker(nil)
	fetcher, gw, err := newGateway(context.Background(), settings, rateLimits)
	if err != nil {
		log.Printf("Failed to initialize gateway, using defaults: %v", err)
		settings = config.DefaultSettings()
		fetcher, gw, err = newGateway(context.Background(), settings, rateLimits)
		if err != nil {
			log.Fatalf("Failed to initialize gateway with default settings: %v", err)
		}
	}

	pipeline := analysis.NewPipeline(gw, analysis.NewIDGenerator())
	start := common.Coordinate{Latitude: settings.DefaultCenterLat, Longitude: settings.DefaultCenterLon}

	// Initialize PostHog
	var phClient posthog.Client
	key, host := PostHogKey, PostHogHost
	if key == "" {
		key, host = settings.PostHogKey, settings.PostHogHost
	}
	if key != "" {
		phConfig := posthog.Config{
			Endpoint: host,
		}
		client, err := posthog.NewWithConfig(key, phConfig)
		if err != nil {
			log.Printf("Failed to initialize PostHog: %v", err)
		} else {
			phClient = client
		}
	}

	return &App{
		settings:   settings,
		phClient:   phClient,
		fetcher:    fetcher,
		rateLimits: rateLimits,
		gateway:    gw,
		session:    session.New(pipeline, start, settings.AnalysisTimeout()),
		batch:      batch.NewRunner(gw, batchConfig(settings)),
	}
}

// batchConfig builds the fixed per-run parameters; an invalid provider falls back to esri
func batchConfig(s *config.UserSettings) batch.Config {
	params, err := common.NewQueryParameters(s.BatchZoom, s.BatchRadius, s.BatchProvider)
	if err != nil {
		log.Printf("Invalid batch parameters (%v), using defaults", err)
		params = common.QueryParameters{Zoom: 18, Radius: 1, Provider: common.ProviderEsri}
	}
	return batch.Config{Params: params, Name: s.BatchName, Timeout: s.BatchTimeout()}
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	// Shutdown cancels this context, which aborts any running analysis or batch
	a.ctx, a.cancel = context.WithCancel(ctx)

	a.session.Subscribe(func(state session.State) {
		wailsRuntime.EventsEmit(ctx, "session-state", state)
	})
	a.batch.OnUpdate(func(run batch.Run) {
		wailsRuntime.EventsEmit(ctx, "batch-run", run)
	})
	a.rateLimits.OnChange(func(provider string, event *ratelimit.Event) {
		if event == nil {
			wailsRuntime.EventsEmit(ctx, "rate-limit-cleared", provider)
			return
		}
		wailsRuntime.EventsEmit(ctx, "rate-limit", event)
	})

	wailsRuntime.LogInfo(ctx, fmt.Sprintf("Helioscope %s started (inference=%s store=%s)",
		AppVersion, a.settings.InferenceMode, a.settings.StoreKind))

	// Track app start
	a.TrackEvent("app_started", map[string]interface{}{
		"version": a.GetAppVersion(),
		"os":      goruntime.GOOS,
		"arch":    goruntime.GOARCH,
	})
}

// shutdown cancels in-flight work and releases backends
func (a *App) shutdown(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	if a.gateway != nil {
		if err := a.gateway.Close(); err != nil {
			log.Printf("Failed to close result store: %v", err)
		}
	}
	if a.phClient != nil {
		a.phClient.Close()
	}
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	if a.phClient != nil {
		a.phClient.Enqueue(posthog.Capture{
			DistinctId: "backend_user",
			Event:      event,
			Properties: props,
		})
	}
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

// notify reports a failure to the operator: log line, frontend event and a blocking dialog
func (a *App) notify(title string, err error, fields string) {
	message := err.Error()
	wailsRuntime.LogError(a.ctx, fmt.Sprintf("%s: %s %s", title, fields, message))
	wailsRuntime.EventsEmit(a.ctx, "system-notification", map[string]interface{}{
		"title":   title,
		"message": message,
		"type":    "error",
	})
	_, _ = wailsRuntime.MessageDialog(a.ctx, wailsRuntime.MessageDialogOptions{
		Type:    wailsRuntime.ErrorDialog,
		Title:   title,
		Message: message,
	})
}

// emitLog sends a log message to the frontend (only in dev mode)
func (a *App) emitLog(message string) {
	if a.devMode {
		wailsRuntime.EventsEmit(a.ctx, "log", message)
	}
}

// warn reports a non-fatal problem without a dialog
func (a *App) warn(title string, err error) {
	wailsRuntime.LogWarning(a.ctx, fmt.Sprintf("%s: %v", title, err))
	wailsRuntime.EventsEmit(a.ctx, "system-notification", map[string]interface{}{
		"title":   title,
		"message": err.Error(),
		"type":    "warning",
	})
}

// ===================
// Session
// ===================

// GetProviders lists the imagery providers in selector order
func (a *App) GetProviders() []ProviderInfo {
	providers := common.Providers()
	infos := make([]ProviderInfo, 0, len(providers))
	for _, p := range providers {
		infos = append(infos, ProviderInfo{
			ID:          string(p),
			DisplayName: p.DisplayName(),
			NeedsKey:    p == common.ProviderGoogle,
		})
	}
	return infos
}

// SetCoordinate updates the picked point from a map click or manual entry
func (a *App) SetCoordinate(lat, lon float64) error {
	return a.session.SetCoordinate(lat, lon)
}

// GetCoordinate returns the current picked point
func (a *App) GetCoordinate() common.Coordinate {
	return a.session.Coordinate()
}

// GetSessionState returns the full session state for the initial render
func (a *App) GetSessionState() session.State {
	return a.session.Snapshot()
}

// IsBusy reports whether an analysis is running
func (a *App) IsBusy() bool {
	return a.session.Busy()
}

// GoBack returns from the results view to the selection view
func (a *App) GoBack() {
	a.session.Back()
}

// StartAnalysis fetches imagery around the current coordinate and runs detection on it.
// A call made while another analysis runs is rejected without side effects.
func (a *App) StartAnalysis(zoom, radius int, provider string) (*ResultView, error) {
	params := common.QueryParameters{
		Zoom:     zoom,
		Radius:   radius,
		Provider: common.Provider(strings.ToLower(strings.TrimSpace(provider))),
	}
	coord := a.session.Coordinate()

	a.TrackEvent("analysis_started", map[string]interface{}{
		"provider": string(params.Provider),
		"zoom":     zoom,
		"radius":   radius,
	})

	record, err := a.session.Start(a.ctx, params)
	if errors.Is(err, session.ErrBusy) {
		log.Printf("StartAnalysis ignored: %v", err)
		return nil, err
	}
	if err != nil {
		kind := session.ErrorKind(err)
		fields := fmt.Sprintf("kind=%s lat=%.7f lon=%.7f provider=%s", kind, coord.Latitude, coord.Longitude, params.Provider)
		a.notify("Analysis failed", err, fields)
		a.TrackEvent("analysis_failed", map[string]interface{}{
			"kind":     kind,
			"provider": string(params.Provider),
		})
		return nil, err
	}

	a.emitLog(fmt.Sprintf("Analysis %s: has_solar=%t confidence=%s",
		record.Meta.SampleID, record.Result.HasSolar, common.FormatConfidence(record.Result.Confidence)))
	a.TrackEvent("analysis_succeeded", map[string]interface{}{
		"provider":   record.Meta.Provider,
		"has_solar":  record.Result.HasSolar,
		"confidence": record.Result.Confidence,
		"qc_status":  string(record.Result.QCStatus),
	})
	return &ResultView{Record: record, ConfidenceLabel: common.FormatConfidence(record.Result.Confidence)}, nil
}
