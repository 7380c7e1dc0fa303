package main

import (
	"log"

	"helioscope/internal/config"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current user settings
func (a *App) GetSettings() (*config.UserSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Environment overrides stay in the backend
	return a.settings.Persisted(), nil
}

// SaveSettings saves user settings to disk and updates app state
func (a *App) SaveSettings(settings *config.UserSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Save to disk
	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	// Batch parameters apply to the next run
	config.ApplyEnv(settings)
	a.settings = settings
	a.batch.SetConfig(batchConfig(settings))

	// Note: backend, store and timeout settings require app restart to take effect
	log.Printf("Settings saved. Backend and store settings will apply on next restart.")

	return nil
}

// GetSettingsPath returns the OS-specific settings file path
func (a *App) GetSettingsPath() string {
	return config.GetSettingsPath()
}

// SaveMapPosition stores the current coordinate as the start point for the next launch
func (a *App) SaveMapPosition(lat, lon float64) error {
	if err := a.session.SetCoordinate(lat, lon); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.settings.DefaultCenterLat = lat
	a.settings.DefaultCenterLon = lon

	if err := config.SaveSettings(a.settings); err != nil {
		return err
	}

	log.Printf("Saved map position: lat=%.6f, lon=%.6f", lat, lon)
	return nil
}
