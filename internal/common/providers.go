package common

import (
	"fmt"
	"strings"
)

// Provider identifies the imagery source used for a tile fetch
type Provider string

// Provider identifiers, always lower-case
const (
	ProviderEsri   Provider = "esri"
	ProviderGoogle Provider = "google"
	ProviderBing   Provider = "bing"
	ProviderGIBS   Provider = "gibs"
)

// Display names shown in the UI
const (
	DisplayNameEsri   = "ESRI World Imagery"
	DisplayNameGoogle = "Google (API key required)"
	DisplayNameBing   = "Bing Aerial"
	DisplayNameGIBS   = "NASA GIBS (single image)"
)

// Zoom and radius bounds accepted by the analysis pipeline
const (
	MinZoom   = 1
	MaxZoom   = 22
	MinRadius = 0
	MaxRadius = 5
)

// Providers lists every supported provider in UI order
func Providers() []Provider {
	return []Provider{ProviderEsri, ProviderGoogle, ProviderBing, ProviderGIBS}
}

// ParseProvider converts a user-supplied provider name to a Provider.
// Matching is case-insensitive.
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	switch p {
	case ProviderEsri, ProviderGoogle, ProviderBing, ProviderGIBS:
		return p, nil
	default:
		return "", fmt.Errorf("unknown provider: %q (must be esri, google, bing, or gibs)", name)
	}
}

// DisplayName returns the human-readable provider name
func (p Provider) DisplayName() string {
	switch p {
	case ProviderEsri:
		return DisplayNameEsri
	case ProviderGoogle:
		return DisplayNameGoogle
	case ProviderBing:
		return DisplayNameBing
	case ProviderGIBS:
		return DisplayNameGIBS
	}
	return string(p)
}
