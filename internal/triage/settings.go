package triage

import (
	"context"
	"sync"
)

// Settings gates the auto-close decision. They are read at the start of
// every triage run, never cached across runs.
type Settings struct {
	AutoCloseEnabled    bool    `json:"autoCloseEnabled"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
}

// SettingsProvider yields the current triage settings.
type SettingsProvider interface {
	TriageSettings(ctx context.Context) (Settings, error)
}

// SettingsStore is an in-process, mutation-safe SettingsProvider that
// admins can update at runtime.
type SettingsStore struct {
	mu       sync.RWMutex
	settings Settings
}

// NewSettingsStore seeds the store with startup configuration.
func NewSettingsStore(initial Settings) *SettingsStore {
	return &SettingsStore{settings: initial}
}

// TriageSettings returns the current settings.
func (s *SettingsStore) TriageSettings(_ context.Context) (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

// Update replaces the current settings.
func (s *SettingsStore) Update(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}
