package domain

import "time"

// SyncSettings is the persisted, user-controlled sync configuration. Key is
// the password-derived symmetric key, base64 encoded.
type SyncSettings struct {
	Enabled bool   `json:"sync_enabled" yaml:"sync_enabled"`
	Key     string `json:"-" yaml:"shared_key,omitempty"`
}

type UpdateSyncSettingsRequest struct {
	Enabled  bool   `json:"enabled"`
	Password string `json:"password" validate:"omitempty,min=8,max=256"`
}

type SyncStatus struct {
	DeviceID   string     `json:"device_id"`
	Enabled    bool       `json:"enabled"`
	Active     bool       `json:"active"`
	HasKey     bool       `json:"has_key"`
	Topic      string     `json:"topic,omitempty"`
	LastNotice *time.Time `json:"last_notice,omitempty"`
}

const ExportFormatVersion = 1

type ExportData struct {
	Notes      []Note     `json:"notes"`
	Envelopes  []Envelope `json:"envelopes"`
	Labels     []Label    `json:"labels"`
	Version    int        `json:"version"`
	ExportedAt time.Time  `json:"exported_at"`
}

type ImportResult struct {
	Adopted   int `json:"adopted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Rejected  int `json:"rejected"`
}
