package model

import "time"

// Settings is the singleton application settings record, created lazily on
// first read.
type Settings struct {
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
	Currency      string    `json:"currency"`
	SetupComplete bool      `json:"setupComplete"`
}

// SettingsPatch carries a partial settings update. Nil fields keep their
// existing values.
type SettingsPatch struct {
	Currency      *string
	SetupComplete *bool
}

// ApplyPatch merges the set fields of the patch into the settings record.
func (s *Settings) ApplyPatch(p SettingsPatch) {
	if p.Currency != nil {
		s.Currency = *p.Currency
	}
	if p.SetupComplete != nil {
		s.SetupComplete = *p.SetupComplete
	}
}
