package models

import "time"

// SystemConfig is one runtime configuration record. Sensitive values are
// stored AES-GCM encrypted; only whitelisted keys are writable.
type SystemConfig struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Encrypted bool      `json:"encrypted"`
	Sensitive bool      `json:"sensitive"`
	Category  string    `json:"category"`
	UpdatedAt time.Time `json:"updated_at"`
}
