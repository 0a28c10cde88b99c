// Package credpool manages the rotating pool of authenticated platform
// sessions: persistence, encryption at rest, rotation selection and the
// health/cooldown state machine.
package credpool

import "time"

// Status is the health state of a pooled credential.
type Status string

const (
	// StatusHealthy credentials participate in rotation.
	StatusHealthy Status = "healthy"
	// StatusCooldown credentials are suspended until CooldownUntil.
	StatusCooldown Status = "cooldown"
	// StatusExpired credentials were rejected by the platform and need
	// operator replacement. Never auto-reclaimed.
	StatusExpired Status = "expired"
	// StatusDisabled credentials are excluded by an operator.
	StatusDisabled Status = "disabled"
)

// Credential is a persisted platform session. The secret is opaque
// ciphertext to every component except the pool itself.
type Credential struct {
	ID              string `gorm:"primaryKey;type:varchar(36)"`
	Platform        string `gorm:"index;not null"`
	Label           string
	EncryptedSecret string `gorm:"not null"`
	Status          Status `gorm:"type:varchar(16);not null;default:'healthy'"`
	Enabled         bool   `gorm:"not null;default:true"`
	UseCount        int64  `gorm:"not null;default:0"`
	SuccessCount    int64  `gorm:"not null;default:0"`
	ErrorCount      int64  `gorm:"not null;default:0"`
	LastUsedAt      *time.Time
	CooldownUntil   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// InRotation reports whether the credential can be handed out right now
// without reclamation.
func (c *Credential) InRotation(now time.Time) bool {
	if !c.Enabled || c.Status != StatusHealthy {
		return false
	}
	return c.CooldownUntil == nil || !c.CooldownUntil.After(now)
}

// CooldownLapsed reports whether a cooling-down credential is eligible
// for reclamation back to healthy.
func (c *Credential) CooldownLapsed(now time.Time) bool {
	return c.Status == StatusCooldown &&
		(c.CooldownUntil == nil || !c.CooldownUntil.After(now))
}

// PoolStats aggregates a platform's pool state for the admin surface.
type PoolStats struct {
	Platform     string           `json:"platform"`
	Total        int64            `json:"total"`
	ByStatus     map[Status]int64 `json:"by_status"`
	UseCount     int64            `json:"use_count"`
	SuccessCount int64            `json:"success_count"`
	ErrorCount   int64            `json:"error_count"`
}
