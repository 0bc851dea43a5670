package domain

import "time"

// Idempotency records the entry produced by a ticket-issuance request,
// keyed by (provider_key, key). A retried request carrying the same key is
// answered with the recorded entry instead of allocating a new number.
type Idempotency struct {
	ID          string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	ProviderKey string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_provider_key,priority:1"`
	Key         string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_provider_key,priority:2"`
	EntryID     string    `gorm:"type:TEXT NOT NULL"`
	Status      int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt   time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt   time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
