// Package domain defines the persistence models for the walk-in queue:
// entries, the per-provider service-time estimate, provider availability,
// and the per-day sequence counter. These types are mapped with GORM and
// form the core data layer of the queue engine.
package domain

import (
	"time"
)

// DayLayout is the calendar-date format used for QueueEntry.Day and
// SequenceCounter.Day.
const DayLayout = "2006-01-02"

// DayOf returns the service day of t in loc.
func DayOf(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// QueueEntry represents one participant's admission to a provider's queue
// for a given service day.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Day / ProviderKey: the queue scope; SequenceNumber is unique within it.
//   - SequenceNumber: dense ticket number starting at 1.
//   - ParticipantRef: normalized reference of the participant (phone, card no).
//   - Manual: true for staff-added walk-ins (skips the duplicate rule).
//   - Status: lifecycle state, see lifecycle.go.
//   - ReservedAt / ServiceStartedAt / CompletedAt / WithdrawnAt / ExpiredAt:
//     set by transitions, never cleared.
//   - ServiceDurationMs: filled once at completion.
//   - EstimatedServiceAt: written only by the ETA propagation pass.
//   - Version: optimistic concurrency counter for conditional updates.
type QueueEntry struct {
	ID                 string     `json:"id"                             gorm:"type:char(36);primaryKey"`
	Day                string     `json:"day"                            gorm:"type:char(10);not null;uniqueIndex:ux_entry_seq,priority:1;index:idx_entry_scope,priority:1"`
	ProviderKey        string     `json:"provider_key"                   gorm:"type:varchar(64);not null;uniqueIndex:ux_entry_seq,priority:2;index:idx_entry_scope,priority:2"`
	SequenceNumber     int64      `json:"sequence_number"                gorm:"not null;uniqueIndex:ux_entry_seq,priority:3"`
	ParticipantRef     string     `json:"participant_ref"                gorm:"type:varchar(128);not null;index:idx_entry_participant"`
	Manual             bool       `json:"manual"                         gorm:"not null;default:false"`
	Status             Status     `json:"status"                         gorm:"type:varchar(16);not null;index:idx_entry_scope,priority:3;check:status IN ('pending','reserved','in_service','completed','expired','withdrawn')"`
	CreatedAt          time.Time  `json:"created_at"`
	ReservedAt         *time.Time `json:"reserved_at,omitempty"`
	ServiceStartedAt   *time.Time `json:"service_started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	WithdrawnAt        *time.Time `json:"withdrawn_at,omitempty"`
	ExpiredAt          *time.Time `json:"expired_at,omitempty"`
	ServiceDurationMs  *int64     `json:"service_duration_ms,omitempty"`
	EstimatedServiceAt *time.Time `json:"estimated_service_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Version            int64      `json:"version"                        gorm:"not null;default:1"`
}

// TableName returns the database table name for QueueEntry.
func (QueueEntry) TableName() string { return "queue_entries" }

// NoShowReference returns the timestamp the no-show threshold is measured
// from: ReservedAt when set, otherwise CreatedAt.
func (e *QueueEntry) NoShowReference() time.Time {
	if e.ReservedAt != nil {
		return *e.ReservedAt
	}
	return e.CreatedAt
}

// ServiceTimeEstimate is the smoothed per-entry service duration of one provider.
// It is created lazily on first completion and never deleted.
type ServiceTimeEstimate struct {
	ProviderKey     string    `json:"provider_key"     gorm:"type:varchar(64);primaryKey"`
	AverageMs       int64     `json:"average_ms"       gorm:"not null"`
	SmoothingFactor float64   `json:"smoothing_factor" gorm:"not null;check:smoothing_factor > 0 AND smoothing_factor <= 1"`
	Samples         int64     `json:"samples"          gorm:"not null;default:0"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name for ServiceTimeEstimate.
func (ServiceTimeEstimate) TableName() string { return "service_time_estimates" }

// ServiceAvailability records whether a provider is currently serving.
// An absent record reads as stopped.
type ServiceAvailability struct {
	ProviderKey string     `json:"provider_key" gorm:"type:varchar(64);primaryKey"`
	Running     bool       `json:"running"      gorm:"not null;default:false"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	StoppedAt   *time.Time `json:"stopped_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ServiceAvailability.
func (ServiceAvailability) TableName() string { return "service_availability" }

// SequenceCounter is the last issued ticket number for (Day, ProviderKey).
// It is only mutated through an atomic upsert.
type SequenceCounter struct {
	Day         string    `gorm:"type:char(10);primaryKey"`
	ProviderKey string    `gorm:"type:varchar(64);primaryKey"`
	Seq         int64     `gorm:"not null;default:0"`
	UpdatedAt   time.Time
}

// TableName returns the database table name for SequenceCounter.
func (SequenceCounter) TableName() string { return "sequence_counters" }
