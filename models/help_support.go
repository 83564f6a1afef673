package models

import (
	"fmt"
	"time"
)

type SupportStatus string

const (
	// NONE_SUPPORT is never persisted, it is inferred from a missing row.
	NONE_SUPPORT      SupportStatus = "none"
	PENDING_SUPPORT   SupportStatus = "pending"
	ACTIVE_SUPPORT    SupportStatus = "active"
	COMPLETED_SUPPORT SupportStatus = "completed"
)

var SupportStatusNameMap = map[SupportStatus]bool{
	PENDING_SUPPORT:   true,
	ACTIVE_SUPPORT:    true,
	COMPLETED_SUPPORT: true,
}

// Next returns the status one step along the support cycle:
// none -> pending -> active -> completed -> pending.
func (status SupportStatus) Next() SupportStatus {
	switch status {
	case PENDING_SUPPORT:
		return ACTIVE_SUPPORT
	case ACTIVE_SUPPORT:
		return COMPLETED_SUPPORT
	default:
		// none, completed & anything unknown restart at pending
		return PENDING_SUPPORT
	}
}

func (status SupportStatus) Persisted() bool {
	return SupportStatusNameMap[status]
}

func ParseSupportStatus(name string) (SupportStatus, error) {
	status := SupportStatus(name)
	if status == NONE_SUPPORT || status.Persisted() {
		return status, nil
	}
	return "", NewValidationError(fmt.Sprintf("unknown support status '%v'", name))
}

type SupportStatusInfo struct {
	Status      SupportStatus `json:"status"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Color       string        `json:"color"`
}

var StatusInfo = map[SupportStatus]SupportStatusInfo{
	NONE_SUPPORT: {
		Status:      NONE_SUPPORT,
		Label:       "Not supported",
		Description: "No team has registered to support this location",
		Color:       "#8E8E93",
	},
	PENDING_SUPPORT: {
		Status:      PENDING_SUPPORT,
		Label:       "Awaiting support",
		Description: "A team registered but has not started supporting yet",
		Color:       "#FF9500",
	},
	ACTIVE_SUPPORT: {
		Status:      ACTIVE_SUPPORT,
		Label:       "Being supported",
		Description: "A team is on site supporting this location",
		Color:       "#007AFF",
	},
	COMPLETED_SUPPORT: {
		Status:      COMPLETED_SUPPORT,
		Label:       "Supported",
		Description: "The team finished supporting this location",
		Color:       "#34C759",
	},
}

// HelpSupport links a help record to the team supporting it.
type HelpSupport struct {
	ID           string        `json:"id"`
	HelpRecordID string        `json:"helpRecordId"`
	TeamID       string        `json:"teamId"`
	Status       SupportStatus `json:"status"`
	Notes        string        `json:"notes,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

type CreateHelpSupportDto struct {
	HelpRecordID string        `json:"helpRecordId" validate:"required"`
	TeamID       string        `json:"teamId" validate:"required"`
	Status       SupportStatus `json:"status,omitempty" validate:"omitempty,support_status"`
	Notes        string        `json:"notes,omitempty"`
}

type UpdateHelpSupportDto struct {
	Status *SupportStatus `json:"status,omitempty" validate:"omitempty,support_status"`
	Notes  *string        `json:"notes,omitempty"`
}

type HelpSupportRow struct {
	ID           string        `json:"id" gorm:"primaryKey"`
	HelpRecordID string        `json:"help_record_id" gorm:"not null;uniqueIndex:idx_help_supports_pair"`
	TeamID       string        `json:"team_id" gorm:"not null;uniqueIndex:idx_help_supports_pair;index"`
	Status       SupportStatus `json:"status" gorm:"not null"`
	Notes        *string       `json:"notes"`
	Timestamps
}

func (HelpSupportRow) TableName() string {
	return TableHelpSupports
}
