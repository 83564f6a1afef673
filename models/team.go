package models

import "time"

// Team is a volunteer group. Its normalized phone number is both its business
// identifier and its primary key, so ID always equals PhoneNumber.
type Team struct {
	ID             string         `json:"id"`
	PhoneNumber    string         `json:"phoneNumber"`
	TeamLeaderName string         `json:"teamLeaderName"`
	Email          string         `json:"email"`
	MemberCount    int            `json:"memberCount"`
	EssentialItems EssentialItems `json:"essentialItems"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

type CreateTeamDto struct {
	PhoneNumber    string         `json:"phoneNumber" validate:"required,phone_digits"`
	TeamLeaderName string         `json:"teamLeaderName" validate:"notblank"`
	Email          string         `json:"email" validate:"required,email"`
	MemberCount    int            `json:"memberCount" validate:"min=1"`
	EssentialItems EssentialItems `json:"essentialItems" validate:"required,min=1,dive,essential_item"`
}

type UpdateTeamDto struct {
	TeamLeaderName *string        `json:"teamLeaderName,omitempty" validate:"omitempty,notblank"`
	Email          *string        `json:"email,omitempty" validate:"omitempty,email"`
	MemberCount    *int           `json:"memberCount,omitempty" validate:"omitempty,min=1"`
	EssentialItems EssentialItems `json:"essentialItems,omitempty" validate:"omitempty,min=1,dive,essential_item"`
}

type TeamRow struct {
	PhoneNumber    string         `json:"phone_number" gorm:"primaryKey"`
	TeamLeaderName string         `json:"team_leader_name" gorm:"not null"`
	Email          string         `json:"email" gorm:"not null"`
	MemberCount    int            `json:"member_count"`
	EssentialItems EssentialItems `json:"essential_items"`
	Timestamps
}

func (TeamRow) TableName() string {
	return TableTeams
}
