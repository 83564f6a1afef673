package models

import (
	"time"
)

// User is the authenticated identity mirrored from the auth provider's session.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserRow is only written by the self-hosted auth provider.
type UserRow struct {
	ID       string  `json:"id" gorm:"primaryKey"`
	Phone    string  `json:"phone" gorm:"not null;unique"`
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Timestamps
}

func (UserRow) TableName() string {
	return TableUsers
}

// OTPCodeRow holds the hash of the last code sent to a phone number.
type OTPCodeRow struct {
	Phone     string    `json:"phone" gorm:"primaryKey"`
	CodeHash  string    `json:"code_hash" gorm:"not null"`
	Attempts  int       `json:"attempts" gorm:"default:0"`
	ExpiresAt time.Time `json:"expires_at"`
	Timestamps
}

func (OTPCodeRow) TableName() string {
	return TableOTPCodes
}
