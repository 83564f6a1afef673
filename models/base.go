package models

import (
	"time"
)

const (
	TableHelpRecords  = "help_records"
	TableTeams        = "teams"
	TableProvinces    = "provinces"
	TableHelpSupports = "help_supports"
	TableUsers        = "users"
	TableOTPCodes     = "otp_codes"
)

const (
	DEFAULT_PAGE_SIZE = 10
	MAX_PAGE_SIZE     = 100
)

// Timestamps is embedded by every row persisted in the store.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tables lists the row models the self-hosted store migrates.
func Tables() []interface{} {
	return []interface{}{
		&ProvinceRow{}, &HelpRecordRow{}, &TeamRow{},
		&HelpSupportRow{}, &UserRow{}, &OTPCodeRow{},
	}
}

// UniqueKeys lists, per table, the column sets the store must keep unique.
// The first entry of each table is its primary key.
var UniqueKeys = map[string][][]string{
	TableHelpRecords:  {{"id"}},
	TableTeams:        {{"phone_number"}},
	TableProvinces:    {{"id"}, {"name"}},
	TableHelpSupports: {{"id"}, {"help_record_id", "team_id"}},
	TableUsers:        {{"id"}, {"phone"}},
	TableOTPCodes:     {{"phone"}},
}

// NullableString returns nil for blank strings so the store writes NULL.
func NullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences s, returning "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
