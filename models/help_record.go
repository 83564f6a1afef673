package models

import "time"

// HelpRecord is a request for relief. When IsForSelf is set the location is the
// requester's coordinates, otherwise an address and/or map link.
type HelpRecord struct {
	ID             string         `json:"id"`
	IsForSelf      bool           `json:"isForSelf"`
	LocationName   string         `json:"locationName"`
	AdultCount     int            `json:"adultCount"`
	ChildCount     int            `json:"childCount"`
	PhoneNumber    string         `json:"phoneNumber"`
	EssentialItems EssentialItems `json:"essentialItems"`
	Latitude       *float64       `json:"latitude,omitempty"`
	Longitude      *float64       `json:"longitude,omitempty"`
	Address        string         `json:"address,omitempty"`
	MapLink        string         `json:"mapLink,omitempty"`
	ProvinceID     string         `json:"provinceId,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

type CreateHelpRecordDto struct {
	IsForSelf      bool           `json:"isForSelf"`
	LocationName   string         `json:"locationName" validate:"notblank"`
	AdultCount     int            `json:"adultCount" validate:"min=0"`
	ChildCount     int            `json:"childCount" validate:"min=0"`
	PhoneNumber    string         `json:"phoneNumber" validate:"required,phone_digits"`
	EssentialItems EssentialItems `json:"essentialItems" validate:"required,min=1,dive,essential_item"`
	Latitude       *float64       `json:"latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	Longitude      *float64       `json:"longitude,omitempty" validate:"omitempty,min=-180,max=180"`
	Address        string         `json:"address,omitempty"`
	MapLink        string         `json:"mapLink,omitempty"`
	ProvinceID     string         `json:"provinceId,omitempty"`
}

// UpdateHelpRecordDto holds a partial update; nil fields are left untouched.
type UpdateHelpRecordDto struct {
	IsForSelf      *bool          `json:"isForSelf,omitempty"`
	LocationName   *string        `json:"locationName,omitempty" validate:"omitempty,notblank"`
	AdultCount     *int           `json:"adultCount,omitempty" validate:"omitempty,min=0"`
	ChildCount     *int           `json:"childCount,omitempty" validate:"omitempty,min=0"`
	PhoneNumber    *string        `json:"phoneNumber,omitempty" validate:"omitempty,phone_digits"`
	EssentialItems EssentialItems `json:"essentialItems,omitempty" validate:"omitempty,min=1,dive,essential_item"`
	Latitude       *float64       `json:"latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	Longitude      *float64       `json:"longitude,omitempty" validate:"omitempty,min=-180,max=180"`
	Address        *string        `json:"address,omitempty"`
	MapLink        *string        `json:"mapLink,omitempty"`
	ProvinceID     *string        `json:"provinceId,omitempty"`
}

type HelpRecordRow struct {
	ID             string         `json:"id" gorm:"primaryKey"`
	IsForSelf      bool           `json:"is_for_self"`
	LocationName   string         `json:"location_name" gorm:"not null"`
	AdultCount     int            `json:"adult_count"`
	ChildCount     int            `json:"child_count"`
	PhoneNumber    string         `json:"phone_number" gorm:"not null;index"`
	EssentialItems EssentialItems `json:"essential_items"`
	Latitude       *float64       `json:"latitude"`
	Longitude      *float64       `json:"longitude"`
	Address        *string        `json:"address"`
	MapLink        *string        `json:"map_link"`
	ProvinceID     *string        `json:"province_id" gorm:"index"`
	Timestamps
}

func (HelpRecordRow) TableName() string {
	return TableHelpRecords
}
