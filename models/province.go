package models

import "time"

type Province struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code,omitempty"`
	DisplayOrder int       `json:"displayOrder"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type CreateProvinceDto struct {
	Name         string `json:"name" validate:"notblank"`
	Code         string `json:"code,omitempty" validate:"omitempty,max=8"`
	DisplayOrder *int   `json:"displayOrder,omitempty" validate:"omitempty,min=0"`
	IsActive     *bool  `json:"isActive,omitempty"`
}

type UpdateProvinceDto struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,notblank"`
	Code         *string `json:"code,omitempty" validate:"omitempty,max=8"`
	DisplayOrder *int    `json:"displayOrder,omitempty" validate:"omitempty,min=0"`
	IsActive     *bool   `json:"isActive,omitempty"`
}

type ProvinceRow struct {
	ID           string  `json:"id" gorm:"primaryKey"`
	Name         string  `json:"name" gorm:"not null;unique"`
	Code         *string `json:"code"`
	DisplayOrder int     `json:"display_order" gorm:"default:0"`
	IsActive     bool    `json:"is_active"`
	Timestamps
}

func (ProvinceRow) TableName() string {
	return TableProvinces
}
