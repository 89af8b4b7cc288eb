package model

import (
	"time"
)

type UserRole string

const (
	Respondent UserRole = "respondent"
	Reviewer   UserRole = "reviewer"
	Admin      UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name        string    `gorm:"size:100;not null" json:"name"`
	Email       string    `gorm:"size:100;unique;not null" json:"email"`
	Password    string    `gorm:"size:100;not null" json:"-"`
	Role        UserRole  `gorm:"type:enum('respondent','reviewer','admin');default:'respondent'" json:"role"`
	CountryCode string    `gorm:"size:3" json:"countryCode"` // ISO alpha-3, used for country-restricted visibility
	Language    string    `gorm:"size:10;default:'en'" json:"language"`
	Disabled    bool      `gorm:"default:false" json:"disabled"`
	LastLogin   time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastLogin"`
	LastSeen    time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastSeen"`
}

func (User) TableName() string {
	return "users"
}
