package model

import "time"

// UserProfile is a read model owned by the identity service; this subsystem
// only reads it to decorate admin listings. Missing rows are expected and
// never an error.
type UserProfile struct {
	UserID    string    `gorm:"type:uuid;primaryKey" json:"user_id"`
	FullName  string    `gorm:"size:128;not null" json:"full_name"`
	Phone     string    `gorm:"size:16" json:"phone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
}

func (UserProfile) TableName() string { return "user_profiles" }
