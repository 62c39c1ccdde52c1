package models

import "time"

// Permission is a single grantable capability, identified by codename.
type Permission struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Codename  string    `gorm:"size:60;not null;uniqueIndex" json:"codename"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Group is a named bundle of permissions assigned to users.
// The three groups (Readers, Authors, Editors) are created once by the
// bootstrap step and are immutable afterwards outside administrative action.
type Group struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"size:60;not null;uniqueIndex" json:"name"`
	Permissions []Permission `gorm:"many2many:group_permissions;" json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
