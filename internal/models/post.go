package models

import "time"

// PlaceholderImageURL is used when a post is created without an image.
const PlaceholderImageURL = "https://upload.wikimedia.org/wikipedia/commons/thumb/a/ac/No_image_available.svg/2048px-No_image_available.svg.png"

// Post represents a blog post in the Inkwell application.
//
// Slug is derived from the title exactly once at create time and never
// changes afterwards. UserID is the owning author; it is nulled when the
// user is deleted and is never reassigned.
type Post struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:100;not null" json:"title"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	ImageURL    string    `json:"image_url"`
	Slug        string    `gorm:"size:120;not null;uniqueIndex" json:"slug"`
	CategoryID  *uint     `gorm:"index" json:"category_id,omitempty"`
	Category    *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"category,omitempty"`
	UserID      *uint     `gorm:"index" json:"user_id,omitempty"`
	User        *User     `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	IsPublished bool      `gorm:"not null;default:false" json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
