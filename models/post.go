package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a discussion thread. It owns an append-only comment ledger whose length
// is mirrored in CommentCount; the count doubles as the sequence source for new comments.
type Post struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	UserID       string    `gorm:"index;size:36;not null" json:"user_id"`
	GroupID      *string   `gorm:"index;size:36" json:"group_id,omitempty"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	ImageURL     string    `gorm:"size:1024" json:"image_url,omitempty"`
	CommentCount int64     `gorm:"not null;default:0" json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	User         User      `gorm:"foreignKey:UserID" json:"author"`
	Group        *Group    `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	Comments     []Comment `gorm:"foreignKey:PostID" json:"comments,omitempty"`
}

// BeforeCreate assigns the post id at persistence time.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
