package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment is an immutable entry in a post's ledger. Seq is its 1-based position.
type Comment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PostID    string    `gorm:"index:idx_comments_post_seq,unique;size:36;not null" json:"post_id"`
	Seq       int64     `gorm:"index:idx_comments_post_seq,unique;not null" json:"seq"`
	UserID    string    `gorm:"index;size:36;not null" json:"user_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `gorm:"foreignKey:UserID" json:"author"`
}

// BeforeCreate assigns id and timestamp server-side; client values are never trusted.
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	return nil
}
