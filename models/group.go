package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Group is a community posts can belong to. Membership has set semantics,
// enforced by the composite primary key on GroupMember.
type Group struct {
	ID          string        `gorm:"primaryKey;size:36" json:"id"`
	Name        string        `gorm:"size:128;not null;uniqueIndex" json:"name"`
	Description string        `gorm:"type:text;not null" json:"description"`
	Theme       string        `gorm:"size:64;default:'General'" json:"theme"`
	ImageURL    string        `gorm:"size:1024" json:"image_url,omitempty"`
	CreatorID   string        `gorm:"index;size:36;not null" json:"creator_id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Creator     User          `gorm:"foreignKey:CreatorID" json:"creator"`
	Members     []GroupMember `gorm:"foreignKey:GroupID" json:"members"`
}

// GroupMember links a user to a group.
type GroupMember struct {
	GroupID   string    `gorm:"primaryKey;size:36" json:"group_id"`
	UserID    string    `gorm:"primaryKey;size:36" json:"user_id"`
	CreatedAt time.Time `json:"joined_at"`
}

// BeforeCreate assigns the group id at persistence time.
func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// HasMember reports whether userID is in the loaded member set.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// MemberIDs returns the ids of the loaded members.
func (g *Group) MemberIDs() []string {
	ids := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}
