package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/versevilla/forum/models"
)

func group(creator string, members ...string) *models.Group {
	g := &models.Group{ID: "g1", CreatorID: creator}
	for _, m := range members {
		g.Members = append(g.Members, models.GroupMember{GroupID: g.ID, UserID: m})
	}
	return g
}

func TestCanPost(t *testing.T) {
	tests := []struct {
		name  string
		user  string
		group *models.Group
		want  bool
	}{
		{"no group", "alice", nil, true},
		{"member", "alice", group("carol", "alice", "carol"), true},
		{"non member", "bob", group("carol", "alice", "carol"), false},
		{"creator not in member set", "carol", group("carol", "alice"), false},
		{"empty group", "alice", group("carol"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanPost(tt.user, tt.group))
		})
	}
}

func TestCanModify(t *testing.T) {
	post := &models.Post{ID: "p1", UserID: "alice"}

	assert.True(t, CanModify("alice", post))
	assert.False(t, CanModify("bob", post))
	assert.False(t, CanModify("", &models.Post{}), "empty ids never match")
	assert.False(t, CanModify("alice", nil))
}

func TestCanDelete(t *testing.T) {
	inGroup := &models.Post{ID: "p1", UserID: "alice", Group: group("carol", "alice", "bob", "carol")}
	solo := &models.Post{ID: "p2", UserID: "alice"}

	tests := []struct {
		name string
		user string
		post *models.Post
		want bool
	}{
		{"author in group", "alice", inGroup, true},
		{"group owner", "carol", inGroup, true},
		{"other member", "bob", inGroup, false},
		{"author without group", "alice", solo, true},
		{"stranger without group", "carol", solo, false},
		{"nil post", "alice", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanDelete(tt.user, tt.post))
		})
	}
}

func TestCanDeleteGroup(t *testing.T) {
	g := group("carol", "alice")

	assert.True(t, CanDeleteGroup("carol", g))
	assert.False(t, CanDeleteGroup("alice", g))
	assert.False(t, CanDeleteGroup("carol", nil))
}
