// Package permissions holds the ownership and membership predicates that gate writes.
// Callers load the entities; a missing entity is a not-found condition, never a denial.
package permissions

import "github.com/versevilla/forum/models"

// CanPost reports whether userID may write into group. Posts outside a group are open to everyone.
func CanPost(userID string, group *models.Group) bool {
	if group == nil {
		return true
	}
	return group.HasMember(userID)
}

// CanModify reports whether userID may edit post.
func CanModify(userID string, post *models.Post) bool {
	return post != nil && userID != "" && post.UserID == userID
}

// CanDelete reports whether userID may delete post: its author, or the creator of its group.
// post.Group must be loaded for the group-owner branch to apply.
func CanDelete(userID string, post *models.Post) bool {
	if CanModify(userID, post) {
		return true
	}
	return post != nil && post.Group != nil && userID != "" && post.Group.CreatorID == userID
}

// CanDeleteGroup reports whether userID created group.
func CanDeleteGroup(userID string, group *models.Group) bool {
	return group != nil && userID != "" && group.CreatorID == userID
}
