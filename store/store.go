// Package store persists posts, their comment ledgers and groups through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/versevilla/forum/models"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("duplicate record")
)

// PostQuery filters and paginates post listings.
type PostQuery struct {
	Page     int
	PageSize int
	Search   string
	GroupID  string
	UserID   string
}

// Counts are the aggregate row counts shown on the stats endpoint.
type Counts struct {
	Users    int64 `json:"user_count"`
	Posts    int64 `json:"post_count"`
	Comments int64 `json:"comment_count"`
	Groups   int64 `json:"group_count"`
}

// GormStore implements persistence over a gorm connection.
type GormStore struct {
	db *gorm.DB
}

// New wraps db.
func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// EnsureUser creates or refreshes the local record of a verified identity.
func (s *GormStore) EnsureUser(ctx context.Context, id, username string) error {
	u := models.User{ID: id, Username: username}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "updated_at"}),
	}).Create(&u).Error
	if err != nil {
		return fmt.Errorf("ensure user %s: %w", id, err)
	}
	return nil
}

// CreatePost inserts post and reloads its author.
func (s *GormStore) CreatePost(ctx context.Context, post *models.Post) error {
	db := s.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(post).Error; err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	if err := db.Take(&post.User, "id = ?", post.UserID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("load post author: %w", err)
	}
	return nil
}

// FindPost loads a post with its author and its group's members, without comments.
func (s *GormStore) FindPost(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Group.Members").
		Take(&post, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &post, nil
}

// LoadPostDetail loads a post with author, group and its comments in ledger order.
func (s *GormStore) LoadPostDetail(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Group").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Preload("Comments.User").
		Take(&post, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	return &post, nil
}

func (q PostQuery) scope(db *gorm.DB) *gorm.DB {
	if search := strings.TrimSpace(q.Search); search != "" {
		like := "%" + search + "%"
		db = db.Where("(title LIKE ? OR content LIKE ?)", like, like)
	}
	if q.GroupID != "" {
		db = db.Where("group_id = ?", q.GroupID)
	}
	if q.UserID != "" {
		db = db.Where("user_id = ?", q.UserID)
	}
	return db
}

// ListPosts returns one page of posts, newest first, and the total matching count.
func (s *GormStore) ListPosts(ctx context.Context, q PostQuery) ([]models.Post, int64, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 10
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Scopes(q.scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	posts := []models.Post{}
	err := s.db.WithContext(ctx).
		Scopes(q.scope).
		Preload("User").
		Preload("Group").
		Order("created_at DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&posts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	return posts, total, nil
}

// CommentCount returns the current length of a post's comment ledger.
func (s *GormStore) CommentCount(ctx context.Context, postID string) (int64, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Select("comment_count").Take(&post, "id = ?", postID).Error
	if err != nil {
		return 0, notFound(err)
	}
	return post.CommentCount, nil
}

// UpdatePost writes the editable fields of post.
func (s *GormStore) UpdatePost(ctx context.Context, post *models.Post) error {
	post.UpdatedAt = time.Now()
	res := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", post.ID).Updates(map[string]interface{}{
		"title":      post.Title,
		"content":    post.Content,
		"image_url":  post.ImageURL,
		"updated_at": post.UpdatedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("update post %s: %w", post.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPostGroup moves a post into groupID, or out of any group when groupID is nil.
func (s *GormStore) SetPostGroup(ctx context.Context, postID string, groupID *string) error {
	res := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).Updates(map[string]interface{}{
		"group_id":   groupID,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return fmt.Errorf("set group of post %s: %w", postID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost removes a post together with its comment ledger.
func (s *GormStore) DeletePost(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("delete comments of %s: %w", id, err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Post{})
		if res.Error != nil {
			return fmt.Errorf("delete post %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AppendComment adds comment to the end of postID's ledger. The post row update
// both proves the post exists and hands out the next sequence number, so concurrent
// appends are ordered by the database without any application lock.
func (s *GormStore) AppendComment(ctx context.Context, postID string, comment *models.Comment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1))
		if res.Error != nil {
			return fmt.Errorf("reserve comment seq: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		var seq int64
		if err := tx.Model(&models.Post{}).Select("comment_count").Where("id = ?", postID).Row().Scan(&seq); err != nil {
			return fmt.Errorf("read comment seq: %w", err)
		}

		comment.PostID = postID
		comment.Seq = seq
		if err := tx.Omit(clause.Associations).Create(comment).Error; err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		if err := tx.Take(&comment.User, "id = ?", comment.UserID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load comment author: %w", err)
		}
		return nil
	})
}

// ListComments returns postID's comments in ledger order.
func (s *GormStore) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := s.db.WithContext(ctx).Preload("User").Where("post_id = ?", postID).Order("seq ASC").Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("list comments of %s: %w", postID, err)
	}
	return comments, nil
}

// CreateGroup inserts group and makes its creator the first member.
func (s *GormStore) CreateGroup(ctx context.Context, group *models.Group) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Group{}).Where("name = ?", group.Name).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicate
		}
		if err := tx.Omit(clause.Associations).Create(group).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicate
			}
			return err
		}
		member := models.GroupMember{GroupID: group.ID, UserID: group.CreatorID}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
		group.Members = []models.GroupMember{member}
		if err := tx.Take(&group.Creator, "id = ?", group.CreatorID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrDuplicate) {
		return fmt.Errorf("create group %q: %w", group.Name, err)
	}
	return err
}

// FindGroup loads a group with its creator and members.
func (s *GormStore) FindGroup(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	err := s.db.WithContext(ctx).Preload("Creator").Preload("Members").Take(&group, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &group, nil
}

// ListGroups returns every group, newest first.
func (s *GormStore) ListGroups(ctx context.Context) ([]models.Group, error) {
	groups := []models.Group{}
	err := s.db.WithContext(ctx).Preload("Creator").Preload("Members").Order("created_at DESC").Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// AddMember adds userID to groupID; adding an existing member is a no-op.
func (s *GormStore) AddMember(ctx context.Context, groupID, userID string) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.GroupMember{GroupID: groupID, UserID: userID}).Error
	if err != nil {
		return fmt.Errorf("add member %s to %s: %w", userID, groupID, err)
	}
	return nil
}

// RemoveMember removes userID from groupID; removing a non-member is a no-op.
func (s *GormStore) RemoveMember(ctx context.Context, groupID, userID string) error {
	err := s.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupMember{}).Error
	if err != nil {
		return fmt.Errorf("remove member %s from %s: %w", userID, groupID, err)
	}
	return nil
}

// DeleteGroup removes a group and its memberships. Its posts survive without a group.
func (s *GormStore) DeleteGroup(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).Where("group_id = ?", id).Update("group_id", nil).Error; err != nil {
			return fmt.Errorf("detach posts of %s: %w", id, err)
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.GroupMember{}).Error; err != nil {
			return fmt.Errorf("delete members of %s: %w", id, err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Group{})
		if res.Error != nil {
			return fmt.Errorf("delete group %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Counts returns aggregate row counts.
func (s *GormStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	db := s.db.WithContext(ctx)
	for _, q := range []struct {
		model interface{}
		dst   *int64
	}{
		{&models.User{}, &c.Users},
		{&models.Post{}, &c.Posts},
		{&models.Comment{}, &c.Comments},
		{&models.Group{}, &c.Groups},
	} {
		if err := db.Model(q.model).Count(q.dst).Error; err != nil {
			return Counts{}, fmt.Errorf("count %T: %w", q.model, err)
		}
	}
	return c, nil
}
