// Package testutil provides an in-memory database and fixtures for package tests.
package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/versevilla/forum/config"
	"github.com/versevilla/forum/models"
)

// OpenDB returns a migrated, private in-memory sqlite database.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	conn, err := config.OpenDatabase(config.AppConfig{
		DBDriver:    "sqlite",
		DatabaseURI: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel:    "silent",
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(conn, models.All()...))

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

// User inserts a user named username.
func User(t testing.TB, db *gorm.DB, username string) models.User {
	t.Helper()
	u := models.User{ID: uuid.NewString(), Username: username}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// Group inserts a group created by creator, with creator and members as members.
func Group(t testing.TB, db *gorm.DB, name string, creator models.User, members ...models.User) models.Group {
	t.Helper()
	g := models.Group{Name: name, Description: name + " group", CreatorID: creator.ID}
	require.NoError(t, db.Omit("Creator", "Members").Create(&g).Error)
	for _, u := range append([]models.User{creator}, members...) {
		require.NoError(t, db.Create(&models.GroupMember{GroupID: g.ID, UserID: u.ID}).Error)
	}
	return g
}

// Post inserts a post by author, inside group when group is non-nil.
func Post(t testing.TB, db *gorm.DB, author models.User, group *models.Group, title string) models.Post {
	t.Helper()
	p := models.Post{UserID: author.ID, Title: title, Content: title + " body"}
	if group != nil {
		p.GroupID = &group.ID
	}
	require.NoError(t, db.Omit("User", "Group", "Comments").Create(&p).Error)
	return p
}
