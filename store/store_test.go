package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versevilla/forum/models"
	"github.com/versevilla/forum/testutil"
)

func TestAppendComment_AssignsSequence(t *testing.T) {
	db := testutil.OpenDB(t)
	s := New(db)
	ctx := context.Background()
	alice := testutil.User(t, db, "alice")
	post := testutil.Post(t, db, alice, nil, "hello")

	for i, text := range []string{"first", "second", "third"} {
		c := &models.Comment{UserID: alice.ID, Text: text, ID: "client-chosen"}
		require.NoError(t, s.AppendComment(ctx, post.ID, c))
		assert.Equal(t, int64(i+1), c.Seq)
		assert.NotEqual(t, "client-chosen", c.ID)
		assert.False(t, c.CreatedAt.IsZero())
		assert.Equal(t, "alice", c.User.Username)
	}

	comments, err := s.ListComments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "first", comments[0].Text)
	assert.Equal(t, "third", comments[2].Text)

	reloaded, err := s.FindPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), reloaded.CommentCount)

	n, err := s.CommentCount(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	_, err = s.CommentCount(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendComment_MissingPost(t *testing.T) {
	db := testutil.OpenDB(t)
	s := New(db)
	alice := testutil.User(t, db, "alice")

	err := s.AppendComment(context.Background(), "missing", &models.Comment{UserID: alice.ID, Text: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	var n int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestAppendComment_ConcurrentAppendsAllSucceed(t *testing.T) {
	db := testutil.OpenDB(t)
	s := New(db)
	alice := testutil.User(t, db, "alice")
	post := testutil.Post(t, db, alice, nil, "busy")

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.AppendComment(context.Background(), post.ID, &models.Comment{UserID: alice.ID, Text: "x"})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	comments, err := s.ListComments(context.Background(), post.ID)
	require.NoError(t, err)
	require.Len(t, comments, writers)
	for i, c := range comments {
		assert.Equal(t, int64(i+1), c.Seq)
	}
}

func TestLoadPostDetail(t *testing.T) {
	db := testutil.OpenDB(t)
	s := New(db)
	ctx := context.Background()
	alice := testutil.User(t, db, "alice")
	bob := testutil.User(t, db, "bob")
	g := testutil.Group(t, db, "gophers", alice, bob)
	post := testutil.Post(t, db, alice, &g, "grouped")

	require.NoError(t, s.AppendComment(ctx, post.ID, &models.Comment{UserID: bob.ID, Text: "one"}))
	require.NoError(t, s.AppendComment(ctx, post.ID, &models.Comment{UserID: alice.ID, Text: "two"}))

	got, err := s.LoadPostDetail(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.User.Username)
	require.NotNil(t, got.Group)
	assert.Equal(t, "gophers", got.Group.Name)
	require.Len(t, got.Comments, 2)
	assert.Equal(t, "one", got.Comments[0].Text)
	assert.Equal(t, "bob", got.Comments[0].User.Username)

	_, err = s.LoadPostDetail(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindPost_LoadsGroupMembers(t *testing.T) {
	db := testutil.OpenDB(t)
	s := New(db)
	alice := testutil.User(t, db, "alice")
	bob := testutil.User(t, db, "bob")
	g := testutil.Group(t, db, "gophers", alice, bob)
	post := testutil.Post(t, db, alice, &g, "grouped")
	loose := testutil.Post(t, db, alice, nil, "loose")

	got, err := s.FindPost(context.Background(), post.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Group)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, got.Group.MemberIDs())

	got, err = s.FindPost(context.Background(), loose.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Group)
}

func TestListPosts_FiltersAndPaginates(t *testing.T) {
	db := testutil.OpenDB(t)
	s := New(db)
	ctx := context.Background()
	alice := testutil.User(t, db, "alice")
	bob := testutil.User(t, db, "bob")
	g := testutil.Group(t, db, "gophers", alice)
	testutil.Post(t, db, alice, &g, "go generics")
	testutil.Post(t, db, alice, nil, "rust lifetimes")
	testutil.Post(t, db, bob, nil, "go channels")

	posts, total, err := s.ListPosts(ctx, PostQuery{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, posts, 2)

	posts, total, err = s.ListPosts(ctx, PostQuery{Search: "go"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, posts, 2)

	posts, total, err = s.ListPosts(ctx, PostQuery{Search: "go", GroupID: g.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, posts, 1)
	assert.Equal(t, "go generics", posts[0].Title)

	posts, _, err = s.ListPosts(ctx, PostQuery{UserID: bob.ID})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "bob", posts[0].User.Username)
}

func TestUpdateAndDeletePost(t *testing.T) {
	db := testutil.OpenDB(t)
	s := New(db)
	ctx := context.Background()
	alice := testutil.User(t, db, "alice")
	post := testutil.Post(t, db, alice, nil, "draft")
	require.NoError(t, s.AppendComment(ctx, post.ID, &models.Comment{UserID: alice.ID, Text: "c"}))

	post.Title = "final"
	require.NoError(t, s.UpdatePost(ctx, &post))
	got, err := s.FindPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Title)

	require.NoError(t, s.DeletePost(ctx, post.ID))
	_, err = s.FindPost(ctx, post.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	comments, err := s.ListComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	assert.ErrorIs(t, s.DeletePost(ctx, post.ID), ErrNotFound)
	assert.ErrorIs(t, s.UpdatePost(ctx, &post), ErrNotFound)
}

func TestSetPostGroup(t *testing.T) {
	db := testutil.OpenDB(t)
	s := New(db)
	ctx := context.Background()
	alice := testutil.User(t, db, "alice")
	g := testutil.Group(t, db, "gophers", alice)
	post := testutil.Post(t, db, alice, nil, "p")

	require.NoError(t, s.SetPostGroup(ctx, post.ID, &g.ID))
	got, err := s.FindPost(ctx, post.ID)
	require.NoError(t, err)
	require.NotNil(t, got.GroupID)
	assert.Equal(t, g.ID, *got.GroupID)

	require.NoError(t, s.SetPostGroup(ctx, post.ID, nil))
	got, err = s.FindPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Nil(t, got.GroupID)

	assert.ErrorIs(t, s.SetPostGroup(ctx, "missing", nil), ErrNotFound)
}

func TestGroups(t *testing.T) {
	db := testutil.OpenDB(t)
	s := New(db)
	ctx := context.Background()
	alice := testutil.User(t, db, "alice")
	bob := testutil.User(t, db, "bob")

	g := &models.Group{Name: "gophers", Description: "Go", CreatorID: alice.ID}
	require.NoError(t, s.CreateGroup(ctx, g))
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, "alice", g.Creator.Username)
	assert.True(t, g.HasMember(alice.ID))

	dup := &models.Group{Name: "gophers", Description: "again", CreatorID: bob.ID}
	assert.ErrorIs(t, s.CreateGroup(ctx, dup), ErrDuplicate)

	require.NoError(t, s.AddMember(ctx, g.ID, bob.ID))
	require.NoError(t, s.AddMember(ctx, g.ID, bob.ID))
	found, err := s.FindGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, found.Members, 2)
	assert.Equal(t, "General", found.Theme)

	require.NoError(t, s.RemoveMember(ctx, g.ID, bob.ID))
	require.NoError(t, s.RemoveMember(ctx, g.ID, bob.ID))
	found, err = s.FindGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, found.HasMember(bob.ID))

	groups, err := s.ListGroups(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 1)

	_, err = s.FindGroup(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteGroup_DetachesPosts(t *testing.T) {
	db := testutil.OpenDB(t)
	s := New(db)
	ctx := context.Background()
	alice := testutil.User(t, db, "alice")
	g := testutil.Group(t, db, "gophers", alice)
	post := testutil.Post(t, db, alice, &g, "p")

	require.NoError(t, s.DeleteGroup(ctx, g.ID))

	got, err := s.FindPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Nil(t, got.GroupID)
	var members int64
	require.NoError(t, db.Model(&models.GroupMember{}).Count(&members).Error)
	assert.Zero(t, members)

	assert.ErrorIs(t, s.DeleteGroup(ctx, g.ID), ErrNotFound)
}

func TestEnsureUserAndCounts(t *testing.T) {
	db := testutil.OpenDB(t)
	s := New(db)
	ctx := context.Background()

	require.NoError(t, s.EnsureUser(ctx, "u-1", "alice"))
	require.NoError(t, s.EnsureUser(ctx, "u-1", "alice2"))

	var u models.User
	require.NoError(t, db.Take(&u, "id = ?", "u-1").Error)
	assert.Equal(t, "alice2", u.Username)

	testutil.Post(t, db, u, nil, "p")
	c, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Users: 1, Posts: 1}, c)
}
