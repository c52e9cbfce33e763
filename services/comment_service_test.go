package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versevilla/forum/testutil"
)

func TestSubmit_MemberCommentIsPersistedAndBroadcast(t *testing.T) {
	f := newFixture(t)
	alice := testutil.User(t, f.db, "alice")
	bob := testutil.User(t, f.db, "bob")
	g := testutil.Group(t, f.db, "gophers", alice, bob)
	post := testutil.Post(t, f.db, alice, &g, "hello")
	gate, calls := scriptedGate(`{"isSafe": true, "reason": ""}`, nil)
	bus := &recordingBus{}
	f.redis.Set(PostDetailKey(post.ID), "stale")

	svc := NewCommentService(f.store, gate, bus, f.cache, nil)
	c, err := svc.Submit(context.Background(), actor(bob), post.ID, "  nice <b>post</b><script>x</script> ")

	require.NoError(t, err)
	assert.Equal(t, "nice <b>post</b>", c.Text)
	assert.Equal(t, int64(1), c.Seq)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "bob", c.User.Username)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	sent := bus.all()
	require.Len(t, sent, 1)
	assert.Equal(t, post.ID, sent[0].PostID)
	assert.Equal(t, c.ID, sent[0].Comment.ID)

	assert.False(t, f.redis.Exists(PostDetailKey(post.ID)), "detail cache invalidated")
}

func TestSubmit_EmptyTextIsValidationError(t *testing.T) {
	f := newFixture(t)
	alice := testutil.User(t, f.db, "alice")
	post := testutil.Post(t, f.db, alice, nil, "hello")
	gate, calls := scriptedGate(`{"isSafe": true}`, nil)
	bus := &recordingBus{}

	svc := NewCommentService(f.store, gate, bus, nil, nil)
	for _, text := range []string{"", "   ", "<script>alert(1)</script>"} {
		_, err := svc.Submit(context.Background(), actor(alice), post.ID, text)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "text %q", text)
	}
	assert.Zero(t, atomic.LoadInt32(calls))
	assert.Empty(t, bus.all())
	assert.Zero(t, f.commentCount(t, post.ID))
}

func TestSubmit_MissingPostIsNotFound(t *testing.T) {
	f := newFixture(t)
	alice := testutil.User(t, f.db, "alice")

	svc := NewCommentService(f.store, nil, &recordingBus{}, nil, nil)
	_, err := svc.Submit(context.Background(), actor(alice), "missing", "hi")

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "post", nf.Resource)
}

func TestSubmit_NonMemberIsRejectedBeforeAdmission(t *testing.T) {
	f := newFixture(t)
	alice := testutil.User(t, f.db, "alice")
	mallory := testutil.User(t, f.db, "mallory")
	g := testutil.Group(t, f.db, "gophers", alice)
	post := testutil.Post(t, f.db, alice, &g, "members only")
	gate, calls := scriptedGate(`{"isSafe": true}`, nil)
	bus := &recordingBus{}

	svc := NewCommentService(f.store, gate, bus, nil, nil)
	_, err := svc.Submit(context.Background(), actor(mallory), post.ID, "let me in")

	var aerr *AuthorizationError
	require.ErrorAs(t, err, &aerr)
	assert.Zero(t, atomic.LoadInt32(calls), "gate not consulted")
	assert.Empty(t, bus.all())
	assert.Zero(t, f.commentCount(t, post.ID))
}

func TestSubmit_BlockedByClassifier(t *testing.T) {
	f := newFixture(t)
	alice := testutil.User(t, f.db, "alice")
	post := testutil.Post(t, f.db, alice, nil, "hello")
	gate, _ := scriptedGate("```json\n{\"isSafe\": false, \"reason\": \"Harassment\"}\n```", nil)
	bus := &recordingBus{}

	svc := NewCommentService(f.store, gate, bus, nil, nil)
	_, err := svc.Submit(context.Background(), actor(alice), post.ID, "you are terrible")

	var blocked *AdmissionBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "Harassment", blocked.Reason)
	assert.Equal(t, "Post blocked: Harassment", err.Error())
	assert.Empty(t, bus.all())
	assert.Zero(t, f.commentCount(t, post.ID))
}

func TestSubmit_ClassifierFailureFailsOpen(t *testing.T) {
	f := newFixture(t)
	alice := testutil.User(t, f.db, "alice")
	post := testutil.Post(t, f.db, alice, nil, "hello")
	gate, calls := scriptedGate("", errClassifierDown)
	bus := &recordingBus{}

	svc := NewCommentService(f.store, gate, bus, nil, nil)
	c, err := svc.Submit(context.Background(), actor(alice), post.ID, "still here")

	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls), "exactly one attempt")
	assert.Equal(t, int64(1), f.commentCount(t, post.ID))
	assert.Len(t, bus.all(), 1)
	assert.Equal(t, "still here", c.Text)
}

func TestSubmit_UnknownAuthorIsUpserted(t *testing.T) {
	f := newFixture(t)
	alice := testutil.User(t, f.db, "alice")
	post := testutil.Post(t, f.db, alice, nil, "hello")

	svc := NewCommentService(f.store, nil, nil, nil, nil)
	c, err := svc.Submit(context.Background(), Actor{ID: "fresh-id", Username: "newcomer"}, post.ID, "hi")

	require.NoError(t, err)
	assert.Equal(t, "newcomer", c.User.Username)
}

func TestSubmit_ConcurrentSubmissionsBothSucceed(t *testing.T) {
	f := newFixture(t)
	alice := testutil.User(t, f.db, "alice")
	bob := testutil.User(t, f.db, "bob")
	post := testutil.Post(t, f.db, alice, nil, "race")
	bus := &recordingBus{}
	svc := NewCommentService(f.store, nil, bus, nil, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, who := range []Actor{actor(alice), actor(bob)} {
		wg.Add(1)
		go func(i int, who Actor) {
			defer wg.Done()
			_, errs[i] = svc.Submit(context.Background(), who, post.ID, "first!")
		}(i, who)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int64(2), f.commentCount(t, post.ID))
	seqs := map[int64]bool{}
	for _, p := range bus.all() {
		seqs[p.Comment.Seq] = true
	}
	assert.Equal(t, map[int64]bool{1: true, 2: true}, seqs)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "received", StageReceived.String())
	assert.Equal(t, "done", StageDone.String())
	assert.Equal(t, "unknown", Stage(42).String())
}
