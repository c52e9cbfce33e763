package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versevilla/forum/models"
)

func TestDispatcher_DeliversOnlyToRoom(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r, nil)
	v1, v2, elsewhere := &fakeSub{}, &fakeSub{}, &fakeSub{}
	for _, s := range []*fakeSub{v1, v2, elsewhere} {
		r.Attach(s)
	}
	require.NoError(t, r.Join(v1, "R"))
	require.NoError(t, r.Join(v2, "R"))
	require.NoError(t, r.Join(elsewhere, "R2"))

	c := models.Comment{ID: "c1", PostID: "R", Text: "hi"}
	assert.Equal(t, 2, d.Publish("R", c))

	for _, s := range []*fakeSub{v1, v2} {
		got := s.received()
		require.Len(t, got, 1)
		assert.Equal(t, EventNewComment, got[0].Event)
		assert.Equal(t, "R", got[0].PostID)
		assert.Equal(t, c, got[0].Data)
	}
	assert.Empty(t, elsewhere.received())
}

func TestDispatcher_NoReplayForLateJoiners(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r, nil)
	early, late := &fakeSub{}, &fakeSub{}
	r.Attach(early)
	r.Attach(late)
	require.NoError(t, r.Join(early, "R"))

	d.Publish("R", models.Comment{ID: "c1"})
	require.NoError(t, r.Join(late, "R"))

	assert.Len(t, early.received(), 1)
	assert.Empty(t, late.received())

	d.Publish("R", models.Comment{ID: "c2"})
	assert.Len(t, early.received(), 2)
	assert.Len(t, late.received(), 1)
}

func TestDispatcher_ExactlyOncePerSubscriber(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r, nil)
	s := &fakeSub{}
	r.Attach(s)
	require.NoError(t, r.Join(s, "R"))
	require.NoError(t, r.Join(s, "R"))

	d.Publish("R", models.Comment{ID: "c1"})
	assert.Len(t, s.received(), 1)
}

func TestDispatcher_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r, nil)
	slow, fast := &fakeSub{full: true}, &fakeSub{}
	r.Attach(slow)
	r.Attach(fast)
	require.NoError(t, r.Join(slow, "R"))
	require.NoError(t, r.Join(fast, "R"))

	assert.Equal(t, 1, d.Publish("R", models.Comment{ID: "c1"}))
	assert.Len(t, fast.received(), 1)
}

func TestDispatcher_EmptyRoom(t *testing.T) {
	d := NewDispatcher(NewRegistry(), nil)
	assert.Equal(t, 0, d.Publish("nobody", models.Comment{ID: "c1"}))
}

func TestDispatcher_DroppedConnectionReceivesNothing(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r, nil)
	s := &fakeSub{}
	r.Attach(s)
	require.NoError(t, r.Join(s, "R"))
	r.Drop(s)

	assert.Equal(t, 0, d.Publish("R", models.Comment{ID: "c1"}))
	assert.Empty(t, s.received())
}
