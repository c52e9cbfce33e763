package realtime

// Event names exchanged over the websocket.
const (
	EventJoinPost   = "join_post"
	EventLeavePost  = "leave_post"
	EventJoined     = "joined"
	EventLeft       = "left"
	EventNewComment = "new_comment"
	EventError      = "error"
)

// Event is the envelope for every frame in both directions.
type Event struct {
	Event   string `json:"event"`
	PostID  string `json:"post_id,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}
