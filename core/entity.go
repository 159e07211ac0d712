package core

import (
	"context"
	"errors"
	"time"
)

// ErrRoomNotFound is returned by lookup-only store operations when the room
// has never been created.
var ErrRoomNotFound = errors.New("room not found")

type (
	// StrokeKind discriminates the two event kinds a whiteboard records.
	StrokeKind string

	// Room is one named, independently persisted canvas.
	Room struct {
		ID        string `json:"roomId"`
		Name      string `json:"name,omitempty"`
		CreatedAt int64  `json:"createdAt"`
		UpdatedAt int64  `json:"updatedAt"`
	}

	// StrokeEvent is an atomic drawing primitive. Segment events carry the
	// full line description and reference no prior event, so a room's
	// history replays correctly in plain timestamp order.
	StrokeEvent struct {
		Kind      StrokeKind `json:"type"`
		X0        float64    `json:"x0"`
		Y0        float64    `json:"y0"`
		X1        float64    `json:"x1"`
		Y1        float64    `json:"y1"`
		Color     string     `json:"color"`
		Width     float64    `json:"width"`
		Timestamp int64      `json:"timestamp"`
	}

	// WhiteboardStore is the persistence gateway for rooms and their event
	// logs. Implementations own their timeout and retry policy; callers
	// treat every failure as non-fatal to live collaboration.
	WhiteboardStore interface {
		// FindOrCreateRoom returns the room, creating it with default
		// metadata on first sight. A concurrent create of the same id must
		// resolve to the winning record, never an error.
		FindOrCreateRoom(ctx context.Context, roomID string) (*Room, error)

		// GetRoom returns the room or ErrRoomNotFound.
		GetRoom(ctx context.Context, roomID string) (*Room, error)

		// AppendStroke persists one event under the room and touches its
		// updated timestamp. Appending to a room that has no record is a
		// no-op.
		AppendStroke(ctx context.Context, roomID string, event StrokeEvent) error

		// ReplayHistory returns the room's events ordered by timestamp
		// ascending; empty for an unknown or empty room.
		ReplayHistory(ctx context.Context, roomID string) ([]StrokeEvent, error)

		// ClearHistory deletes the room's events and touches its updated
		// timestamp; no-op for an unknown room.
		ClearHistory(ctx context.Context, roomID string) error

		// ListRooms returns all rooms ordered by updated timestamp
		// descending.
		ListRooms(ctx context.Context) ([]Room, error)

		// SaveRoomName finds or creates the room and, when name is
		// non-empty, sets it. A room created here without a name gets a
		// generated one.
		SaveRoomName(ctx context.Context, roomID, name string) (*Room, error)
	}
)

const (
	StrokeSegment StrokeKind = "segment"
	StrokeClear   StrokeKind = "clear"
)

// DefaultRoomName is the generated display name for a room saved without
// one, derived from its creation time.
func DefaultRoomName(unixMilli int64) string {
	return "Session " + time.UnixMilli(unixMilli).Format("2006-01-02 15:04:05")
}
