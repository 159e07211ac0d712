package rooms

import (
	"context"
	"errors"
	"sync"
	"time"

	"whiteboard-server/core"

	"github.com/sirupsen/logrus"
)

// Outbound event names, matching what the drawing client listens for.
const (
	EventRoomUsers      = "roomUsers"
	EventDraw           = "draw"
	EventClear          = "clear"
	EventLoadWhiteboard = "loadWhiteboard"
)

// ErrNotInRoom rejects draw/clear actions from a session that has not
// joined a room. It is the only error a session's own actions surface; store
// and delivery failures degrade durability, not liveness.
var ErrNotInRoom = errors.New("session is not in a room")

// Coordinator runs the per-session protocol: join (leave old room, load
// history, announce counts), draw and clear (live fan-out plus independent
// persistence), and disconnect. One Coordinator serves all sessions; the
// registry carries the per-session state.
type Coordinator struct {
	registry    *Registry
	broadcaster *Broadcaster
	store       core.WhiteboardStore
	persists    sync.WaitGroup
}

func NewCoordinator(registry *Registry, broadcaster *Broadcaster, store core.WhiteboardStore) *Coordinator {
	if registry == nil || broadcaster == nil || store == nil {
		panic("rooms: coordinator requires a registry, broadcaster and store")
	}
	return &Coordinator{
		registry:    registry,
		broadcaster: broadcaster,
		store:       store,
	}
}

// Join binds the session to roomID, releasing any previous binding first,
// and replays the room's history privately to the joining session. Joining
// the room the session is already in is a full rejoin and re-replays. Member
// counts are announced to every affected room, joiner and leaver included.
func (c *Coordinator) Join(ctx context.Context, sessionID, roomID string, sink EventSink) {
	log := logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"room_id":    roomID,
	})

	if oldRoom, oldCount, ok := c.registry.Leave(sessionID); ok {
		c.broadcaster.Broadcast(oldRoom, EventRoomUsers, "", oldCount)
		log.WithField("previous_room_id", oldRoom).Debug("session left previous room")
	}

	// Store failures here must not keep the session out of the room: the
	// join proceeds with an empty history and live collaboration works.
	if _, err := c.store.FindOrCreateRoom(ctx, roomID); err != nil {
		log.WithField("error", err).Error("failed to find or create room")
	}
	history, err := c.store.ReplayHistory(ctx, roomID)
	if err != nil {
		log.WithField("error", err).Error("failed to replay room history")
	}
	if history == nil {
		history = []core.StrokeEvent{}
	}

	count := c.registry.Join(sessionID, roomID, sink)
	c.broadcaster.Broadcast(roomID, EventRoomUsers, "", count)

	if err := sink.Emit(EventLoadWhiteboard, history); err != nil {
		log.WithField("error", err).Warn("failed to deliver history to joining session")
	}

	log.WithFields(logrus.Fields{
		"member_count":  count,
		"history_count": len(history),
	}).Info("session joined room")
}

// Draw fans the segment out to the session's room peers and persists it.
// The two effects are independent: the append runs in the background and a
// store failure never cancels the live broadcast.
func (c *Coordinator) Draw(ctx context.Context, sessionID string, event core.StrokeEvent) error {
	roomID, ok := c.registry.RoomOf(sessionID)
	if !ok {
		return ErrNotInRoom
	}

	event.Kind = core.StrokeSegment
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	c.broadcaster.Broadcast(roomID, EventDraw, sessionID, event)

	c.persists.Add(1)
	go func() {
		defer c.persists.Done()
		if err := c.store.AppendStroke(context.WithoutCancel(ctx), roomID, event); err != nil {
			logrus.WithFields(logrus.Fields{
				"session_id": sessionID,
				"room_id":    roomID,
				"error":      err,
			}).Error("failed to persist stroke")
		}
	}()

	return nil
}

// Clear broadcasts the reset to the session's room peers and purges the
// room's stored history, again as independent effects.
func (c *Coordinator) Clear(ctx context.Context, sessionID string) error {
	roomID, ok := c.registry.RoomOf(sessionID)
	if !ok {
		return ErrNotInRoom
	}

	c.broadcaster.Broadcast(roomID, EventClear, sessionID)

	c.persists.Add(1)
	go func() {
		defer c.persists.Done()
		if err := c.store.ClearHistory(context.WithoutCancel(ctx), roomID); err != nil {
			logrus.WithFields(logrus.Fields{
				"session_id": sessionID,
				"room_id":    roomID,
				"error":      err,
			}).Error("failed to clear stored history")
		}
	}()

	return nil
}

// Disconnect releases the session's binding and announces the shrunken
// count to the room it left. Disconnecting an unbound session is a no-op.
func (c *Coordinator) Disconnect(sessionID string) {
	roomID, count, ok := c.registry.Leave(sessionID)
	if !ok {
		return
	}
	c.broadcaster.Broadcast(roomID, EventRoomUsers, "", count)
	logrus.WithFields(logrus.Fields{
		"session_id":   sessionID,
		"room_id":      roomID,
		"member_count": count,
	}).Info("session disconnected from room")
}

// Wait blocks until in-flight persistence writes finish. Used on shutdown
// so accepted strokes reach the store before the process exits.
func (c *Coordinator) Wait() {
	c.persists.Wait()
}
