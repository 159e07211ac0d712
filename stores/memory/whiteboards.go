package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"whiteboard-server/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type storedStroke struct {
	id    string
	event core.StrokeEvent
}

type whiteboardStore struct {
	mu      sync.RWMutex
	rooms   map[string]core.Room
	strokes map[string][]storedStroke
}

func NewWhiteboardStore() core.WhiteboardStore {
	return &whiteboardStore{
		rooms:   make(map[string]core.Room),
		strokes: make(map[string][]storedStroke),
	}
}

func (s *whiteboardStore) FindOrCreateRoom(ctx context.Context, roomID string) (*core.Room, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if room, ok := s.rooms[roomID]; ok {
		return &room, nil
	}

	now := time.Now().UnixMilli()
	room := core.Room{ID: roomID, CreatedAt: now, UpdatedAt: now}
	s.rooms[roomID] = room

	logrus.WithField("room_id", roomID).Info("Room created")
	return &room, nil
}

func (s *whiteboardStore) GetRoom(ctx context.Context, roomID string) (*core.Room, error) {
	s.mu.RLock()
	room, ok := s.rooms[roomID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("room %s: %w", roomID, core.ErrRoomNotFound)
	}
	return &room, nil
}

func (s *whiteboardStore) AppendStroke(ctx context.Context, roomID string, event core.StrokeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		// History durability is not guaranteed for a room with no record;
		// the live broadcast already happened.
		logrus.WithField("room_id", roomID).Debug("Dropping stroke for unknown room")
		return nil
	}

	s.strokes[roomID] = append(s.strokes[roomID], storedStroke{
		id:    ulid.Make().String(),
		event: event,
	})
	room.UpdatedAt = time.Now().UnixMilli()
	s.rooms[roomID] = room
	return nil
}

func (s *whiteboardStore) ReplayHistory(ctx context.Context, roomID string) ([]core.StrokeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.strokes[roomID]
	events := make([]core.StrokeEvent, 0, len(stored))
	for _, stroke := range stored {
		events = append(events, stroke.event)
	}

	// Append order already is timestamp order for a single writer; the
	// stable sort keeps equal timestamps in insertion order.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})
	return events, nil
}

func (s *whiteboardStore) ClearHistory(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil
	}

	delete(s.strokes, roomID)
	room.UpdatedAt = time.Now().UnixMilli()
	s.rooms[roomID] = room

	logrus.WithField("room_id", roomID).Info("Room history cleared")
	return nil
}

func (s *whiteboardStore) ListRooms(ctx context.Context) ([]core.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]core.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].UpdatedAt == rooms[j].UpdatedAt {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].UpdatedAt > rooms[j].UpdatedAt
	})
	return rooms, nil
}

func (s *whiteboardStore) SaveRoomName(ctx context.Context, roomID, name string) (*core.Room, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	room, ok := s.rooms[roomID]
	if !ok {
		room = core.Room{ID: roomID, Name: name, CreatedAt: now, UpdatedAt: now}
		if room.Name == "" {
			room.Name = core.DefaultRoomName(now)
		}
		s.rooms[roomID] = room
		logrus.WithFields(logrus.Fields{
			"room_id": roomID,
			"name":    room.Name,
		}).Info("Room created on save")
		return &room, nil
	}

	if name != "" {
		room.Name = name
	}
	room.UpdatedAt = now
	s.rooms[roomID] = room
	return &room, nil
}
