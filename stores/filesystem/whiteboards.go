package filesystem

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdlog "log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"whiteboard-server/core"

	"github.com/sirupsen/logrus"
)

const (
	roomFile    = "room.json"
	strokesFile = "strokes.ndjson"
)

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrRoomNotFound)
}

// whiteboardStore keeps one directory per room: room.json holds the record,
// strokes.ndjson is the append-only event log, one JSON event per line.
type whiteboardStore struct {
	mu       sync.Mutex
	basePath string
}

func NewWhiteboardStore(basePath string) core.WhiteboardStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		stdlog.Fatalf("failed to create base directory: %v", err)
	}
	return &whiteboardStore{basePath: basePath}
}

// roomPath maps the opaque room id onto a path-safe directory name.
func (s *whiteboardStore) roomPath(roomID string) string {
	return filepath.Join(s.basePath, url.PathEscape(roomID))
}

func (s *whiteboardStore) readRoom(roomID string) (*core.Room, error) {
	data, err := os.ReadFile(filepath.Join(s.roomPath(roomID), roomFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("room %s: %w", roomID, core.ErrRoomNotFound)
		}
		return nil, err
	}

	var room core.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("room %s: corrupt record: %w", roomID, err)
	}
	return &room, nil
}

func (s *whiteboardStore) writeRoom(room *core.Room) error {
	dir := s.roomPath(room.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, roomFile), data, 0644)
}

func (s *whiteboardStore) FindOrCreateRoom(ctx context.Context, roomID string) (*core.Room, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.readRoom(roomID)
	if err == nil {
		return room, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	now := time.Now().UnixMilli()
	room = &core.Room{ID: roomID, CreatedAt: now, UpdatedAt: now}
	if err := s.writeRoom(room); err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "error": err}).Error("Failed to create room")
		return nil, err
	}

	logrus.WithField("room_id", roomID).Info("Room created")
	return room, nil
}

func (s *whiteboardStore) GetRoom(ctx context.Context, roomID string) (*core.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readRoom(roomID)
}

func (s *whiteboardStore) AppendStroke(ctx context.Context, roomID string, event core.StrokeEvent) error {
	log := logrus.WithField("room_id", roomID)

	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.readRoom(roomID)
	if err != nil {
		if isNotFound(err) {
			log.Debug("Dropping stroke for unknown room")
			return nil
		}
		return err
	}

	line, err := json.Marshal(event)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(s.roomPath(roomID), strokesFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.WithField("error", err).Error("Failed to open stroke log")
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close stroke log")
		}
	}()

	if _, err := f.Write(append(line, '\n')); err != nil {
		log.WithField("error", err).Error("Failed to append stroke")
		return err
	}

	room.UpdatedAt = time.Now().UnixMilli()
	return s.writeRoom(room)
}

func (s *whiteboardStore) ReplayHistory(ctx context.Context, roomID string) ([]core.StrokeEvent, error) {
	log := logrus.WithField("room_id", roomID)

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(filepath.Join(s.roomPath(roomID), strokesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []core.StrokeEvent{}, nil
		}
		log.WithField("error", err).Error("Failed to open stroke log")
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close stroke log")
		}
	}()

	events := make([]core.StrokeEvent, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var event core.StrokeEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			log.WithField("error", err).Warn("Skipping corrupt stroke log line")
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})
	return events, nil
}

func (s *whiteboardStore) ClearHistory(ctx context.Context, roomID string) error {
	log := logrus.WithField("room_id", roomID)

	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.readRoom(roomID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}

	if err := os.Remove(filepath.Join(s.roomPath(roomID), strokesFile)); err != nil && !os.IsNotExist(err) {
		log.WithField("error", err).Error("Failed to remove stroke log")
		return err
	}

	room.UpdatedAt = time.Now().UnixMilli()
	if err := s.writeRoom(room); err != nil {
		return err
	}
	log.Info("Room history cleared")
	return nil
}

func (s *whiteboardStore) ListRooms(ctx context.Context) ([]core.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		logrus.WithField("error", err).Error("Failed to read store directory")
		return nil, err
	}

	rooms := make([]core.Room, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.basePath, entry.Name(), roomFile))
		if err != nil {
			logrus.WithFields(logrus.Fields{"dir": entry.Name(), "error": err}).Warn("Skipping room directory without record")
			continue
		}
		var room core.Room
		if err := json.Unmarshal(data, &room); err != nil {
			logrus.WithFields(logrus.Fields{"dir": entry.Name(), "error": err}).Warn("Skipping corrupt room record")
			continue
		}
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
	room, err := s.readRoom(roomID)
	if err != nil {
		if !isNotFound(err) {
			return nil, err
		}
		room = &core.Room{ID: roomID, Name: name, CreatedAt: now, UpdatedAt: now}
		if room.Name == "" {
			room.Name = core.DefaultRoomName(now)
		}
		if err := s.writeRoom(room); err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{"room_id": roomID, "name": room.Name}).Info("Room created on save")
		return room, nil
	}

	if name != "" {
		room.Name = name
	}
	room.UpdatedAt = now
	if err := s.writeRoom(room); err != nil {
		return nil, err
	}
	return room, nil
}
