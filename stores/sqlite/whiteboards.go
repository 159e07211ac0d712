package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	stdlog "log"
	"time"

	"whiteboard-server/core"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type whiteboardStore struct {
	db *sql.DB
}

func NewWhiteboardStore(dataSourceName string) core.WhiteboardStore {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		stdlog.Fatal(err)
	}

	roomsTable := `CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		name TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	_, err = db.Exec(roomsTable)
	if err != nil {
		stdlog.Fatal(err)
	}

	strokesTable := `CREATE TABLE IF NOT EXISTS strokes (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL REFERENCES rooms(id),
		kind TEXT NOT NULL,
		x0 REAL, y0 REAL, x1 REAL, y1 REAL,
		color TEXT,
		width REAL,
		timestamp INTEGER NOT NULL
	);`
	_, err = db.Exec(strokesTable)
	if err != nil {
		stdlog.Fatal(err)
	}

	// ULID ids are time-ordered, so (timestamp, id) gives a stable replay
	// order even for strokes sharing a millisecond.
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_strokes_room_time ON strokes (room_id, timestamp, id);`)
	if err != nil {
		stdlog.Fatal(err)
	}

	return &whiteboardStore{db}
}

func (s *whiteboardStore) FindOrCreateRoom(ctx context.Context, roomID string) (*core.Room, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room id is required")
	}
	log := logrus.WithField("room_id", roomID)

	now := time.Now().UnixMilli()
	// Losing the insert race to a concurrent join is fine; the following
	// select returns the winning row either way.
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO rooms (id, name, created_at, updated_at) VALUES (?, NULL, ?, ?) ON CONFLICT(id) DO NOTHING",
		roomID, now, now)
	if err != nil {
		log.WithField("error", err).Error("Failed to create room")
		return nil, err
	}

	return s.GetRoom(ctx, roomID)
}

func (s *whiteboardStore) GetRoom(ctx context.Context, roomID string) (*core.Room, error) {
	log := logrus.WithField("room_id", roomID)

	var room core.Room
	var name sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM rooms WHERE id = ?",
		roomID).Scan(&room.ID, &name, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("room %s: %w", roomID, core.ErrRoomNotFound)
		}
		log.WithField("error", err).Error("Failed to retrieve room")
		return nil, err
	}
	room.Name = name.String
	return &room, nil
}

func (s *whiteboardStore) AppendStroke(ctx context.Context, roomID string, event core.StrokeEvent) error {
	log := logrus.WithField("room_id", roomID)

	// Touching the room first doubles as the existence check: zero rows
	// affected means no record, and the stroke is dropped per contract.
	result, err := s.db.ExecContext(ctx,
		"UPDATE rooms SET updated_at = ? WHERE id = ?",
		time.Now().UnixMilli(), roomID)
	if err != nil {
		log.WithField("error", err).Error("Failed to touch room")
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		log.Debug("Dropping stroke for unknown room")
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO strokes (id, room_id, kind, x0, y0, x1, y1, color, width, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		ulid.Make().String(), roomID, string(event.Kind),
		event.X0, event.Y0, event.X1, event.Y1,
		event.Color, event.Width, event.Timestamp)
	if err != nil {
		log.WithField("error", err).Error("Failed to persist stroke")
		return err
	}
	return nil
}

func (s *whiteboardStore) ReplayHistory(ctx context.Context, roomID string) ([]core.StrokeEvent, error) {
	log := logrus.WithField("room_id", roomID)

	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, x0, y0, x1, y1, color, width, timestamp FROM strokes WHERE room_id = ? ORDER BY timestamp ASC, id ASC",
		roomID)
	if err != nil {
		log.WithField("error", err).Error("Failed to query stroke history")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close stroke rows")
		}
	}()

	events := make([]core.StrokeEvent, 0)
	for rows.Next() {
		var event core.StrokeEvent
		var kind string
		var color sql.NullString
		err = rows.Scan(&kind, &event.X0, &event.Y0, &event.X1, &event.Y1, &color, &event.Width, &event.Timestamp)
		if err != nil {
			log.WithField("error", err).Error("Failed to scan stroke")
			continue
		}
		event.Kind = core.StrokeKind(kind)
		event.Color = color.String
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *whiteboardStore) ClearHistory(ctx context.Context, roomID string) error {
	log := logrus.WithField("room_id", roomID)

	result, err := s.db.ExecContext(ctx,
		"UPDATE rooms SET updated_at = ? WHERE id = ?",
		time.Now().UnixMilli(), roomID)
	if err != nil {
		log.WithField("error", err).Error("Failed to touch room")
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, "DELETE FROM strokes WHERE room_id = ?", roomID)
	if err != nil {
		log.WithField("error", err).Error("Failed to clear stroke history")
		return err
	}
	log.Info("Room history cleared")
	return nil
}

func (s *whiteboardStore) ListRooms(ctx context.Context) ([]core.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, created_at, updated_at FROM rooms ORDER BY updated_at DESC, id ASC")
	if err != nil {
		logrus.WithField("error", err).Error("Failed to list rooms")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("Failed to close room rows")
		}
	}()

	rooms := make([]core.Room, 0)
	for rows.Next() {
		var room core.Room
		var name sql.NullString
		err = rows.Scan(&room.ID, &name, &room.CreatedAt, &room.UpdatedAt)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to scan room")
			continue
		}
		room.Name = name.String
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *whiteboardStore) SaveRoomName(ctx context.Context, roomID, name string) (*core.Room, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room id is required")
	}
	log := logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"name":    name,
	})

	now := time.Now().UnixMilli()
	createName := name
	if createName == "" {
		createName = core.DefaultRoomName(now)
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO rooms (id, name, created_at, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT(id) DO NOTHING",
		roomID, createName, now, now)
	if err != nil {
		log.WithField("error", err).Error("Failed to save room")
		return nil, err
	}

	created, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if created == 0 {
		if name != "" {
			_, err = s.db.ExecContext(ctx,
				"UPDATE rooms SET name = ?, updated_at = ? WHERE id = ?",
				name, now, roomID)
		} else {
			_, err = s.db.ExecContext(ctx,
				"UPDATE rooms SET updated_at = ? WHERE id = ?",
				now, roomID)
		}
		if err != nil {
			log.WithField("error", err).Error("Failed to update room name")
			return nil, err
		}
	}

	return s.GetRoom(ctx, roomID)
}
