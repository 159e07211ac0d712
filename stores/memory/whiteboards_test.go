package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"whiteboard-server/core"
)

func TestFindOrCreateRoom_CreatesOnce(t *testing.T) {
	store := NewWhiteboardStore()
	ctx := context.Background()

	created, err := store.FindOrCreateRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("FindOrCreateRoom() failed: %v", err)
	}
	if created.ID != "r1" {
		t.Errorf("Room ID mismatch: got %q, want \"r1\"", created.ID)
	}
	if created.CreatedAt == 0 || created.UpdatedAt == 0 {
		t.Error("Room timestamps not set")
	}

	again, err := store.FindOrCreateRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("Second FindOrCreateRoom() failed: %v", err)
	}
	if again.CreatedAt != created.CreatedAt {
		t.Error("Second find-or-create should return the existing record")
	}
}

func TestFindOrCreateRoom_EmptyID(t *testing.T) {
	store := NewWhiteboardStore()

	if _, err := store.FindOrCreateRoom(context.Background(), ""); err == nil {
		t.Error("Expected error for empty room id")
	}
}

func TestFindOrCreateRoom_Concurrent(t *testing.T) {
	store := NewWhiteboardStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.FindOrCreateRoom(ctx, "shared"); err != nil {
				t.Errorf("Concurrent FindOrCreateRoom() failed: %v", err)
			}
		}()
	}
	wg.Wait()

	roomList, err := store.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms() failed: %v", err)
	}
	if len(roomList) != 1 {
		t.Errorf("Expected exactly 1 room after concurrent creates, got %d", len(roomList))
	}
}

func TestGetRoom_Unknown(t *testing.T) {
	store := NewWhiteboardStore()

	_, err := store.GetRoom(context.Background(), "never")
	if !errors.Is(err, core.ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}

func TestAppendStroke_ReplayOrder(t *testing.T) {
	store := NewWhiteboardStore()
	ctx := context.Background()

	if _, err := store.FindOrCreateRoom(ctx, "r1"); err != nil {
		t.Fatalf("FindOrCreateRoom() failed: %v", err)
	}

	for i := 1; i <= 5; i++ {
		event := core.StrokeEvent{
			Kind:      core.StrokeSegment,
			X1:        float64(i),
			Timestamp: int64(i * 100),
		}
		if err := store.AppendStroke(ctx, "r1", event); err != nil {
			t.Fatalf("AppendStroke() failed: %v", err)
		}
	}

	history, err := store.ReplayHistory(ctx, "r1")
	if err != nil {
		t.Fatalf("ReplayHistory() failed: %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("Expected 5 events, got %d", len(history))
	}
	for i, event := range history {
		if event.Timestamp != int64((i+1)*100) {
			t.Errorf("Event %d out of order: timestamp %d", i, event.Timestamp)
		}
	}
}

func TestAppendStroke_UnknownRoom(t *testing.T) {
	store := NewWhiteboardStore()
	ctx := context.Background()

	err := store.AppendStroke(ctx, "ghost", core.StrokeEvent{Kind: core.StrokeSegment})
	if err != nil {
		t.Fatalf("AppendStroke() for unknown room should be a no-op, got %v", err)
	}

	history, err := store.ReplayHistory(ctx, "ghost")
	if err != nil {
		t.Fatalf("ReplayHistory() failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected no events for unknown room, got %d", len(history))
	}
}

func TestAppendStroke_TouchesRoom(t *testing.T) {
	store := NewWhiteboardStore()
	ctx := context.Background()

	room, err := store.FindOrCreateRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("FindOrCreateRoom() failed: %v", err)
	}

	if err := store.AppendStroke(ctx, "r1", core.StrokeEvent{Kind: core.StrokeSegment, Timestamp: 1}); err != nil {
		t.Fatalf("AppendStroke() failed: %v", err)
	}

	touched, err := store.GetRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRoom() failed: %v", err)
	}
	if touched.UpdatedAt < room.UpdatedAt {
		t.Error("AppendStroke() should touch the room's updated timestamp")
	}
}

func TestClearHistory(t *testing.T) {
	store := NewWhiteboardStore()
	ctx := context.Background()

	if _, err := store.FindOrCreateRoom(ctx, "r1"); err != nil {
		t.Fatalf("FindOrCreateRoom() failed: %v", err)
	}
	if err := store.AppendStroke(ctx, "r1", core.StrokeEvent{Kind: core.StrokeSegment, Timestamp: 1}); err != nil {
		t.Fatalf("AppendStroke() failed: %v", err)
	}

	if err := store.ClearHistory(ctx, "r1"); err != nil {
		t.Fatalf("ClearHistory() failed: %v", err)
	}

	history, err := store.ReplayHistory(ctx, "r1")
	if err != nil {
		t.Fatalf("ReplayHistory() failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected empty history after clear, got %d events", len(history))
	}

	// The room itself survives a clear.
	if _, err := store.GetRoom(ctx, "r1"); err != nil {
		t.Errorf("Room should still exist after clear: %v", err)
	}

	// Clearing an unknown room is a no-op.
	if err := store.ClearHistory(ctx, "ghost"); err != nil {
		t.Errorf("ClearHistory() for unknown room should be a no-op, got %v", err)
	}
}

func TestListRooms_OrderedByRecency(t *testing.T) {
	store := NewWhiteboardStore()
	ctx := context.Background()

	if _, err := store.FindOrCreateRoom(ctx, "older"); err != nil {
		t.Fatalf("FindOrCreateRoom() failed: %v", err)
	}
	if _, err := store.FindOrCreateRoom(ctx, "newer"); err != nil {
		t.Fatalf("FindOrCreateRoom() failed: %v", err)
	}

	// Touch the first room so it becomes the most recently active. The
	// sleep keeps the touch out of the creation millisecond.
	time.Sleep(2 * time.Millisecond)
	if err := store.AppendStroke(ctx, "older", core.StrokeEvent{Kind: core.StrokeSegment, Timestamp: 1}); err != nil {
		t.Fatalf("AppendStroke() failed: %v", err)
	}

	roomList, err := store.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms() failed: %v", err)
	}
	if len(roomList) != 2 {
		t.Fatalf("Expected 2 rooms, got %d", len(roomList))
	}
	if roomList[0].ID != "older" {
		t.Errorf("Most recently touched room should be first, got %q", roomList[0].ID)
	}
}

func TestSaveRoomName(t *testing.T) {
	store := NewWhiteboardStore()
	ctx := context.Background()

	room, err := store.SaveRoomName(ctx, "r1", "demo")
	if err != nil {
		t.Fatalf("SaveRoomName() failed: %v", err)
	}
	if room.Name != "demo" {
		t.Errorf("Name mismatch: got %q, want \"demo\"", room.Name)
	}

	// Saving again without a name keeps the existing one.
	room, err = store.SaveRoomName(ctx, "r1", "")
	if err != nil {
		t.Fatalf("SaveRoomName() failed: %v", err)
	}
	if room.Name != "demo" {
		t.Errorf("Empty name should not overwrite: got %q", room.Name)
	}

	// Renaming works.
	room, err = store.SaveRoomName(ctx, "r1", "renamed")
	if err != nil {
		t.Fatalf("SaveRoomName() failed: %v", err)
	}
	if room.Name != "renamed" {
		t.Errorf("Rename mismatch: got %q", room.Name)
	}
}

func TestSaveRoomName_GeneratesDefault(t *testing.T) {
	store := NewWhiteboardStore()

	room, err := store.SaveRoomName(context.Background(), "r1", "")
	if err != nil {
		t.Fatalf("SaveRoomName() failed: %v", err)
	}
	if room.Name == "" {
		t.Error("A room created by save should get a generated name")
	}
}

func TestSaveRoomName_EmptyID(t *testing.T) {
	store := NewWhiteboardStore()

	if _, err := store.SaveRoomName(context.Background(), "", "x"); err == nil {
		t.Error("Expected error for empty room id")
	}
}
