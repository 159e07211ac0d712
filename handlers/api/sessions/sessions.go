package sessions

import (
	"encoding/json"
	"errors"
	"net/http"

	"whiteboard-server/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	SaveSessionRequest struct {
		RoomID string `json:"roomId"`
		Name   string `json:"name"`
	}

	SaveSessionResponse struct {
		Success    bool       `json:"success"`
		Whiteboard *core.Room `json:"whiteboard"`
	}

	SessionDetailResponse struct {
		core.Room
		Strokes []core.StrokeEvent `json:"strokes"`
	}
)

// HandleList returns all saved sessions, most recently active first.
func HandleList(store core.WhiteboardStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomList, err := store.ListRooms(r.Context())
		if err != nil {
			logrus.WithField("error", err).Error("Failed to list sessions")
			http.Error(w, "Failed to fetch sessions", http.StatusInternalServerError)
			return
		}

		if roomList == nil {
			roomList = []core.Room{}
		}
		render.JSON(w, r, roomList)
	}
}

// HandleSave finds or creates the session's room and names it.
func HandleSave(store core.WhiteboardStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SaveSessionRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to decode request")
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.RoomID == "" {
			http.Error(w, "roomId is required", http.StatusBadRequest)
			return
		}

		room, err := store.SaveRoomName(r.Context(), req.RoomID, req.Name)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"room_id": req.RoomID,
				"error":   err,
			}).Error("Failed to save session")
			http.Error(w, "Failed to save session", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, SaveSessionResponse{Success: true, Whiteboard: room})
	}
}

// HandleGet returns one session's room record together with its full
// ordered stroke history.
func HandleGet(store core.WhiteboardStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")
		log := logrus.WithField("room_id", roomID)

		room, err := store.GetRoom(r.Context(), roomID)
		if err != nil {
			if errors.Is(err, core.ErrRoomNotFound) {
				http.Error(w, "Session not found", http.StatusNotFound)
				return
			}
			log.WithField("error", err).Error("Failed to get session")
			http.Error(w, "Failed to fetch session", http.StatusInternalServerError)
			return
		}

		strokes, err := store.ReplayHistory(r.Context(), roomID)
		if err != nil {
			log.WithField("error", err).Error("Failed to replay session history")
			http.Error(w, "Failed to fetch session", http.StatusInternalServerError)
			return
		}
		if strokes == nil {
			strokes = []core.StrokeEvent{}
		}

		render.JSON(w, r, SessionDetailResponse{Room: *room, Strokes: strokes})
	}
}
