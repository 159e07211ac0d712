package rooms

import (
	"github.com/sirupsen/logrus"
)

// Broadcaster fans an event out to every session the registry currently has
// in a room. Membership is queried at send time, never cached.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Broadcast delivers the event to every session in roomID except
// excludeSessionID (empty string excludes nobody). Each delivery is
// isolated: a failing peer is logged and skipped, never retried, and never
// blocks delivery to the rest of the room.
func (b *Broadcaster) Broadcast(roomID, event string, excludeSessionID string, args ...any) {
	sinks := b.registry.sinksIn(roomID, excludeSessionID)
	if len(sinks) == 0 {
		return
	}

	log := logrus.WithFields(logrus.Fields{
		"room_id":         roomID,
		"event":           event,
		"recipient_count": len(sinks),
	})
	log.Debug("broadcasting to room")

	for _, sink := range sinks {
		if err := sink.Emit(event, args...); err != nil {
			log.WithField("error", err).Warn("dropping failed delivery to peer")
		}
	}
}
