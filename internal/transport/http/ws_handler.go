package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"evaly-service/internal/metrics"
	"go.uber.org/zap"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServePresenceWS upgrades to a websocket that keeps the caller's presence in a test alive.
// Clients send {"type":"heartbeat"} periodically and {"type":"update","payload":{...}} to change
// their presence data; the server pushes {"type":"presence"} snapshots of who is present.
func (h *Handler) ServePresenceWS(w http.ResponseWriter, r *http.Request) {
	testID := r.URL.Query().Get("testId")
	if testID == "" {
		http.Error(w, "missing testId", http.StatusBadRequest)
		return
	}
	participantID := callerFrom(r.Context()).UserID
	log := h.log.With(zap.String("testId", testID), zap.String("participantId", participantID))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	metrics.PresenceConnections.Inc()
	defer metrics.PresenceConnections.Dec()

	ctx := r.Context()
	joined, err := h.svc.Presence.UpdatePresence(ctx, testID, participantID, nil)
	if err == nil {
		err = h.svc.Presence.Heartbeat(ctx, testID, participantID)
	}
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	// A closed socket is an explicit leave; the watchdog covers clients that vanish silently.
	defer func() {
		if err := h.svc.Presence.MarkAsGone(context.WithoutCancel(ctx), testID, participantID); err != nil {
			log.Warn("mark as gone on disconnect", zap.Error(err))
		}
	}()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	pusherDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(pusherDone)
		ticker := time.NewTicker(h.pushEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				list, err := h.svc.Presence.ListPresence(ctx, testID)
				if err != nil {
					log.Warn("list presence", zap.Error(err))
					continue
				}
				select {
				case send <- outboundMessage[any]{Type: "presence", Payload: orEmpty(list)}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: joined}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "heartbeat":
			if err := h.svc.Presence.Heartbeat(ctx, testID, participantID); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "update":
			presence, err := h.svc.Presence.UpdatePresence(ctx, testID, participantID, inbound.Payload)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "updated", Payload: presence}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-pusherDone
	close(send)
	<-writerDone
}
