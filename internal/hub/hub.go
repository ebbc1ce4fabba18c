// Package hub fans out progress events to clients subscribed per job
// id over WebSocket (github.com/gorilla/websocket), keyed on a map of
// job id to connection list with broadcast-with-drop-on-failure
// semantics. Each job's room runs its own single-writer goroutine,
// started by the job's first Subscribe and stopped by CloseJob.
package hub

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"maukemana-backend/internal/progress"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// subscriber wraps one client connection for a job.
type subscriber struct {
	conn *websocket.Conn
	send chan progress.Event
}

// jobRoom serialises delivery to all of one job's subscribers through
// a single writer goroutine, guaranteeing events arrive in the order
// they were emitted.
type jobRoom struct {
	events      chan progress.Event
	subscribe   chan *subscriber
	unsubscribe chan *subscriber
	done        chan struct{}
}

// Hub maintains the job_id -> subscriber-set mapping and fans out
// progress events published by the progress tracker.
type Hub struct {
	log *slog.Logger

	mu    sync.Mutex
	rooms map[string]*jobRoom
}

// New creates an empty Hub.
func New(log *slog.Logger) *Hub {
	return &Hub{log: log, rooms: make(map[string]*jobRoom)}
}

// Publish implements progress.Sink: it fans the event out to every
// subscriber currently connected for event.JobID. If the job has no
// room yet (no subscribers have connected), the event is dropped —
// a late subscriber receives the current aggregate via its initial
// snapshot instead.
func (h *Hub) Publish(event progress.Event) {
	h.mu.Lock()
	room, ok := h.rooms[event.JobID]
	h.mu.Unlock()
	if !ok {
		return
	}
	select {
	case room.events <- event:
	case <-room.done:
	}
}

// CloseJob tears down a job's room, closing every subscriber
// connection. Call once the job reaches a terminal status and the
// final event has been delivered.
func (h *Hub) CloseJob(jobID string) {
	h.mu.Lock()
	room, ok := h.rooms[jobID]
	if ok {
		delete(h.rooms, jobID)
	}
	h.mu.Unlock()
	if ok {
		close(room.done)
	}
}

func (h *Hub) roomFor(jobID string) *jobRoom {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[jobID]
	if ok {
		return room
	}
	room = &jobRoom{
		events:      make(chan progress.Event, 64),
		subscribe:   make(chan *subscriber),
		unsubscribe: make(chan *subscriber),
		done:        make(chan struct{}),
	}
	h.rooms[jobID] = room
	go h.runRoom(jobID, room)
	return room
}

// runRoom is the single writer goroutine for one job's subscribers.
func (h *Hub) runRoom(jobID string, room *jobRoom) {
	subs := make(map[*subscriber]struct{})
	for {
		select {
		case <-room.done:
			for s := range subs {
				close(s.send)
				s.conn.Close()
			}
			return
		case s := <-room.subscribe:
			subs[s] = struct{}{}
		case s := <-room.unsubscribe:
			if _, ok := subs[s]; ok {
				delete(subs, s)
				close(s.send)
			}
		case event := <-room.events:
			for s := range subs {
				select {
				case s.send <- event:
				default:
					h.log.Warn("hub: subscriber send buffer full, dropping", "job_id", jobID)
					delete(subs, s)
					close(s.send)
				}
			}
		}
	}
}

// Subscribe upgrades an HTTP connection to a WebSocket for job_id,
// immediately sends the snapshot, then streams events until the
// client disconnects. snapshot is provided by the caller (read from
// the Progress Tracker) to avoid this package depending on the
// concrete Tracker type.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, jobID string, snapshot progress.Snapshot) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	room := h.roomFor(jobID)
	sub := &subscriber{conn: conn, send: make(chan progress.Event, 16)}

	select {
	case room.subscribe <- sub:
	case <-room.done:
		conn.Close()
		return nil
	}

	initial := progress.Event{JobID: jobID, Counts: snapshot, Timestamp: time.Now()}
	if err := conn.WriteJSON(initial); err != nil {
		h.unsubscribe(room, sub)
		conn.Close()
		return err
	}

	go h.readPump(room, sub)
	h.writePump(room, sub)
	return nil
}

// readPump drains (and discards) client frames so ping/pong and close
// control frames are processed, per gorilla/websocket convention.
func (h *Hub) readPump(room *jobRoom, sub *subscriber) {
	defer h.unsubscribe(room, sub)
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(room *jobRoom, sub *subscriber) {
	defer sub.conn.Close()
	for {
		select {
		case event, ok := <-sub.send:
			if !ok {
				return
			}
			if err := sub.conn.WriteJSON(event); err != nil {
				h.unsubscribe(room, sub)
				return
			}
		case <-room.done:
			return
		}
	}
}

func (h *Hub) unsubscribe(room *jobRoom, sub *subscriber) {
	select {
	case room.unsubscribe <- sub:
	case <-room.done:
	}
}
