/*
Package space contains the core of the virtual space server.

This file defines the Hub, the single event loop that serializes every state change.
Connection goroutines only enqueue attach requests and session messages; the loop handles
each of them to completion, then evicts sessions that could not keep up.
*/
package space

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"hzspace/internal/pkg/logx"
	"hzspace/internal/pkg/metrics"
)

const inboxBuffer = 1024

var (
	ErrHubStopped       = errors.New("hub stopped")
	ErrDuplicateSession = errors.New("session already attached")
)

// envelope is one entry of the inbox: a session message, or a snapshot query when reply is set.
type envelope struct {
	sessionID string
	msg       Inbound
	reply     chan []RoomSummary
}

type attachRequest struct {
	sessionID string
	sink      Sink
	result    chan error
}

// Hub struct owns the Registry, the Router and the Broadcaster and runs them on one goroutine.
type Hub struct {
	registry    *Registry
	router      *Router
	broadcaster *Broadcaster

	// a buffered channel carrying session messages and snapshot queries in arrival order.
	inbox chan envelope

	// a channel for connections requesting to be attached.
	attach chan attachRequest

	// used to signal the loop to stop.
	stopChan chan struct{}
	stopOnce sync.Once

	// wg is used to wait for the loop goroutine to finish during shutdown.
	wg sync.WaitGroup

	metrics *metrics.Recorder
	logger  zerolog.Logger
}

// NewHub constructs a Hub and starts its event loop.
func NewHub(defaultDisplayLink string, rec *metrics.Recorder) *Hub {
	broadcaster := NewBroadcaster(rec)
	registry := NewRegistry(defaultDisplayLink, broadcaster)

	h := &Hub{
		registry:    registry,
		router:      NewRouter(registry, broadcaster, rec),
		broadcaster: broadcaster,
		inbox:       make(chan envelope, inboxBuffer),
		attach:      make(chan attachRequest),
		stopChan:    make(chan struct{}),
		metrics:     rec,
		logger:      logx.Component("Hub"),
	}

	h.wg.Add(1)

	go h.run()

	return h
}

// Attach registers the sink of a new session and sends the session its identifier.
// It blocks until the loop has processed the request.
func (h *Hub) Attach(sessionID string, sink Sink) error {
	req := attachRequest{sessionID: sessionID, sink: sink, result: make(chan error, 1)}

	select {
	case h.attach <- req:
	case <-h.stopChan:
		return ErrHubStopped
	}

	select {
	case err := <-req.result:
		return err
	case <-h.stopChan:
		return ErrHubStopped
	}
}

// Submit enqueues a message of sessionID for processing in the loop.
func (h *Hub) Submit(sessionID string, msg Inbound) error {
	select {
	case <-h.stopChan:
		return ErrHubStopped
	default:
	}

	select {
	case h.inbox <- envelope{sessionID: sessionID, msg: msg}:
		return nil
	case <-h.stopChan:
		return ErrHubStopped
	}
}

// Snapshot lists the live rooms. Every message submitted before the call has been processed
// by the time it returns.
func (h *Hub) Snapshot(ctx context.Context) ([]RoomSummary, error) {
	select {
	case <-h.stopChan:
		return nil, ErrHubStopped
	default:
	}

	reply := make(chan []RoomSummary, 1)

	select {
	case h.inbox <- envelope{reply: reply}:
	case <-h.stopChan:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case summaries := <-reply:
		return summaries, nil
	case <-h.stopChan:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops the event loop, closes every attached sink and waits for the loop to exit.
// Messages still queued are discarded.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down Hub event loop...")

	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
	h.wg.Wait()

	h.logger.Info().Msg("Hub shutdown complete.")
}

func (h *Hub) run() {
	defer h.wg.Done()
	defer h.broadcaster.DetachAll()

	h.logger.Info().Msg("Event loop started.")

	for {
		select {
		case req := <-h.attach:
			req.result <- h.handleAttach(req.sessionID, req.sink)

		case env := <-h.inbox:
			if env.reply != nil {
				env.reply <- h.registry.Summaries()
				continue
			}
			h.handle(env)

		case <-h.stopChan:
			h.logger.Info().
				Int("pending_events", len(h.inbox)).
				Msg("Event loop stopped.")
			return
		}

		h.evictLagging()
		h.metrics.SetRooms(h.registry.Len())
		h.metrics.SetSessions(h.router.Sessions())
	}
}

func (h *Hub) handleAttach(sessionID string, sink Sink) error {
	if !h.router.Connect(sessionID) {
		h.logger.Warn().Str("session_id", sessionID).Msg("Session id already attached. Attach rejected.")
		return ErrDuplicateSession
	}

	h.broadcaster.Attach(sessionID, sink)
	h.broadcaster.EmitTo(sessionID, sessionEvent(sessionID))

	h.logger.Info().
		Str("session_id", sessionID).
		Int("total_sessions", h.router.Sessions()).
		Msg("Session attached.")
	return nil
}

// handle processes one message. A panic in a handler is logged and the loop keeps running;
// a disconnecting session's sink is detached either way.
func (h *Hub) handle(env envelope) {
	if _, gone := env.msg.(Disconnect); gone {
		defer h.broadcaster.Detach(env.sessionID)
	}

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().
				Str("session_id", env.sessionID).
				Str("event", string(env.msg.Name())).
				Interface("panic", r).
				Msg("Recovered from panic while handling event.")
		}
	}()

	h.router.Dispatch(env.sessionID, env.msg)
}

// evictLagging disconnects the sessions whose send queue overflowed. Evicting one session
// broadcasts to its room and may mark further sessions, so it runs until nothing is left.
func (h *Hub) evictLagging() {
	for {
		lagging := h.broadcaster.TakeLagging()
		if len(lagging) == 0 {
			return
		}

		for _, sessionID := range lagging {
			if h.router.State(sessionID) == Left {
				h.broadcaster.Detach(sessionID)
				continue
			}

			h.router.disconnect(sessionID)
			h.broadcaster.Detach(sessionID)
			h.metrics.SessionEvicted()

			h.logger.Warn().Str("session_id", sessionID).Msg("Slow session evicted.")
		}
	}
}
