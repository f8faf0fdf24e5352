package space

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"hzspace/internal/app/user"
)

const testDisplayLink = "https://example.com/stream.m3u8"

type wireFrame struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// recordingSink keeps every delivered frame. With a positive capacity it refuses
// frames once that many are held, like a full send queue.
type recordingSink struct {
	mu       sync.Mutex
	frames   []wireFrame
	capacity int
	closed   bool
}

func (s *recordingSink) Deliver(raw []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || (s.capacity > 0 && len(s.frames) >= s.capacity) {
		return false
	}

	var f wireFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		panic(err)
	}
	s.frames = append(s.frames, f)
	return true
}

func (s *recordingSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *recordingSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *recordingSink) events() []EventName {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]EventName, 0, len(s.frames))
	for _, f := range s.frames {
		names = append(names, f.Event)
	}
	return names
}

func (s *recordingSink) count(name EventName) int {
	n := 0
	for _, e := range s.events() {
		if e == name {
			n++
		}
	}
	return n
}

// last decodes the data of the most recent frame named name into dst.
func (s *recordingSink) last(t *testing.T, name EventName, dst any) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Event == name {
			require.NoError(t, json.Unmarshal(s.frames[i].Data, dst))
			return
		}
	}
	t.Fatalf("no %q frame received", name)
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
}

// fixture wires a Registry, Router and Broadcaster without the hub goroutine.
type fixture struct {
	registry    *Registry
	router      *Router
	broadcaster *Broadcaster
	sinks       map[string]*recordingSink
}

func newFixture() *fixture {
	b := NewBroadcaster(nil)
	registry := NewRegistry(testDisplayLink, b)

	return &fixture{
		registry:    registry,
		router:      NewRouter(registry, b, nil),
		broadcaster: b,
		sinks:       make(map[string]*recordingSink),
	}
}

func (f *fixture) connect(ids ...string) {
	for _, id := range ids {
		sink := &recordingSink{}
		f.sinks[id] = sink
		f.router.Connect(id)
		f.broadcaster.Attach(id, sink)
	}
}

func (f *fixture) dispatch(id string, msg Inbound) {
	f.router.Dispatch(id, msg)
	if _, gone := msg.(Disconnect); gone {
		f.broadcaster.Detach(id)
	}
}

func (f *fixture) join(id, roomID, name string) {
	f.dispatch(id, RoomConnect{DisplayName: name, RoomID: roomID})
}

func (f *fixture) resetSinks() {
	for _, s := range f.sinks {
		s.reset()
	}
}

func (f *fixture) roster(t *testing.T, id string) []user.User {
	t.Helper()
	var users []user.User
	f.sinks[id].last(t, EventUsers, &users)
	return users
}

func (f *fixture) seats(t *testing.T, id string) map[int]string {
	t.Helper()
	seats := map[int]string{}
	f.sinks[id].last(t, EventSeats, &seats)
	return seats
}

func seatNo(n int) *int {
	return &n
}

// panickingSink accepts frames until armed, then fails the handler that delivers to it.
type panickingSink struct {
	armed atomic.Bool
}

func (s *panickingSink) Deliver([]byte) bool {
	if s.armed.Load() {
		panic("sink failure")
	}
	return true
}

func (s *panickingSink) Close() {}

func rosterIDs(users []user.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}
