package space

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hzspace/internal/pkg/metrics"
)

func snapshot(t *testing.T, h *Hub) []RoomSummary {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	summaries, err := h.Snapshot(ctx)
	require.NoError(t, err)
	return summaries
}

func TestHub_AttachSendsSessionID(t *testing.T) {
	req := require.New(t)
	h := NewHub(testDisplayLink, nil)
	defer h.Shutdown()

	sink := &recordingSink{}
	req.NoError(h.Attach("s1", sink))

	var welcome sessionPayload
	sink.last(t, EventSession, &welcome)
	req.Equal("s1", welcome.ID)
	req.Equal([]EventName{EventSession}, sink.events())
}

func TestHub_AttachRejectsDuplicateSession(t *testing.T) {
	req := require.New(t)
	h := NewHub(testDisplayLink, nil)
	defer h.Shutdown()

	req.NoError(h.Attach("s1", &recordingSink{}))
	req.ErrorIs(h.Attach("s1", &recordingSink{}), ErrDuplicateSession)
}

func TestHub_ProcessesEventsInOrder(t *testing.T) {
	req := require.New(t)
	h := NewHub(testDisplayLink, nil)
	defer h.Shutdown()

	a, b := &recordingSink{}, &recordingSink{}
	req.NoError(h.Attach("A", a))
	req.NoError(h.Attach("B", b))

	// When
	req.NoError(h.Submit("A", RoomConnect{DisplayName: "Amy", RoomID: "alpha"}))
	req.NoError(h.Submit("B", RoomConnect{DisplayName: "Bob", RoomID: "ALPHA"}))
	req.NoError(h.Submit("B", OccupySeat{UserID: "B", SeatNumber: seatNo(1)}))
	req.NoError(h.Submit("A", OccupySeat{UserID: "A", SeatNumber: seatNo(1)}))

	// Then
	req.Equal([]RoomSummary{{ID: "ALPHA", Members: 2, SeatsTaken: 1, DisplayVisible: true}}, snapshot(t, h))

	seats := map[int]string{}
	a.last(t, EventSeats, &seats)
	req.Equal(map[int]string{1: "B"}, seats)
}

func TestHub_DisconnectRemovesSessionAndClosesSink(t *testing.T) {
	req := require.New(t)
	h := NewHub(testDisplayLink, nil)
	defer h.Shutdown()

	sink := &recordingSink{}
	req.NoError(h.Attach("A", sink))
	req.NoError(h.Submit("A", RoomConnect{RoomID: "alpha"}))
	req.NoError(h.Submit("A", Disconnect{}))

	req.Empty(snapshot(t, h))
	req.True(sink.isClosed())

	// The id is free again.
	req.NoError(h.Attach("A", &recordingSink{}))
}

func TestHub_EvictsSlowSession(t *testing.T) {
	req := require.New(t)
	rec := metrics.New()
	h := NewHub(testDisplayLink, rec)
	defer h.Shutdown()

	// Given a session whose queue holds only the welcome frame
	slow := &recordingSink{capacity: 1}
	fast := &recordingSink{}
	req.NoError(h.Attach("slow", slow))
	req.NoError(h.Attach("fast", fast))
	req.NoError(h.Submit("fast", RoomConnect{DisplayName: "Fay", RoomID: "alpha"}))

	// When it joins and the roster cannot be queued
	req.NoError(h.Submit("slow", RoomConnect{DisplayName: "Sam", RoomID: "alpha"}))

	// Then it is evicted like a lost transport
	req.Equal([]RoomSummary{{ID: "ALPHA", Members: 1, DisplayVisible: true}}, snapshot(t, h))
	req.True(slow.isClosed())
	req.False(fast.isClosed())

	var roster []struct {
		ID string `json:"id"`
	}
	fast.last(t, EventUsers, &roster)
	req.Len(roster, 1)
	req.Equal("fast", roster[0].ID)

	// The gateway's own disconnect for the evicted session is harmless.
	req.NoError(h.Submit("slow", Disconnect{}))
	req.Len(snapshot(t, h), 1)

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()
	res, err := srv.Client().Get(srv.URL)
	req.NoError(err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	req.NoError(err)
	req.Contains(string(body), "hzspace_sessions_evicted_total 1")
	req.Contains(string(body), "hzspace_sessions_active 1")
	req.Contains(string(body), "hzspace_rooms_active 1")
}

func TestHub_Shutdown(t *testing.T) {
	req := require.New(t)
	h := NewHub(testDisplayLink, nil)

	sink := &recordingSink{}
	req.NoError(h.Attach("s1", sink))
	req.NoError(h.Submit("s1", RoomConnect{RoomID: "alpha"}))
	_ = snapshot(t, h)

	h.Shutdown()
	h.Shutdown()

	req.True(sink.isClosed())
	req.ErrorIs(h.Submit("s1", Move{}), ErrHubStopped)
	req.ErrorIs(h.Attach("s2", &recordingSink{}), ErrHubStopped)

	_, err := h.Snapshot(context.Background())
	req.ErrorIs(err, ErrHubStopped)
}

func TestHub_SnapshotFollowsQueuedEvents(t *testing.T) {
	req := require.New(t)
	h := NewHub(testDisplayLink, nil)
	defer h.Shutdown()

	ids := []string{"A", "B", "C", "D"}
	for _, id := range ids {
		req.NoError(h.Attach(id, &recordingSink{}))
	}

	for round := 0; round < 50; round++ {
		// When every session joins and then leaves
		for _, id := range ids {
			req.NoError(h.Submit(id, RoomConnect{RoomID: "alpha"}))
		}
		req.Equal([]RoomSummary{{ID: "ALPHA", Members: len(ids), DisplayVisible: true}}, snapshot(t, h))

		for _, id := range ids {
			req.NoError(h.Submit(id, LeaveRoom{}))
		}

		// Then the snapshot never runs ahead of them
		req.Empty(snapshot(t, h), "round %d", round)
	}
}

func TestHub_DisconnectClosesSinkWhenHandlerPanics(t *testing.T) {
	req := require.New(t)
	h := NewHub(testDisplayLink, nil)
	defer h.Shutdown()

	// Given a peer whose sink fails on every frame
	sink, peer := &recordingSink{}, &panickingSink{}
	req.NoError(h.Attach("A", sink))
	req.NoError(h.Attach("B", peer))
	req.NoError(h.Submit("A", RoomConnect{RoomID: "alpha"}))
	req.NoError(h.Submit("B", RoomConnect{RoomID: "alpha"}))
	req.Len(snapshot(t, h), 1)
	peer.armed.Store(true)

	// When A disconnects and the roster broadcast to B panics
	req.NoError(h.Submit("A", Disconnect{}))

	// Then A is still released and the loop keeps serving
	req.Equal([]RoomSummary{{ID: "ALPHA", Members: 1, DisplayVisible: true}}, snapshot(t, h))
	req.True(sink.isClosed())
	req.NoError(h.Attach("A", &recordingSink{}))
}
