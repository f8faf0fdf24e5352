package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"hzspace/internal/app/space"
	"hzspace/internal/configs"
	"hzspace/internal/pkg/auth/media"
	"hzspace/internal/pkg/errs"
	"hzspace/internal/pkg/metrics"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, environment string) (*httptest.Server, *AppDeps) {
	t.Helper()

	cfg := &configs.AppConfig{
		Environment:        environment,
		AllowedOrigins:     []string{"https://space.example.com"},
		DefaultDisplayLink: "https://example.com/video",
		SendQueueSize:      64,
		MediaAppID:         "app-1",
		MediaCertificate:   "cert",
		MediaTokenTTL:      time.Hour,
	}

	rec := metrics.New()
	deps := &AppDeps{
		Hub:     space.NewHub(cfg.DefaultDisplayLink, rec),
		Config:  cfg,
		Media:   media.NewIssuer(cfg.MediaAppID, cfg.MediaCertificate, cfg.MediaTokenTTL),
		Metrics: rec,
	}

	h, stop := Router(deps)
	srv := httptest.NewServer(h)

	t.Cleanup(func() {
		srv.Close()
		deps.Hub.Shutdown()
		stop()
	})
	return srv, deps
}

func decodeEnvelope(t *testing.T, res *http.Response) envelope {
	t.Helper()
	defer res.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	return env
}

func TestHealth(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t, "development")

	res, err := http.Get(srv.URL + "/health")
	req.NoError(err)
	req.Equal(http.StatusOK, res.StatusCode)

	env := decodeEnvelope(t, res)
	req.Zero(env.Code)
	req.JSONEq(`{"status":"ok","service":"HZ Space Server"}`, string(env.Data))
}

func TestIssueMediaToken(t *testing.T) {
	req := require.New(t)
	srv, deps := newTestServer(t, "development")

	body := `{"channelName":"ALPHA","uid":"s1"}`
	res, err := http.Post(srv.URL+"/api/media/token", "application/json", strings.NewReader(body))
	req.NoError(err)
	req.Equal(http.StatusOK, res.StatusCode)

	var out MediaTokenOutput
	req.NoError(json.Unmarshal(decodeEnvelope(t, res).Data, &out))
	req.Equal("app-1", out.AppID)
	req.Equal("ALPHA", out.ChannelName)
	req.Equal("s1", out.UID)
	req.InDelta(time.Now().Add(time.Hour).Unix(), out.ExpiresAt, 5)

	claims, err := deps.Media.Parse(out.Token)
	req.NoError(err)
	req.Equal("ALPHA", claims.Channel)
	req.Equal("s1", claims.Subject)
}

func TestIssueMediaToken_Rejections(t *testing.T) {
	srv, _ := newTestServer(t, "development")

	cases := map[string]struct {
		contentType string
		body        string
		status      int
		code        int
	}{
		"missing uid":      {"application/json", `{"channelName":"ALPHA"}`, http.StatusBadRequest, errs.ErrInvalidParams},
		"blank channel":    {"application/json", `{"channelName":"  ","uid":"s1"}`, http.StatusBadRequest, errs.ErrInvalidParams},
		"unknown field":    {"application/json", `{"channelName":"A","uid":"s1","role":"host"}`, http.StatusBadRequest, errs.ErrInvalidJSONFormat},
		"wrong media type": {"text/plain", `{"channelName":"A","uid":"s1"}`, http.StatusUnsupportedMediaType, errs.ErrUnsupportedMediaType},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := http.Post(srv.URL+"/api/media/token", tc.contentType, bytes.NewBufferString(tc.body))
			require.NoError(t, err)
			require.Equal(t, tc.status, res.StatusCode)
			require.Equal(t, tc.code, decodeEnvelope(t, res).Code)
		})
	}
}

func TestIssueMediaToken_RateLimited(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t, "development")

	var last *http.Response
	for i := 0; i <= TokenBurst; i++ {
		res, err := http.Post(srv.URL+"/api/media/token", "application/json", strings.NewReader(`{"channelName":"A","uid":"u"}`))
		req.NoError(err)
		if i < TokenBurst {
			req.Equal(http.StatusOK, res.StatusCode)
			res.Body.Close()
		}
		last = res
	}

	req.Equal(http.StatusTooManyRequests, last.StatusCode)
	req.Equal(errs.ErrRateLimitExceeded, decodeEnvelope(t, last).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t, "development")

	res, err := http.Get(srv.URL + "/metrics")
	req.NoError(err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	req.NoError(err)
	req.Contains(string(body), "hzspace_rooms_active")
	req.Contains(string(body), "go_goroutines")
}

// wsClient is a test browser talking the space protocol.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *wsClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(event string, data any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

// expect reads frames until one named event arrives and decodes its data into dst.
func (c *wsClient) expect(event string, dst any) {
	c.t.Helper()
	c.expectMatching(event, dst, func() bool { return true })
}

// expectMatching reads frames named event into dst until done reports true.
func (c *wsClient) expectMatching(event string, dst any, done func() bool) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	for {
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(c.t, c.conn.ReadJSON(&frame))
		if frame.Event != event {
			continue
		}
		if dst != nil {
			require.NoError(c.t, json.Unmarshal(frame.Data, dst))
		}
		if done() {
			return
		}
	}
}

func (c *wsClient) sessionID() string {
	var welcome struct {
		ID string `json:"id"`
	}
	c.expect("session", &welcome)
	require.Len(c.t, welcome.ID, 32)
	return welcome.ID
}

type rosterEntry struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Visible bool      `json:"visible"`
	RoomID  string    `json:"roomId"`
	Pos     []float64 `json:"position"`
}

func rooms(t *testing.T, srv *httptest.Server) []space.RoomSummary {
	t.Helper()
	res, err := http.Get(srv.URL + "/api/rooms")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	env := decodeEnvelope(t, res)
	if len(env.Data) == 0 {
		return nil
	}

	var summaries []space.RoomSummary
	require.NoError(t, json.Unmarshal(env.Data, &summaries))
	return summaries
}

func TestWebSocket_TwoSessionScenario(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t, "development")

	a := dial(t, srv, nil)
	b := dial(t, srv, nil)
	aID := a.sessionID()
	bID := b.sessionID()

	// A creates the room
	a.send("roomConnect", map[string]any{"name": "Amy", "roomId": "alpha"})
	var roster []rosterEntry
	a.expect("users", &roster)
	req.Len(roster, 1)
	req.Equal("ALPHA", roster[0].RoomID)
	req.Equal([]float64{0, 1, 0}, roster[0].Pos)

	var link struct {
		Value string `json:"value"`
	}
	a.expect("displayLink", &link)
	req.Equal("https://example.com/video", link.Value)

	// B joins through another casing
	b.send("roomConnect", map[string]any{"roomId": "Alpha"})
	a.expect("users", &roster)
	req.Equal([]string{aID, bID}, []string{roster[0].ID, roster[1].ID})
	req.Equal("Anonymous", roster[1].Name)
	a.expect("seats", nil)

	// B sits down
	b.send("occupySeat", map[string]any{"userId": bID, "seatNumber": 1})
	seats := map[string]string{}
	a.expect("seats", &seats)
	req.Equal(map[string]string{"1": bID}, seats)
	a.expect("users", &roster)
	req.False(roster[1].Visible)

	// A is refused the same seat
	a.send("occupySeat", map[string]any{"userId": aID, "seatNumber": 1})
	a.expect("seats", &seats)
	req.Equal(map[string]string{"1": bID}, seats)

	req.Equal([]space.RoomSummary{{ID: "ALPHA", Members: 2, SeatsTaken: 1, DisplayVisible: true}}, rooms(t, srv))

	// A leaves by closing the socket
	req.NoError(a.conn.Close())
	b.expectMatching("users", &roster, func() bool { return len(roster) == 1 })
	req.Equal(bID, roster[0].ID)

	// B leaves and the room disappears
	req.NoError(b.conn.Close())
	req.Eventually(func() bool { return len(rooms(t, srv)) == 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestWebSocket_AudioRelay(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t, "development")

	a := dial(t, srv, nil)
	b := dial(t, srv, nil)
	aID := a.sessionID()
	b.sessionID()

	a.send("roomConnect", map[string]any{"roomId": "beta"})
	a.expect("seats", nil)
	b.send("roomConnect", map[string]any{"roomId": "beta"})
	b.expect("seats", nil)

	a.send("audioStream", map[string]any{"chunk": "AAEC"})

	var relayed struct {
		From    string          `json:"from"`
		Payload json.RawMessage `json:"payload"`
	}
	b.expect("audioStream", &relayed)
	req.Equal(aID, relayed.From)
	req.JSONEq(`{"chunk":"AAEC"}`, string(relayed.Payload))
}

func TestWebSocket_OriginCheckInProduction(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t, "production")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, res, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	req.Error(err)
	req.NotNil(res)
	req.Equal(http.StatusForbidden, res.StatusCode)

	allowed := dial(t, srv, http.Header{"Origin": {"https://space.example.com"}})
	allowed.sessionID()
}

func TestListRooms_HubStopped(t *testing.T) {
	req := require.New(t)
	srv, deps := newTestServer(t, "development")

	deps.Hub.Shutdown()

	res, err := http.Get(srv.URL + "/api/rooms")
	req.NoError(err)
	req.Equal(http.StatusServiceUnavailable, res.StatusCode)
	req.Equal(errs.ErrSpaceUnavailable, decodeEnvelope(t, res).Code)
}
