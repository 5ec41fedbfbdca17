package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/timzifer/microdash/config"
	"github.com/timzifer/microdash/render"
	"github.com/timzifer/microdash/runtime/sessions"
	"github.com/timzifer/microdash/runtime/widgets"
)

type submission struct {
	session int
	widget  widgets.ID
	payload json.RawMessage
}

type fakeCore struct {
	transports chan sessions.Transport
	submits    chan submission
	malformed  chan error
	leaves     chan int
}

func newFakeCore() *fakeCore {
	return &fakeCore{
		transports: make(chan sessions.Transport, 4),
		submits:    make(chan submission, 16),
		malformed:  make(chan error, 16),
		leaves:     make(chan int, 4),
	}
}

func (f *fakeCore) Connect(t sessions.Transport) (int, error) {
	f.transports <- t
	return 1, nil
}

func (f *fakeCore) Disconnect(id int) { f.leaves <- id }

func (f *fakeCore) Submit(session int, widget widgets.ID, payload json.RawMessage) {
	f.submits <- submission{session: session, widget: widget, payload: payload}
}

func (f *fakeCore) MalformedFrame(_ int, err error) { f.malformed <- err }

func newTestServer(t *testing.T) (*fakeCore, *httptest.Server) {
	t.Helper()
	core := newFakeCore()
	s := NewServer(core, config.ServerConfig{}, "Boiler", zerolog.Nop())
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return core, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func awaitTransport(t *testing.T, core *fakeCore) sessions.Transport {
	t.Helper()
	select {
	case tr := <-core.transports:
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("no transport registered")
		return nil
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestPageServesShell(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "Boiler")
	require.Contains(t, string(body), "/ws")
}

func TestUnknownPathIs404(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBootstrapAndPatchFramesReachClient(t *testing.T) {
	core, srv := newTestServer(t)
	conn := dial(t, srv)
	tr := awaitTransport(t, core)

	require.NoError(t, tr.SendBootstrap("<h3>Boiler</h3>"))
	require.NoError(t, tr.SendPatch(render.Patch{Widget: 2, Fragment: `<text id="w2-text">5</text>`}))

	boot := readFrame(t, conn)
	require.Equal(t, FrameBootstrap, boot.Type)
	require.Nil(t, boot.Widget)
	require.Equal(t, "<h3>Boiler</h3>", boot.Markup)

	patch := readFrame(t, conn)
	require.Equal(t, FramePatch, patch.Type)
	require.NotNil(t, patch.Widget)
	require.Equal(t, 2, *patch.Widget)
	require.Contains(t, patch.Markup, `id="w2-text"`)
}

func TestCommandFrameReachesCore(t *testing.T) {
	core, srv := newTestServer(t)
	conn := dial(t, srv)
	awaitTransport(t, core)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"widget":1,"value":55}`)))

	select {
	case got := <-core.submits:
		require.Equal(t, 1, got.session)
		require.Equal(t, widgets.ID(1), got.widget)
		require.JSONEq(t, `55`, string(got.payload))
	case <-time.After(2 * time.Second):
		t.Fatal("command never reached the core")
	}
}

func TestMalformedFrameIsDroppedConnectionSurvives(t *testing.T) {
	core, srv := newTestServer(t)
	conn := dial(t, srv)
	awaitTransport(t, core)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"value":5}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"widget":0,"value":true}`)))

	for i := 0; i < 2; i++ {
		select {
		case <-core.malformed:
		case <-time.After(2 * time.Second):
			t.Fatal("malformed frame not reported")
		}
	}

	select {
	case got := <-core.submits:
		require.Equal(t, widgets.ID(0), got.widget)
	case <-time.After(2 * time.Second):
		t.Fatal("valid frame after malformed ones never arrived")
	}
}

func TestDisconnectReportedWhenClientLeaves(t *testing.T) {
	core, srv := newTestServer(t)
	conn := dial(t, srv)
	tr := awaitTransport(t, core)

	conn.Close()
	select {
	case id := <-core.leaves:
		require.Equal(t, 1, id)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect never reported")
	}
	require.NoError(t, tr.Close())
}
