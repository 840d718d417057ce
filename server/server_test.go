package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PlayDeck/cache"
	"PlayDeck/core/player"
	"PlayDeck/core/track"
	"PlayDeck/core/tracklist"
	"PlayDeck/model"

	"github.com/gorilla/websocket"
)

type fixture struct {
	engine *player.Engine
	hub    *Hub
	remote *RemoteOutput
	server *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := cache.NewMemory(0)
	hub := NewHub()
	remote := NewRemoteOutput(hub)

	opts := player.DefaultOptions()
	opts.SampleInterval = time.Hour
	opts.PersistInterval = 0
	engine := player.New(tracklist.New(store), remote, store, opts)

	f := &fixture{engine: engine, hub: hub, remote: remote}
	f.server = New(engine, hub, remote, track.DataURI{})
	go hub.Run()
	t.Cleanup(func() {
		engine.Close()
		hub.Stop()
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) state(t *testing.T) player.Status {
	t.Helper()
	rec := f.do(t, http.MethodGet, "/api/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/state = %d", rec.Code)
	}
	var st player.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return st
}

const playlistDoc = `{"tracks":[{"locator":"music/a.mp3","title":"A"},{"locator":"music/b.mp3","title":"B"}]}`

func TestTransportRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/playlist", playlistDoc)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"added":2`) {
		t.Fatalf("import = %d %s", rec.Code, rec.Body.String())
	}

	st := f.state(t)
	if st.State != "paused" || len(st.Tracks) != 2 || st.Current != st.Tracks[0].ID {
		t.Fatalf("state after import = %+v", st)
	}

	f.do(t, http.MethodPost, "/api/next", "")
	if st2 := f.state(t); st2.Current != st.Tracks[1].ID {
		t.Errorf("current after next = %q, want %q", st2.Current, st.Tracks[1].ID)
	}

	f.do(t, http.MethodPost, "/api/play", "")
	if got := f.state(t).State; got != "playing" {
		t.Errorf("state after play = %s, want playing", got)
	}

	f.do(t, http.MethodPost, "/api/stop", "")
	st3 := f.state(t)
	if st3.State != "paused" || st3.Current != st.Tracks[0].ID {
		t.Errorf("state after stop = %+v", st3)
	}

	rec = f.do(t, http.MethodPost, "/api/repeat", "")
	if !strings.Contains(rec.Body.String(), `"repeat":true`) {
		t.Errorf("repeat = %s", rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, "/api/shuffle", "")
	if !strings.Contains(rec.Body.String(), `"shuffle":true`) {
		t.Errorf("shuffle = %s", rec.Body.String())
	}
}

func TestVolumeRoute(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		body string
		code int
	}{
		{body: `{"volume":1.5}`, code: http.StatusBadRequest},
		{body: `{"volume":-0.1}`, code: http.StatusBadRequest},
		{body: `{}`, code: http.StatusBadRequest},
		{body: `not json`, code: http.StatusBadRequest},
		{body: `{"volume":0.25}`, code: http.StatusOK},
		{body: `{"volume":0}`, code: http.StatusOK},
	}
	for _, tc := range tests {
		if rec := f.do(t, http.MethodPost, "/api/volume", tc.body); rec.Code != tc.code {
			t.Errorf("POST /api/volume %s = %d, want %d", tc.body, rec.Code, tc.code)
		}
	}
	if v := f.engine.Volume(); v != 0 {
		t.Errorf("volume = %v, want 0", v)
	}
}

func TestSeekRoute(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/playlist", playlistDoc)

	if rec := f.do(t, http.MethodPost, "/api/seek", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("seek without fraction = %d, want 400", rec.Code)
	}

	f.remote.Apply(Report{Event: player.MediaDurationChange, Duration: f64(100)})
	if rec := f.do(t, http.MethodPost, "/api/seek", `{"fraction":0.5}`); rec.Code != http.StatusOK {
		t.Fatalf("seek = %d", rec.Code)
	}
	if cur, _ := f.engine.Times(); cur != 50 {
		t.Errorf("position after seek = %v, want 50", cur)
	}
}

func TestTrackRoutes(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/playlist", playlistDoc)
	st := f.state(t)
	second := st.Tracks[1].ID

	if rec := f.do(t, http.MethodPost, "/api/tracks/nope/play", ""); rec.Code != http.StatusNotFound {
		t.Errorf("play unknown track = %d, want 404", rec.Code)
	}

	f.do(t, http.MethodPost, "/api/tracks/"+second+"/play", "")
	if got := f.state(t); got.State != "playing" || got.Current != second {
		t.Errorf("after play track: %+v", got)
	}

	f.do(t, http.MethodPost, "/api/tracks/"+second+"/move", `{"offset":-1}`)
	if got := f.state(t); got.Tracks[0].ID != second {
		t.Errorf("after move, first track = %s, want %s", got.Tracks[0].ID, second)
	}

	f.do(t, http.MethodDelete, "/api/tracks/"+second, "")
	got := f.state(t)
	if len(got.Tracks) != 1 || got.Current == second {
		t.Errorf("after delete: %+v", got)
	}

	rec := f.do(t, http.MethodGet, "/api/tracks", "")
	var tracks []player.TrackInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &tracks); err != nil || len(tracks) != 1 {
		t.Errorf("GET /api/tracks = %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/playlist", "")
	var pl model.Playlist
	if err := json.Unmarshal(rec.Body.Bytes(), &pl); err != nil || len(pl.Tracks) != 1 || pl.Tracks[0].Title != "A" {
		t.Errorf("GET /api/playlist = %s", rec.Body.String())
	}
}

func mp3Bytes() []byte {
	var buf bytes.Buffer
	buf.WriteString("ID3\x03\x00\x00\x00\x00\x00\x00")
	buf.Write(bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x64}, 256))
	block := make([]byte, 128)
	copy(block, "TAG")
	copy(block[3:], "Uploaded")
	block[127] = 255
	buf.Write(block)
	return buf.Bytes()
}

func TestUploadTracks(t *testing.T) {
	f := newFixture(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("files", "song.mp3")
	part.Write(mp3Bytes())
	part, _ = mw.CreateFormFile("files", "notes.txt")
	part.Write([]byte("plain text, not audio"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/tracks", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("upload = %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"added":1`) || !strings.Contains(rec.Body.String(), `"rejected":1`) {
		t.Errorf("upload response = %s", rec.Body.String())
	}

	st := f.state(t)
	if len(st.Tracks) != 1 || !strings.HasPrefix(st.Tracks[0].Title, "Uploaded") {
		t.Errorf("tracks after upload = %+v", st.Tracks)
	}
	if !strings.HasPrefix(st.Tracks[0].Locator, "data:audio/mpeg;base64,") {
		t.Errorf("locator = %.40s, want a data URI", st.Tracks[0].Locator)
	}

	if rec := f.do(t, http.MethodPost, "/api/tracks", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("upload without form = %d, want 400", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodOptions, "/api/state", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(WSMessage) bool) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		if match(msg) {
			return msg
		}
	}
}

func TestWebSocketFlow(t *testing.T) {
	f := newFixture(t)
	f.engine.ImportPlaylist(strings.NewReader(playlistDoc))

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg := readUntil(t, conn, func(m WSMessage) bool { return m.Type == MsgTypeCommand })
	var cmd Command
	json.Unmarshal(msg.Data, &cmd)
	if cmd.Op != OpSource || cmd.Locator != "music/a.mp3" {
		t.Errorf("first command = %+v, want source music/a.mp3", cmd)
	}

	report, _ := newMessage(MsgTypeReport, Report{Event: player.MediaDurationChange, Locator: "music/a.mp3", Duration: f64(120)})
	if err := conn.WriteMessage(websocket.TextMessage, report); err != nil {
		t.Fatalf("write: %v", err)
	}

	readUntil(t, conn, func(m WSMessage) bool {
		if m.Type != MsgTypeEvent {
			return false
		}
		var ev model.Event
		json.Unmarshal(m.Data, &ev)
		return ev.Type == model.EventTime && ev.Total == 120
	})
	if _, total := f.engine.Times(); total != 120 {
		t.Errorf("engine duration = %v, want 120", total)
	}

	f.engine.Play()
	readUntil(t, conn, func(m WSMessage) bool {
		var c Command
		return m.Type == MsgTypeCommand && json.Unmarshal(m.Data, &c) == nil && c.Op == OpPlay
	})
}

func TestTimeEventBeforeDurationIsKnown(t *testing.T) {
	f := newFixture(t)
	f.engine.ImportPlaylist(strings.NewReader(playlistDoc))

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readUntil(t, conn, func(m WSMessage) bool { return m.Type == MsgTypeCommand })

	f.engine.Seek(10)
	msg := readUntil(t, conn, func(m WSMessage) bool {
		var ev model.Event
		return m.Type == MsgTypeEvent && json.Unmarshal(m.Data, &ev) == nil && ev.Type == model.EventTime
	})

	var ev model.Event
	json.Unmarshal(msg.Data, &ev)
	if ev.Current != 10 || ev.Total != 0 {
		t.Errorf("time event = %+v, want current 10 and no total", ev)
	}
}

func TestUploadOverLimitIsRejected(t *testing.T) {
	limit := maxUploadBytes
	maxUploadBytes = 64
	t.Cleanup(func() { maxUploadBytes = limit })

	f := newFixture(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("files", "big.mp3")
	part.Write(mp3Bytes())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/tracks", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("upload over the limit = %d, want 413", rec.Code)
	}
	if n := len(f.state(t).Tracks); n != 0 {
		t.Errorf("tracks after rejected upload = %d, want 0", n)
	}
}
