package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/Cheese-BlindChess-bot/internal/reconcile"
	"github.com/park285/Cheese-BlindChess-bot/internal/render"
	"github.com/park285/Cheese-BlindChess-bot/internal/session"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv := httptest.NewServer(New(session.NewStore(rdb), WithRenderer(render.New(160))).Router())
	t.Cleanup(srv.Close)
	return srv
}

// call performs a JSON request and decodes the envelope body into out.
func call(t *testing.T, method, url string, in, out any) int {
	t.Helper()
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		env := Envelope{Body: out}
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
		if env.Status != resp.StatusCode {
			t.Fatalf("envelope status %d != %d", env.Status, resp.StatusCode)
		}
	}
	return resp.StatusCode
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/v1/sessions"

	var started sessionView
	if code := call(t, http.MethodPost, base, startRequest{Owner: "u1", Color: "white"}, &started); code != http.StatusCreated {
		t.Fatalf("start status %d", code)
	}
	id := started.Session.ID
	if id == "" || !strings.HasPrefix(started.FEN, "7k/8/8/8/8/8/PPPPPPPP/RNBQKBNR") {
		t.Fatalf("unexpected start view: %+v", started)
	}

	var again sessionView
	if code := call(t, http.MethodPost, base, startRequest{Owner: "u1", Color: "백"}, &again); code != http.StatusOK || !again.Resumed || again.Session.ID != id {
		t.Fatalf("resume: %d %+v", code, again)
	}

	var tv targetsView
	if code := call(t, http.MethodGet, base+"/"+id+"/targets?square=e2", nil, &tv); code != http.StatusOK {
		t.Fatalf("targets status %d", code)
	}
	if !contains(tv.Targets, "e4") || !contains(tv.Targets, "d3") {
		t.Fatalf("e2 should reach e4 and the empty diagonal d3: %v", tv.Targets)
	}

	var moved sessionView
	if code := call(t, http.MethodPost, base+"/"+id+"/moves", moveRequest{Move: "e2e4"}, &moved); code != http.StatusOK || moved.SAN != "e4" {
		t.Fatalf("commit: %d %+v", code, moved)
	}
	var errBody ErrorBody
	if code := call(t, http.MethodPost, base+"/"+id+"/moves", moveRequest{From: "e2", To: "e4"}, &errBody); code != http.StatusUnprocessableEntity {
		t.Fatalf("illegal move status %d", code)
	}
	if code := call(t, http.MethodPost, base+"/"+id+"/moves", moveRequest{From: "g1", To: "f3"}, &moved); code != http.StatusOK || moved.SAN != "Nf3" {
		t.Fatalf("knight: %d %+v", code, moved)
	}

	resp, err := http.Get(base + "/" + id + "/export")
	if err != nil {
		t.Fatal(err)
	}
	text, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(text) != "e4\nNf3\n" || !strings.Contains(resp.Header.Get("Content-Disposition"), "blind-white-moves.txt") {
		t.Fatalf("export: %q %q", text, resp.Header.Get("Content-Disposition"))
	}

	resp, err = http.Get(base + "/" + id + "/board.png?square=d2")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("board content type %q", resp.Header.Get("Content-Type"))
	}
	if _, err := png.Decode(resp.Body); err != nil {
		t.Fatalf("board png: %v", err)
	}
	resp.Body.Close()

	var undone sessionView
	if code := call(t, http.MethodPost, base+"/"+id+"/undo", nil, &undone); code != http.StatusOK || len(undone.Session.Moves) != 1 {
		t.Fatalf("undo: %d %+v", code, undone.Session)
	}
	var reset sessionView
	if code := call(t, http.MethodPost, base+"/"+id+"/reset", nil, &reset); code != http.StatusOK || len(reset.Session.Moves) != 0 {
		t.Fatalf("reset: %d", code)
	}
	if code := call(t, http.MethodPost, base+"/"+id+"/undo", nil, &errBody); code != http.StatusConflict {
		t.Fatalf("undo empty status %d", code)
	}
	if code := call(t, http.MethodDelete, base+"/"+id, nil, nil); code != http.StatusNoContent {
		t.Fatalf("close status %d", code)
	}
	if code := call(t, http.MethodGet, base+"/"+id, nil, &errBody); code != http.StatusNotFound {
		t.Fatalf("get after close status %d", code)
	}
}

func TestStartSessionValidation(t *testing.T) {
	srv := newTestServer(t)
	var errBody ErrorBody
	if code := call(t, http.MethodPost, srv.URL+"/api/v1/sessions", startRequest{Owner: "u1", Color: "green"}, &errBody); code != http.StatusBadRequest {
		t.Fatalf("status %d", code)
	}
	if errBody.Error == "" {
		t.Fatal("expected error message")
	}
}

func TestSimulateJSON(t *testing.T) {
	srv := newTestServer(t)
	var out struct {
		Trace   reconcile.Trace   `json:"trace"`
		Summary reconcile.Summary `json:"summary"`
	}
	req := simulateRequest{White: []string{"e4", "Qh5??", "Bc4"}, Black: []string{"e5", "Nc6"}, Policy: "seek"}
	if code := call(t, http.MethodPost, srv.URL+"/api/v1/simulate", req, &out); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if out.Trace.Policy != reconcile.PolicySeekNext || out.Summary.WhiteIllegal != 1 {
		t.Fatalf("unexpected result: %+v", out.Summary)
	}

	var errBody ErrorBody
	req.Policy = "loose"
	if code := call(t, http.MethodPost, srv.URL+"/api/v1/simulate", req, &errBody); code != http.StatusBadRequest {
		t.Fatalf("bad policy status %d", code)
	}
}

func TestSimulateUpload(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, body := range map[string]string{"white": "f3\ng4\n", "black": "\ufeffe5\n\nQh4#\n"} {
		fw, err := mw.CreateFormFile(field, field+".txt")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = io.WriteString(fw, body)
	}
	_ = mw.WriteField("policy", "strict")
	_ = mw.Close()

	resp, err := http.Post(srv.URL+"/api/v1/simulate/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out simulateResponse
	env := Envelope{Body: &out}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || out.Summary.Winner != "black" || out.Summary.BlackScore != 539 {
		t.Fatalf("upload result: %d %+v", resp.StatusCode, out.Summary)
	}
}

func TestSimulateStream(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/simulate/stream"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := wsjson.Write(ctx, conn, simulateRequest{White: []string{"e4", "Nf3"}, Black: []string{"e5"}}); err != nil {
		t.Fatal(err)
	}
	var steps int
	for {
		var frame streamFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read: %v", err)
		}
		if frame.Type == "step" {
			if frame.Step.Index != steps {
				t.Fatalf("step %d arrived as %d", steps, frame.Step.Index)
			}
			steps++
			continue
		}
		if frame.Type != "summary" || frame.Summary == nil {
			t.Fatalf("unexpected frame %+v", frame)
		}
		if frame.Summary.WhiteMoves != 2 || frame.Summary.BlackMoves != 1 {
			t.Fatalf("summary %+v", frame.Summary)
		}
		break
	}
	if steps != 4 {
		t.Fatalf("streamed %d steps, want 4", steps)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	var body map[string]string
	if code := call(t, http.MethodGet, srv.URL+"/healthz", nil, &body); code != http.StatusOK || body["state"] != "ok" {
		t.Fatalf("healthz: %d %v", code, body)
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
