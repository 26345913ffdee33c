package irisfast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestWebSocketRoundTrip(t *testing.T) {
	replies := make(chan ReplyRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Session-Id") != "s1" {
			http.Error(w, "missing header", http.StatusUnauthorized)
			return
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		sender := "bob"
		_ = wsjson.Write(r.Context(), c, Message{Msg: "!도움", Room: "room", Sender: &sender})
		var rep ReplyRequest
		if err := wsjson.Read(r.Context(), c, &rep); err == nil {
			replies <- rep
		}
	}))
	defer srv.Close()

	ws := NewWebSocket("ws"+strings.TrimPrefix(srv.URL, "http"), 0, time.Millisecond)
	ws.SetHeaderProvider(func() map[string]string { return map[string]string{"X-Session-Id": "s1"} })

	inbound := make(chan *Message, 1)
	ws.OnMessage(func(m *Message) { inbound <- m })
	var states []WebSocketState
	id := ws.OnStateChange(func(s WebSocketState) { states = append(states, s) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	ws.RemoveStateCallback(id)
	if ws.State() != WSStateConnected {
		t.Fatalf("state = %s", ws.State())
	}
	if len(states) != 2 || states[0] != WSStateConnecting || states[1] != WSStateConnected {
		t.Fatalf("state transitions: %v", states)
	}

	select {
	case m := <-inbound:
		if m.Msg != "!도움" || m.SenderName("") != "bob" {
			t.Fatalf("unexpected message %+v", m)
		}
	case <-ctx.Done():
		t.Fatal("no inbound message")
	}

	eg := NewEgress(EgressWS, false, nil, ws, nil)
	if err := eg.SendText(ctx, "room", "pong"); err != nil {
		t.Fatalf("ws send: %v", err)
	}
	select {
	case rep := <-replies:
		if rep.Type != "text" || rep.Data != "pong" {
			t.Fatalf("unexpected reply %+v", rep)
		}
	case <-ctx.Done():
		t.Fatal("server did not receive reply")
	}

	if err := ws.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}
