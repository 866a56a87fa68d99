package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// fakeServer runs an engine.io v3 endpoint that hands every received
// text frame to the test through frames.
func fakeServer(t *testing.T, pingIntervalMS int, frames chan<- string, send <-chan string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		handshake, _ := json.Marshal(map[string]interface{}{
			"sid":          "test",
			"pingInterval": pingIntervalMS,
			"pingTimeout":  5000,
		})
		conn.WriteMessage(websocket.TextMessage, append([]byte{'0'}, handshake...))
		conn.WriteMessage(websocket.TextMessage, []byte("40"))

		go func() {
			for frame := range send {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
					return
				}
			}
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frame := string(data)
			if frame == "2" {
				conn.WriteMessage(websocket.TextMessage, []byte("3"))
			}
			select {
			case frames <- frame:
			default:
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func recvFrame(t *testing.T, frames <-chan string) string {
	t.Helper()
	select {
	case f := <-frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return ""
	}
}

func TestSocketIOConnectAndEmit(t *testing.T) {
	frames := make(chan string, 16)
	send := make(chan string)
	srv := fakeServer(t, 60000, frames, send)
	defer srv.Close()
	defer close(send)

	tr := NewSocketIO(wsURL(srv))
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Close(context.Background())

	if err := tr.Emit(context.Background(), 10, map[string]string{"message": "hi"}); err != nil {
		t.Fatal(err)
	}

	frame := recvFrame(t, frames)
	if !strings.HasPrefix(frame, "42[10,") {
		t.Fatalf("frame = %q, want 42[10,... prefix", frame)
	}
	opcode, ok := ParseFrameOpcode(frame)
	if !ok || opcode != 10 {
		t.Fatalf("ParseFrameOpcode = %d, %v", opcode, ok)
	}
}

func TestSocketIOInbound(t *testing.T) {
	frames := make(chan string, 16)
	send := make(chan string, 4)
	srv := fakeServer(t, 60000, frames, send)
	defer srv.Close()
	defer close(send)

	tr := NewSocketIO(wsURL(srv))
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Close(context.Background())

	send <- `42[20,"a1b2c3d4e5000000","hello"]`

	select {
	case msg := <-tr.Messages():
		if msg.Opcode != 20 {
			t.Fatalf("Opcode = %d, want 20", msg.Opcode)
		}
		if len(msg.Args) != 2 {
			t.Fatalf("Args = %d, want 2", len(msg.Args))
		}
		var text string
		if err := json.Unmarshal(msg.Args[1], &text); err != nil || text != "hello" {
			t.Fatalf("arg decode = %q, %v", text, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestSocketIOPing(t *testing.T) {
	frames := make(chan string, 16)
	send := make(chan string)
	srv := fakeServer(t, 100, frames, send)
	defer srv.Close()
	defer close(send)

	tr := NewSocketIO(wsURL(srv))
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Close(context.Background())

	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-frames:
			if f == "2" {
				return
			}
		case <-deadline:
			t.Fatal("no engine.io ping within deadline")
		}
	}
}

func TestSocketIOCloseEndsStream(t *testing.T) {
	frames := make(chan string, 16)
	send := make(chan string)
	srv := fakeServer(t, 60000, frames, send)
	defer srv.Close()
	defer close(send)

	tr := NewSocketIO(wsURL(srv))
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	tr.Close(context.Background())

	select {
	case _, open := <-tr.Messages():
		if open {
			t.Fatal("expected closed message stream")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message stream did not close")
	}

	if err := tr.Emit(context.Background(), 10, "late"); err == nil {
		t.Fatal("Emit after close should fail")
	}
}

func TestParseFrameOpcode(t *testing.T) {
	t.Parallel()

	if _, ok := ParseFrameOpcode("3"); ok {
		t.Error("pong frame parsed as event")
	}
	if op, ok := ParseFrameOpcode(`42[16,"rate_limit_pong"]`); !ok || op != 16 {
		t.Errorf("opcode = %d, %v", op, ok)
	}
	if _, ok := ParseFrameOpcode(`42["not-a-number"]`); ok {
		t.Error("string opcode parsed")
	}
}
