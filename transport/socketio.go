package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Safizapi/bonk-bot/logging"
)

// Engine.io v3 packet type prefixes.
const (
	enginePacketOpen    = '0'
	enginePacketClose   = '1'
	enginePacketPing    = '2'
	enginePacketPong    = '3'
	enginePacketMessage = '4'
)

// Socket.io packet types inside an engine.io message.
const (
	socketPacketConnect    = '0'
	socketPacketDisconnect = '1'
	socketPacketEvent      = '2'
)

const (
	defaultPingInterval = 25 * time.Second
	connectTimeout      = 15 * time.Second
	sendQueueSize       = 256
)

// SocketIO is a websocket transport speaking engine.io v3 framing.
// Outbound frames pass through a rate limiter so a runaway caller cannot
// trip the server's flood protection.
type SocketIO struct {
	id       string
	url      string
	conn     *websocket.Conn
	sendCh   chan []byte
	messages chan Message
	limiter  *rate.Limiter

	mu     sync.Mutex
	closed bool

	ready        chan struct{}
	pingInterval time.Duration
	done         chan struct{}
}

// ServerURL builds the websocket endpoint for a server's hostname label.
func ServerURL(apiName string) string {
	return fmt.Sprintf("wss://%s.bonk.io/socket.io/?EIO=3&transport=websocket", apiName)
}

// NewSocketIO returns an unconnected transport for the given endpoint.
func NewSocketIO(url string) *SocketIO {
	return &SocketIO{
		id:           uuid.New().String(),
		url:          url,
		sendCh:       make(chan []byte, sendQueueSize),
		messages:     make(chan Message, sendQueueSize),
		limiter:      rate.NewLimiter(rate.Limit(30), 60),
		ready:        make(chan struct{}),
		pingInterval: defaultPingInterval,
		done:         make(chan struct{}),
	}
}

// ID returns a unique identifier for this connection.
func (t *SocketIO) ID() string { return t.id }

// Connect dials the endpoint, reads the engine.io handshake and waits
// for the namespace to open.
func (t *SocketIO) Connect(ctx context.Context) error {
	log := logging.Component("transport")

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, t.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.url, err)
	}
	t.conn = conn

	go t.readPump()
	go t.writePump()

	select {
	case <-t.ready:
	case <-t.done:
		return fmt.Errorf("connection closed during handshake")
	case <-ctx.Done():
		t.Close(context.Background())
		return ctx.Err()
	case <-time.After(connectTimeout):
		t.Close(context.Background())
		return fmt.Errorf("handshake timed out")
	}

	go t.pingLoop()

	log.Info().Str("conn_id", t.id).Str("url", t.url).Msg("connected")
	return nil
}

// Emit frames one event and queues it for sending.
func (t *SocketIO) Emit(ctx context.Context, opcode int, args ...interface{}) error {
	payload := make([]interface{}, 0, len(args)+1)
	payload = append(payload, opcode)
	payload = append(payload, args...)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event %d: %w", opcode, err)
	}
	frame := append([]byte{enginePacketMessage, socketPacketEvent}, body...)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("connection closed")
	}
	t.mu.Unlock()

	select {
	case t.sendCh <- frame:
		return nil
	case <-t.done:
		return fmt.Errorf("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages streams inbound event frames.
func (t *SocketIO) Messages() <-chan Message { return t.messages }

// Done returns a channel closed when the connection ends.
func (t *SocketIO) Done() <-chan struct{} { return t.done }

// Close tears the connection down and closes the message stream.
func (t *SocketIO) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.done)
	if t.conn != nil {
		deadline := time.Now().Add(time.Second)
		t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		t.conn.Close()
	}
	return nil
}

func (t *SocketIO) readPump() {
	log := logging.Component("transport")
	defer func() {
		t.Close(context.Background())
		close(t.messages)
	}()

	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed {
				log.Warn().Err(err).Str("conn_id", t.id).Msg("read failed")
			}
			return
		}
		if msgType != websocket.TextMessage || len(data) == 0 {
			continue
		}

		switch data[0] {
		case enginePacketOpen:
			t.handleHandshake(data[1:])
		case enginePacketClose:
			return
		case enginePacketPong:
			// server acknowledged our engine.io ping
		case enginePacketMessage:
			t.handleSocketPacket(data[1:])
		}
	}
}

func (t *SocketIO) handleHandshake(body []byte) {
	var handshake struct {
		SID          string `json:"sid"`
		PingInterval int    `json:"pingInterval"`
	}
	if err := json.Unmarshal(body, &handshake); err == nil && handshake.PingInterval > 0 {
		t.pingInterval = time.Duration(handshake.PingInterval) * time.Millisecond
	}
}

func (t *SocketIO) handleSocketPacket(body []byte) {
	log := logging.Component("transport")
	if len(body) == 0 {
		return
	}
	switch body[0] {
	case socketPacketConnect:
		select {
		case <-t.ready:
		default:
			close(t.ready)
		}
	case socketPacketDisconnect:
		t.Close(context.Background())
	case socketPacketEvent:
		var raw []json.RawMessage
		if err := json.Unmarshal(body[1:], &raw); err != nil || len(raw) == 0 {
			log.Debug().Str("frame", truncate(string(body), 120)).Msg("unparseable event frame")
			return
		}
		var opcode int
		if err := json.Unmarshal(raw[0], &opcode); err != nil {
			log.Debug().Str("frame", truncate(string(body), 120)).Msg("non-numeric event opcode")
			return
		}
		select {
		case t.messages <- Message{Opcode: opcode, Args: raw[1:]}:
		case <-t.done:
		}
	}
}

func (t *SocketIO) writePump() {
	for {
		select {
		case frame := <-t.sendCh:
			if err := t.limiter.Wait(context.Background()); err != nil {
				return
			}
			if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				t.Close(context.Background())
				return
			}
		case <-t.done:
			return
		}
	}
}

// pingLoop sends engine.io pings at the interval the handshake announced.
func (t *SocketIO) pingLoop() {
	ticker := time.NewTicker(t.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case t.sendCh <- []byte{enginePacketPing}:
			case <-t.done:
				return
			}
		case <-t.done:
			return
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Transport = (*SocketIO)(nil)

// ParseFrameOpcode extracts the opcode of a raw socket.io event body.
// Exposed for diagnostics and tests.
func ParseFrameOpcode(frame string) (int, bool) {
	if !strings.HasPrefix(frame, "42") {
		return 0, false
	}
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(frame[2:]), &raw); err != nil || len(raw) == 0 {
		return 0, false
	}
	var opcode int
	if err := json.Unmarshal(raw[0], &opcode); err != nil {
		return 0, false
	}
	return opcode, true
}
