package gateway

import (
	"context"
	"encoding/json"
	"errors"
	log "log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const busName = "calbot"

type BusMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
	Audio   []byte `json:"audio,omitempty"`
}

// Bus is a websocket hub client. Every inbound frame is one message.
type Bus struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func DialBus(ctx context.Context, wsURL string) (*Bus, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}

	log.Info("Connected to bus", "url", wsURL)
	return &Bus{conn: conn}, nil
}

func (b *Bus) Read() (*BusMessage, error) {
	_, raw, err := b.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var m BusMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (b *Bus) Write(m *BusMessage) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	b.wmu.Lock()
	defer b.wmu.Unlock()
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

func (b *Bus) Close() error {
	return b.conn.Close()
}

// Run feeds bus messages to g until ctx is done or the connection drops.
// Cancelling ctx only stops reading: messages already dispatched still get
// their reply before Run returns, and closing the connection is left to the
// caller.
func (b *Bus) Run(ctx context.Context, g *Gateway) error {
	stop := context.AfterFunc(ctx, func() {
		_ = b.conn.SetReadDeadline(time.Now())
	})
	defer stop()
	defer g.Wait()

	for {
		m, err := b.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var syntax *json.SyntaxError
			if errors.As(err, &syntax) {
				log.Warn("Dropping malformed bus frame", "err", err)
				continue
			}
			return err
		}

		to := m.From
		g.Dispatch(ctx, busInbound(m), func(_ context.Context, text string) error {
			return b.Write(&BusMessage{From: busName, To: to, Kind: "reply", Content: text})
		})
	}
}

func busInbound(m *BusMessage) InboundMessage {
	if len(m.Audio) > 0 || m.Kind == string(KindVoice) {
		return InboundMessage{SenderID: m.From, Kind: KindVoice, Audio: Bytes(m.Audio)}
	}
	return InboundMessage{SenderID: m.From, Kind: KindText, Text: m.Content}
}
