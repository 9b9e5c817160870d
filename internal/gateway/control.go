package gateway

import (
	"context"
	"fmt"

	"calbot/internal/ipc"
)

const localSender = "local"

// Control answers calbot-ctl requests. "say" runs the text through Handle and
// hands back the single reply it produced.
func (g *Gateway) Control(ctx context.Context, msg ipc.ControlMessage) ipc.ControlReply {
	switch msg.Cmd {
	case "ping":
		return ipc.ControlReply{Reply: "pong"}
	case "say":
		sender := msg.Sender
		if sender == "" {
			sender = localSender
		}
		var out string
		g.Handle(ctx, InboundMessage{SenderID: sender, Kind: KindText, Text: msg.Text},
			func(_ context.Context, text string) error {
				out = text
				return nil
			})
		return ipc.ControlReply{Reply: out}
	default:
		return ipc.ControlReply{Error: fmt.Sprintf("unknown command %q", msg.Cmd)}
	}
}
