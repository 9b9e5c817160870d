package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	cli "github.com/spf13/pflag"

	"calbot/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Daemon control socket")
	sender := cli.String("sender", "local", "Sender id to attribute the message to")
	timeout := cli.Duration("timeout", 2*time.Minute, "How long to wait for a reply")
	ping := cli.Bool("ping", false, "Check that the daemon is up")
	cli.Parse()

	msg := ipc.ControlMessage{Cmd: "say", Sender: *sender, Text: strings.Join(cli.Args(), " ")}
	if *ping {
		msg = ipc.ControlMessage{Cmd: "ping"}
	} else if strings.TrimSpace(msg.Text) == "" {
		fmt.Fprintln(os.Stderr, "usage: calbot-ctl [flags] <message>")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reply, err := ipc.Send(ctx, *socket, msg)
	if reply.Error != "" {
		fmt.Fprintln(os.Stderr, reply.Error)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "calbot not running:", err)
		os.Exit(1)
	}
	fmt.Println(reply.Reply)
}
