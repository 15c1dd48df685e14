package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/cuemby/scbackend/pkg/broadcast"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print events from a running stream endpoint",
	Long: `Connect to the event stream, perform a handshake and print every
message received until interrupted.

Examples:
  scbackend watch
  scbackend watch --url ws://10.0.0.5:3031`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("url", "ws://localhost:3031", "Stream endpoint URL")
	watchCmd.Flags().Bool("raw", false, "Print messages as raw JSON")
	watchCmd.Flags().Int64("max-message-bytes", broadcast.DefaultMaxMessageBytes, "Largest event message accepted from the server")
}

func runWatch(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	raw, _ := cmd.Flags().GetBool("raw")
	limit, _ := cmd.Flags().GetInt64("max-message-bytes")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, url, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(limit)

	if err := wsjson.Write(ctx, conn, map[string]string{"type": broadcast.TypeHandshake}); err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}

	for {
		var msg map[string]any
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if ctx.Err() != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			return fmt.Errorf("stream closed: %w", err)
		}
		if raw {
			out, _ := json.Marshal(msg)
			fmt.Println(string(out))
			continue
		}
		printMessage(msg)
	}
}

func printMessage(msg map[string]any) {
	switch msg["type"] {
	case broadcast.TypeHandshake:
		fmt.Printf("✓ Connected (server %v)\n", msg["serverVersion"])
	case broadcast.TypeEvent:
		data, _ := json.Marshal(msg["data"])
		fmt.Printf("%v  %-16v %s\n", msg["timestamp"], msg["event"], data)
	case broadcast.TypeError:
		fmt.Fprintf(os.Stderr, "server error: %v\n", msg["message"])
	default:
		out, _ := json.Marshal(msg)
		fmt.Println(string(out))
	}
}
