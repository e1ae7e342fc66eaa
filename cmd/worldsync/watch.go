package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/worldsync/internal/session"
)

// closeGracePeriod bounds the close frame written on interrupt.
const closeGracePeriod = time.Second

// watchCmd prints the change stream of a running server.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print every change pushed by a running server",
	Long: `Connect to a WorldSync server's /subscribe stream and print each frame
as one line of JSON.

The URL may be a ws:// or wss:// stream URL, or the server's http:// base
URL, in which case /subscribe is appended.

With --send, the given JSON object is written once after connecting, so
the first printed line is usually its own echo.

Example:
  worldsync watch --url http://localhost:8080
  worldsync watch --url ws://localhost:8080/subscribe --send '{"scout": {"x": 1}}'`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("url", "ws://localhost:8080/subscribe", "server URL")
	watchCmd.Flags().String("send", "", "JSON object to send after connecting")
}

// streamURL normalises raw into a WebSocket URL for /subscribe.
func streamURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("url scheme must be ws, wss, http or https, got %q", u.Scheme)
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = "/subscribe"
	}
	return u.String(), nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	rawURL, _ := cmd.Flags().GetString("url")
	send, _ := cmd.Flags().GetString("send")

	target, err := streamURL(rawURL)
	if err != nil {
		return err
	}

	var first []byte
	if send != "" {
		var frame map[string]map[string]any
		if err := json.Unmarshal([]byte(send), &frame); err != nil {
			return fmt.Errorf("--send must be a JSON object of entity to attributes: %w", err)
		}
		first = []byte(send)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", target, err)
	}
	defer conn.Close()

	// written before the interrupt goroutine starts; a connection has one writer
	if first != nil {
		if err := conn.WriteMessage(websocket.TextMessage, first); err != nil {
			return fmt.Errorf("failed to send: %w", err)
		}
	}

	// say goodbye on interrupt, which also unblocks ReadMessage
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod))
		_ = conn.Close()
	}()

	return printFrames(ctx, conn, cmd)
}

// printFrames writes each received frame as a line until the stream ends.
func printFrames(ctx context.Context, conn *websocket.Conn, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || session.IsNormalClosure(err) {
				return nil
			}
			return fmt.Errorf("stream ended: %w", err)
		}
		if _, err := fmt.Fprintln(out, string(msg)); err != nil {
			return err
		}
	}
}
