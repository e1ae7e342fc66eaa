// Standalone WebSocket client that walks one entity around a running server.
//
// Usage:
//
//	go run ./cmd/worldsync serve -c example/config.yaml
//
// Then in another terminal:
//
//	go run ./example/cmd/wanderer ws://localhost:8080/subscribe
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func main() {
	url := "ws://localhost:8080/subscribe"
	if len(os.Args) > 1 {
		url = os.Args[1]
	}
	name := "wanderer-" + uuid.NewString()[:8]

	fmt.Printf("Wanderer %s connecting to %s\n", name, url)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		slog.Error("failed to dial", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	// print every entity other than our own as it moves
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				stop()
				return
			}
			var frame map[string]map[string]any
			if err := json.Unmarshal(msg, &frame); err != nil {
				continue
			}
			for entity, attrs := range frame {
				if entity != name {
					slog.Info("peer moved", "entity", entity, "x", attrs["x"], "y", attrs["y"])
				}
			}
		}
	}()

	x, y := float64(rand.Intn(500)), float64(rand.Intn(500))
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			x = max(0, min(500, x+float64(rand.Intn(21)-10)))
			y = max(0, min(500, y+float64(rand.Intn(21)-10)))
			msg, _ := json.Marshal(map[string]map[string]any{
				name: {"x": x, "y": y, "colour": "teal"},
			})
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Error("failed to send", "error", err)
				os.Exit(1)
			}
		}
	}
}
