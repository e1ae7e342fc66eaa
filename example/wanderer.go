package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"
)

// wanderer is a client-side entity that takes a random step every tick.
type wanderer struct {
	name   string
	x, y   float64
	colour string
}

// step moves w by up to 10 units on each axis, staying inside a 500x500 world.
func (w *wanderer) step() {
	w.x = clamp(w.x+float64(rand.Intn(21)-10), 0, 500)
	w.y = clamp(w.y+float64(rand.Intn(21)-10), 0, 500)
}

// frame encodes w as a stream frame that replaces its entity.
func (w *wanderer) frame() ([]byte, error) {
	return json.Marshal(map[string]map[string]any{
		w.name: {"x": w.x, "y": w.y, "colour": w.colour},
	})
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

// RunWanderer connects to url and walks an entity called name around the
// world until ctx is cancelled. Frames pushed by the server are counted and
// discarded.
func RunWanderer(ctx context.Context, url, name string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()

	colours := []string{"red", "green", "blue", "orange", "purple"}
	w := &wanderer{
		name:   name,
		x:      float64(rand.Intn(500)),
		y:      float64(rand.Intn(500)),
		colour: colours[rand.Intn(len(colours))],
	}

	// the reader drains pushes and handles control frames
	received := make(chan int, 1)
	go func() {
		n := 0
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				received <- n
				return
			}
			n++
		}
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			select {
			case n := <-received:
				slog.Info("wanderer stopped", "name", name, "frames_received", n)
			case <-time.After(time.Second):
			}
			return nil
		case n := <-received:
			return fmt.Errorf("server closed the stream after %d frames", n)
		case <-ticker.C:
			w.step()
			msg, err := w.frame()
			if err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return fmt.Errorf("failed to send: %w", err)
			}
		}
	}
}
