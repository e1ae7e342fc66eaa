package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/worldsync"
)

func main() {
	// start the world with a fixed beacon and a callback that reports
	// when anything gets close to it
	ws, err := worldsync.New(
		worldsync.WithPort(8080),
		worldsync.WithTitle("WorldSync Demo"),
		worldsync.WithEntity("beacon", worldsync.Attributes{"x": 250, "y": 250, "colour": "gold"}),
		worldsync.WithChangeCallback(func(c worldsync.Change) {
			x, _ := c.Attributes["x"].(float64)
			y, _ := c.Attributes["y"].(float64)
			if c.Entity != "beacon" && abs(x-250) < 20 && abs(y-250) < 20 {
				slog.Info("near the beacon", "entity", c.Entity)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create worldsync", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   WorldSync Demo                                      ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in two browser tabs      ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Entities:                                           ║")
	fmt.Println("  ║   • 1 beacon (seeded)                                 ║")
	fmt.Println("  ║   • 3 wanderers (WebSocket clients)                   ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// wanderers connect once the server is listening (see wanderer.go)
	go func() {
		time.Sleep(200 * time.Millisecond)
		for i := 1; i <= 3; i++ {
			name := fmt.Sprintf("wanderer-%d", i)
			go func() {
				if err := RunWanderer(ctx, "ws://localhost:8080/subscribe", name); err != nil {
					slog.Error("wanderer error", "name", name, "error", err)
				}
			}()
		}
	}()

	if err := ws.Start(ctx); err != nil {
		slog.Error("worldsync error", "error", err)
		os.Exit(1)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
