package main

import (
	"fmt"
	"os"

	"github.com/tubewise/tubewise-backend/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	application.Log.Info("Starting server", "addr", addr)
	if err := application.Run(addr); err != nil {
		application.Log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
