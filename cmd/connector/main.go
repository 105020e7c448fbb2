package main

import (
	"fmt"
	"os"

	"github.com/edubridge/campusconnect/internal/app"
	"github.com/edubridge/campusconnect/internal/host"
)

func main() {
	// The standalone binary runs against the in-memory host, which is
	// enough for broker integration testing. A real deployment embeds
	// internal/app with the host's own collaborator implementations.
	baseURL := os.Getenv("HOST_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	h := host.NewMemory(baseURL).AsHost()

	a, err := app.New(h)
	if err != nil {
		fmt.Printf("Failed to start connector: %v\n", err)
		os.Exit(1)
	}
	if err := a.Run(); err != nil {
		a.Log.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
