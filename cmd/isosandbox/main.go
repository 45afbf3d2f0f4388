package main

import (
	"flag"
	"fmt"
	"os"

	"isosandbox/internal/app"
	"isosandbox/internal/config"
	"isosandbox/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "configuration file (.json or .toml)")
	flag.Parse()

	fmt.Println("isosandbox - WebGPU iso-surfaces")
	fmt.Println("Controls:")
	fmt.Println("  Mouse drag    : Orbit")
	fmt.Println("  Mouse wheel   : Zoom")
	fmt.Println("  WASD / Arrows : Orbit")
	fmt.Println("  Tab           : Switch GPU / CPU extraction")
	fmt.Println("  F1            : Toggle panel")
	fmt.Println("  R             : Reset camera")
	fmt.Println("  Escape        : Exit")
	fmt.Println()

	// Config discovery may warn before the configured level is known
	logging.SetLogger(logging.NewTextLogger(os.Stderr, "info"))

	if *configPath != "" {
		if err := config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	cfg := config.Snapshot()

	logging.SetLogger(logging.NewTextLogger(os.Stderr, cfg.Log.Level))

	application, err := app.New(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		application.Cleanup()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	application.Cleanup()
}
