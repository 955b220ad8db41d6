// Package main implements the waypoint daemon: the local location
// history store with its tracker, retention pruner, and JSON API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/waypointdb/waypoint/internal/app"
	"github.com/waypointdb/waypoint/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		backend     string
		httpAddr    string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&backend, "store", "", "Store backend: sqlite, memory")
	flag.StringVar(&httpAddr, "http-addr", "", "Listen address for the local API")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Waypoint - local location history store\n\n")
		fmt.Fprintf(os.Stderr, "Usage: waypoint [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  waypoint --data-dir /var/lib/waypoint\n")
		fmt.Fprintf(os.Stderr, "  waypoint --config /etc/waypoint/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  WAYPOINT_DATA_DIR        Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  WAYPOINT_STORE_BACKEND   Store backend (sqlite, memory)\n")
		fmt.Fprintf(os.Stderr, "  WAYPOINT_HTTP_ADDR       Listen address for the local API\n")
		fmt.Fprintf(os.Stderr, "  WAYPOINT_TRACKER_*       Tracker settings\n")
		fmt.Fprintf(os.Stderr, "  WAYPOINT_RETENTION_*     Retention settings\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("waypoint version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dataDir, backend, httpAddr)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.New(cfg, app.WithVersion(version))
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Daemon exited with error: %v", err)
	}
}

// loadConfig builds the effective configuration: file, then environment,
// then flags, in increasing precedence.
func loadConfig(configFile, dataDir, backend, httpAddr string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if configFile != "" {
		loaded, err := config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	config.LoadFromEnv(cfg)

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if backend != "" {
		cfg.Store.Backend = backend
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}

	cfg.Resolve()
	return cfg, nil
}
