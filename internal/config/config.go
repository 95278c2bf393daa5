// Package config loads meetscribed's two layers of configuration: a small
// set of bootstrap flags needed before anything else can start (where the
// data lives, what to listen on), and the richer ScribeConfig tree that
// tunes every pipeline stage, loaded from YAML once DataDir is known.
package config

import (
	"flag"
	"path/filepath"
	"runtime"
)

// Bootstrap holds the handful of settings needed to locate everything else:
// the data directory, the model cache, and the control-plane listen
// addresses. Everything downstream of these lives in ScribeConfig.
type Bootstrap struct {
	ConfigPath string
	DataDir    string
	ModelsDir  string
	ListenAddr string
	GRPCAddr   string
	ProfileDSN string
}

// LoadBootstrap parses the daemon's command-line flags. Call once at
// process start, before Load.
func LoadBootstrap() *Bootstrap {
	configPath := flag.String("config", "", "Path to scribe.yaml (default: <data>/scribe.yaml)")
	dataDir := flag.String("data", "data/sessions", "Directory for session and profile-store data")
	modelsDir := flag.String("models", "", "Directory for downloaded models (default: <data>/../models)")
	listenAddr := flag.String("listen", "127.0.0.1:8080", "Event stream (WebSocket) listen address")
	grpcAddr := flag.String("grpc-addr", defaultGRPCAddress(), "gRPC control-plane listen address (unix:/path/to.sock or npipe:////./pipe/meetscribe-grpc)")
	profileDSN := flag.String("profile-dsn", "postgres://localhost/meetscribe?sslmode=disable", "Postgres DSN for the long-lived speaker profile store")

	flag.Parse()

	finalModelsDir := *modelsDir
	if finalModelsDir == "" {
		finalModelsDir = filepath.Join(filepath.Dir(*dataDir), "models")
	}
	finalConfigPath := *configPath
	if finalConfigPath == "" {
		finalConfigPath = filepath.Join(*dataDir, "scribe.yaml")
	}

	return &Bootstrap{
		ConfigPath: finalConfigPath,
		DataDir:    *dataDir,
		ModelsDir:  finalModelsDir,
		ListenAddr: *listenAddr,
		GRPCAddr:   *grpcAddr,
		ProfileDSN: *profileDSN,
	}
}

func defaultGRPCAddress() string {
	if runtime.GOOS == "windows" {
		return "npipe:\\\\.\\pipe\\meetscribe-grpc"
	}
	return "unix:/tmp/meetscribe-grpc.sock"
}
