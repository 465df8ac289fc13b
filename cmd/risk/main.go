package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/risk.report/internal/api"
	"github.com/banshee-data/risk.report/internal/config"
	"github.com/banshee-data/risk.report/internal/features"
	"github.com/banshee-data/risk.report/internal/fsutil"
	"github.com/banshee-data/risk.report/internal/model"
	"github.com/banshee-data/risk.report/internal/predlog"
	"github.com/banshee-data/risk.report/internal/timeutil"
	"github.com/banshee-data/risk.report/internal/version"
)

var (
	listen      = flag.String("listen", config.DefaultListen, "Listen address")
	artifacts   = flag.String("artifacts", config.DefaultArtifactsDir, "Directory holding feature_columns.json, scaler.json and model.json")
	logPath     = flag.String("log", config.DefaultLogPath, "Prediction log CSV file (csv sink)")
	configFile  = flag.String("config", "", "Optional JSON service config; flags set on the command line win")
	sinkKind    = flag.String("sink", config.SinkCSV, "Prediction log sink: csv, sqlite or redis")
	dbPath      = flag.String("db", config.DefaultDBPath, "SQLite database path (sqlite sink)")
	redisURL    = flag.String("redis", "", "Redis URL for the redis sink, e.g. redis://localhost:6379/0")
	encoding    = flag.String("encoding", features.EncodeFullDomain.String(), "Categorical encoding: full_domain or single_row")
	timezone    = flag.String("timezone", "", "Timezone for log timestamps, e.g. Europe/London (default: host local time)")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: risk [flags]\n       risk migrate [-db path] <action>\n       risk predict [-server url] [input.json|-]\n\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			if err := runMigrate(os.Args[2:], os.Stdout); err != nil {
				log.Fatalf("migrate: %v", err)
			}
			return
		case "predict":
			if err := runPredict(os.Args[2:], os.Stdin, os.Stdout); err != nil {
				log.Fatalf("predict: %v", err)
			}
			return
		}
	}

	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := resolveConfig(*configFile, explicitFlags(flag.CommandLine))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("risk: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

// explicitFlags returns the flags that were set on the command line.
func explicitFlags(fs *flag.FlagSet) map[string]string {
	set := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = f.Value.String()
	})
	return set
}

// resolveConfig loads the optional config file and applies any flags that
// were set explicitly on top of it.
func resolveConfig(path string, set map[string]string) (*config.ServiceConfig, error) {
	cfg := &config.ServiceConfig{}
	if path != "" {
		var err error
		if cfg, err = config.LoadServiceConfig(path); err != nil {
			return nil, err
		}
	}

	override := func(name string, dst **string) {
		if v, ok := set[name]; ok {
			*dst = &v
		}
	}
	override("listen", &cfg.Listen)
	override("artifacts", &cfg.ArtifactsDir)
	override("log", &cfg.LogPath)
	override("sink", &cfg.Sink)
	override("db", &cfg.DBPath)
	override("redis", &cfg.RedisURL)
	override("encoding", &cfg.Encoding)
	override("timezone", &cfg.Timezone)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// run serves until ctx is cancelled, then drains the log writer.
func run(ctx context.Context, cfg *config.ServiceConfig) error {
	arts, err := model.LoadArtifacts(fsutil.OSFileSystem{}, cfg.GetArtifactsDir())
	if err != nil {
		return fmt.Errorf("load model artifacts: %w", err)
	}
	log.Printf("loaded model %s (%d features) from %s", arts.ModelVersion, len(arts.Schema), arts.Dir)

	store, err := openLog(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.close(); err != nil {
			log.Printf("failed to close prediction log: %v", err)
		}
	}()
	log.Printf("prediction log: %s", store.describe)

	writer := predlog.NewSerialized(store.Store, cfg.GetWriteBuffer())
	srv := api.NewServer(arts, writer, store.Store, api.Options{
		Encoding:     cfg.GetEncoding(),
		SinkName:     cfg.GetSink(),
		HistoryLimit: cfg.GetHistoryLimit(),
		PreviewLimit: cfg.GetPreviewLimit(),
		Clock:        timeutil.InZone(timeutil.RealClock{}, cfg.GetTimezone()),
	})
	mux := srv.ServeMux()
	if store.db != nil {
		if err := store.db.AttachAdminRoutes(mux); err != nil {
			writer.Close()
			return fmt.Errorf("attach admin routes: %w", err)
		}
	}

	server := &http.Server{
		Addr:              cfg.GetListen(),
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		writer.Close()
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	// Requests are done; flush whatever they queued.
	writer.Close()
	log.Printf("prediction log writer drained")
	return nil
}
