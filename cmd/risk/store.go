package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/banshee-data/risk.report/internal/config"
	"github.com/banshee-data/risk.report/internal/db"
	"github.com/banshee-data/risk.report/internal/fsutil"
	"github.com/banshee-data/risk.report/internal/predlog"
	"github.com/banshee-data/risk.report/internal/security"
)

// predictionLog is the configured log backend.
type predictionLog struct {
	predlog.Store
	db       *db.DB // sqlite sink only
	describe string
	close    func() error
}

func openLog(ctx context.Context, cfg *config.ServiceConfig) (*predictionLog, error) {
	switch cfg.GetSink() {
	case config.SinkSQLite:
		if err := security.ValidateWritableParent(cfg.GetDBPath()); err != nil {
			return nil, err
		}
		d, err := db.NewDB(cfg.GetDBPath())
		if err != nil {
			return nil, fmt.Errorf("open sqlite log: %w", err)
		}
		return &predictionLog{Store: d, db: d, describe: "sqlite " + cfg.GetDBPath(), close: d.Close}, nil

	case config.SinkRedis:
		opts, err := redis.ParseURL(cfg.GetRedisURL())
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		sink := predlog.NewRedisSink(client, cfg.GetRedisKey(), cfg.GetRedisChannel())
		return &predictionLog{
			Store:    sink,
			describe: fmt.Sprintf("redis %s key %s", opts.Addr, cfg.GetRedisKey()),
			close:    client.Close,
		}, nil

	case config.SinkCSV:
		sink := predlog.NewCSVSink(fsutil.OSFileSystem{}, cfg.GetLogPath())
		return &predictionLog{Store: sink, describe: "csv " + sink.Path(), close: func() error { return nil }}, nil

	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.GetSink())
	}
}
