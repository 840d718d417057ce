package cmd

import (
	"context"
	"fmt"
	"io"

	"PlayDeck/cache"
	"PlayDeck/config"
	"PlayDeck/core/player"
	"PlayDeck/core/track"
	"PlayDeck/core/tracklist"
	"PlayDeck/db"
	"PlayDeck/logger"
	"PlayDeck/metrics"
	"PlayDeck/storage"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// openStore 连接配置的持久化后端，返回的store可能同时实现io.Closer
func openStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return cache.NewMemory(cfg.StoreQuotaBytes), nil
	case config.StoreRedis:
		return cache.ConnectRedis(cfg)
	case config.StoreMySQL:
		return db.ConnectKVStore(cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func closeStore(store cache.Store) {
	if c, ok := store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close store", logger.ErrorField(err))
		}
	}
}

// openMaterializer 选择上传音频的存放位置
func openMaterializer(ctx context.Context, cfg *config.Config) (track.Materializer, error) {
	switch cfg.LocatorBackend {
	case config.LocatorDataURI:
		return track.DataURI{}, nil
	case config.LocatorMinio:
		return storage.ConnectMinio(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown locator backend %q", cfg.LocatorBackend)
	}
}

func engineOptions(cfg *config.Config) player.Options {
	return player.Options{
		SampleInterval:    cfg.SampleInterval,
		PersistInterval:   cfg.PersistInterval,
		PreviousThreshold: cfg.PreviousThreshold,
		DefaultVolume:     cfg.DefaultVolume,
	}
}

// newEngine 从store恢复曲目列表并创建播放引擎
func newEngine(store cache.Store, out player.Output) *player.Engine {
	tracks := tracklist.New(store)
	engine := player.New(tracks, out, store, engineOptions(cfg))
	engine.Subscribe(metrics.Observe)
	logger.Info("engine ready",
		logger.Int("tracks", tracks.Len()),
		logger.String("state", engine.State().String()))
	return engine
}

func fileSources(paths []string) []track.Source {
	sources := make([]track.Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, track.File(p))
	}
	return sources
}
