package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"PlayDeck/core/watch"
	"PlayDeck/logger"
	"PlayDeck/server"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the PlayDeck HTTP and websocket server",
	Long: `Start the HTTP API and the websocket endpoint. Connected browsers play
the audio; the server keeps the track list and transport state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenFlag, "addr", "", "listen address, overrides LISTEN_ADDR")
	serveCmd.Flags().StringVar(&watchFlag, "watch", "", "directory to watch for new MP3 files, overrides WATCH_DIR")
}

var (
	listenFlag string
	watchFlag  string
)

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := cfg.ListenAddr
	if listenFlag != "" {
		addr = listenFlag
	}
	watchDir := cfg.WatchDir
	if watchFlag != "" {
		watchDir = watchFlag
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	materializer, err := openMaterializer(ctx, cfg)
	if err != nil {
		return err
	}

	hub := server.NewHub()
	remote := server.NewRemoteOutput(hub)
	engine := newEngine(store, remote)
	defer engine.Close()

	srv := server.New(engine, hub, remote, materializer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		hub.Stop()
		return nil
	})
	g.Go(func() error {
		return srv.Run(gctx, addr)
	})

	if watchDir != "" {
		// a restored list already holds the directory's files
		if len(engine.Status().Tracks) == 0 {
			paths, err := watch.Scan(watchDir)
			if err != nil {
				logger.Warn("failed to scan watch dir", logger.String("dir", watchDir), logger.ErrorField(err))
			} else if len(paths) > 0 {
				added := engine.AddSources(ctx, materializer, fileSources(paths)...)
				logger.Info("added tracks from watch dir", logger.Int("added", added), logger.Int("found", len(paths)))
			}
		}
		g.Go(func() error {
			return watch.Watch(gctx, watchDir, watch.DefaultSettle, func(paths []string) {
				added := engine.AddSources(gctx, materializer, fileSources(paths)...)
				logger.Info("added new tracks", logger.Int("added", added), logger.Int("found", len(paths)))
			})
		})
	}

	return g.Wait()
}
