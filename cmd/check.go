package cmd

import (
	"context"
	"fmt"
	"time"

	"PlayDeck/config"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test the configured store and locator backends",
	Long: `Connect to the configured store backend and locator backend, ping them
and write then clear a test key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

const checkKey = "playdeck:check"

func runCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	fmt.Printf("store backend: %s\n", cfg.StoreBackend)
	switch cfg.StoreBackend {
	case config.StoreRedis:
		fmt.Printf("  redis: %s:%s, db %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)
	case config.StoreMySQL:
		fmt.Printf("  mysql: %s@%s:%s/%s\n", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer closeStore(store)

	if p, ok := store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("ping store: %w", err)
		}
	}
	if err := store.Set(ctx, checkKey, time.Now().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("write check key: %w", err)
	}
	if _, ok, err := store.Get(ctx, checkKey); err != nil || !ok {
		return fmt.Errorf("read check key: found=%v err=%v", ok, err)
	}
	if err := store.Clear(ctx, checkKey); err != nil {
		return fmt.Errorf("clear check key: %w", err)
	}
	fmt.Println("  ok")

	fmt.Printf("locator backend: %s\n", cfg.LocatorBackend)
	if cfg.LocatorBackend == config.LocatorMinio {
		fmt.Printf("  minio: %s, bucket %s\n", cfg.MinioEndpoint, cfg.MinioBucket)
	}
	if _, err := openMaterializer(ctx, cfg); err != nil {
		return fmt.Errorf("connect locator backend: %w", err)
	}
	fmt.Println("  ok")
	return nil
}
