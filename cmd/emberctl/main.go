// emberctl is a small operator utility for inspecting and mutating the
// configured cache backend: get, set, del, keys, invalidate and flush.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/embercache/ember/cache"
	"github.com/embercache/ember/config"
)

var (
	configFile string
	setTTL     time.Duration
)

// withBackend loads configuration, builds the provider and hands the
// backend to fn, closing everything afterwards.
func withBackend(fn func(ctx context.Context, b cache.Backend, log *zap.Logger) error) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	provider, err := cache.NewProvider(cfg.Cache, log)
	if err != nil {
		return err
	}
	defer func() { _ = provider.Close() }()

	ctx := context.Background()
	backend, err := provider.Backend(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, backend, log)
}

func main() {
	root := &cobra.Command{
		Use:           "emberctl",
		Short:         "inspect and mutate the configured cache backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file (default: ember.yaml if present)")

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "print the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b cache.Backend, _ *zap.Logger) error {
				found, val, err := cache.Get[string](ctx, b, args[0])
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("key %q not found", args[0])
				}
				fmt.Println(val)
				return nil
			})
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "store a value under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b cache.Backend, _ *zap.Logger) error {
				return cache.Set(ctx, b, args[0], args[1], setTTL)
			})
		},
	}
	setCmd.Flags().DurationVar(&setTTL, "ttl", 0, "time to live (0 uses the configured default)")

	delCmd := &cobra.Command{
		Use:   "del <key>",
		Short: "delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b cache.Backend, _ *zap.Logger) error {
				return b.Delete(ctx, args[0])
			})
		},
	}

	keysCmd := &cobra.Command{
		Use:   "keys <pattern>",
		Short: "list keys matching a glob pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b cache.Backend, _ *zap.Logger) error {
				cursor := uint64(0)
				for {
					next, keys, err := b.Scan(ctx, cursor, args[0], 0)
					if err != nil {
						return err
					}
					for _, key := range keys {
						fmt.Println(key)
					}
					if next == 0 {
						return nil
					}
					cursor = next
				}
			})
		},
	}

	invalidateCmd := &cobra.Command{
		Use:   "invalidate <pattern>",
		Short: "delete every key matching a glob pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b cache.Backend, _ *zap.Logger) error {
				deleted, err := b.DeletePattern(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("deleted %d keys\n", deleted)
				return nil
			})
		},
	}

	flushCmd := &cobra.Command{
		Use:   "flush",
		Short: "remove every entry owned by the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b cache.Backend, _ *zap.Logger) error {
				return b.Clear(ctx)
			})
		},
	}

	root.AddCommand(getCmd, setCmd, delCmd, keysCmd, invalidateCmd, flushCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
