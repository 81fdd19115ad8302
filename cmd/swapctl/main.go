package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"swapnet/config"
	"swapnet/coordinator"
	"swapnet/redis"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	timeout    time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "swapctl",
		Short:        "Request swaps from network peers and inspect swap state",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yml", "path to the YAML configuration")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline for the command")

	root.AddCommand(requestCmd(), peersCmd(), swapsCmd(), statsCmd(), kvCmd())
	return root
}

func loadCLIConfig() (*config.Configuration, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	// the CLI keeps logs on stderr
	cfg.Log.Dir = ""
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// withCoordinator loads config, builds the coordinator and runs fn under the command deadline
func withCoordinator(fn func(ctx context.Context, c *coordinator.SwapCoordinator) error) error {
	cfg, logger, err := loadCLIConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := coordinator.FromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Store().Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := fn(ctx, c); err != nil {
		logger.Error("command failed", zap.Error(err))
		return err
	}
	return nil
}

// withKV runs fn against the plain key-value store of the configured DB
func withKV(fn func(ctx context.Context, kv *redis.KeyValueStore) error) error {
	cfg, logger, err := loadCLIConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	kv := redis.NewKeyValueStore(redis.NewClient(cfg.Redis, logger))
	defer kv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := fn(ctx, kv); err != nil {
		logger.Error("command failed", zap.Error(err))
		return err
	}
	return nil
}

func printJSON(v interface{}) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requestCmd() *cobra.Command {
	var (
		chain   string
		swapID  string
		output  bool
		info    string
		hotkeys []string
	)
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Store a swap and dispatch it to sampled peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCoordinator(func(ctx context.Context, c *coordinator.SwapCoordinator) error {
				res, err := c.RequestSwap(ctx, coordinator.SwapSubmission{
					ChainName: chain,
					SwapID:    swapID,
					Output:    output,
					Info:      []byte(info),
					Hotkeys:   hotkeys,
				})
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	cmd.Flags().StringVar(&chain, "chain", "", "chain name the swap lives on")
	cmd.Flags().StringVar(&swapID, "swap-id", "", "swap id assigned by the swap contract")
	cmd.Flags().BoolVar(&output, "output", false, "send an output-request instead of an input-request")
	cmd.Flags().StringVar(&info, "info", "", "opaque swap metadata to store")
	cmd.Flags().StringSliceVar(&hotkeys, "hotkeys", nil, "query these peers instead of the top-staked ones")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("swap-id")
	return cmd
}

func peersCmd() *cobra.Command {
	var hotkeys []string
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "Show the peers that currently pass selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCoordinator(func(ctx context.Context, c *coordinator.SwapCoordinator) error {
				usable, err := c.UsablePeers(ctx, hotkeys)
				if err != nil {
					return err
				}
				return printJSON(usable)
			})
		},
	}
	cmd.Flags().StringSliceVar(&hotkeys, "hotkeys", nil, "probe only these peers")
	return cmd
}

func swapsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swaps",
		Short: "Inspect stored swaps",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored swap ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCoordinator(func(ctx context.Context, c *coordinator.SwapCoordinator) error {
				ids, err := c.Store().ListSwapIDs(ctx)
				if err != nil {
					return err
				}
				return printJSON(ids)
			})
		},
	}, &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored swap; bindings and stats are kept",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCoordinator(func(ctx context.Context, c *coordinator.SwapCoordinator) error {
				return c.Store().ClearSwaps(ctx)
			})
		},
	})
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <hotkey> <field>",
		Short: "Show total and weekly values of a stat field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCoordinator(func(ctx context.Context, c *coordinator.SwapCoordinator) error {
				total, err := c.Store().TotalStat(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				weekly, err := c.Store().WeeklyStat(ctx, args[0], args[1]+"_weekly")
				if err != nil {
					return err
				}
				fmt.Printf("%s %s total=%d\n", args[0], args[1], total)
				return printJSON(weekly)
			})
		},
	}
}

func kvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Read and write JSON values under plain keys",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored at key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKV(func(ctx context.Context, kv *redis.KeyValueStore) error {
				var value interface{}
				found, err := kv.Retrieve(ctx, args[0], &value)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("key %s not found", args[0])
				}
				return writeJSON(cmd.OutOrStdout(), value)
			})
		},
	}, &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store value at key; input that is not JSON is stored as a string",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value interface{}
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				value = args[1]
			}
			return withKV(func(ctx context.Context, kv *redis.KeyValueStore) error {
				return kv.Store(ctx, args[0], value)
			})
		},
	}, &cobra.Command{
		Use:   "exists <key>",
		Short: "Print whether key is set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKV(func(ctx context.Context, kv *redis.KeyValueStore) error {
				ok, err := kv.Exists(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ok)
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKV(func(ctx context.Context, kv *redis.KeyValueStore) error {
				return kv.Delete(ctx, args[0])
			})
		},
	})
	return cmd
}
