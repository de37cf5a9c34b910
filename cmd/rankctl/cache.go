package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/onnwee/feedrank/internal/feedcache"
)

type cacheOptions struct {
	redisURL string
	timeout  time.Duration
}

func newCacheCmd(root *rootOptions) *cobra.Command {
	opts := &cacheOptions{}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect feeds cached in Redis",
	}
	cmd.PersistentFlags().StringVar(&opts.redisURL, "redis-url", os.Getenv("REDIS_URL"), "redis URL (default $REDIS_URL)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Second, "redis call timeout")

	cmd.AddCommand(newCachePingCmd(opts), newCacheGetCmd(root, opts))
	return cmd
}

func (o *cacheOptions) client() (*redis.Client, error) {
	if o.redisURL == "" {
		return nil, errors.New("--redis-url or REDIS_URL is required")
	}
	opt, err := redis.ParseURL(o.redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// newCachePingCmd pings the configured Redis server.
func newCachePingCmd(opts *cacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Ping Redis and print PONG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb, err := opts.client()
			if err != nil {
				return err
			}
			defer rdb.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			res, err := rdb.Ping(ctx).Result()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newCacheGetCmd(root *rootOptions, opts *cacheOptions) *cobra.Command {
	var (
		user   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the cached feed for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb, err := opts.client()
			if err != nil {
				return err
			}
			defer rdb.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			entry, err := feedcache.NewRedisStore(rdb, 0).Get(ctx, user)
			if errors.Is(err, feedcache.ErrNotFound) {
				return fmt.Errorf("no cached feed for user %q", user)
			}
			if err != nil {
				return err
			}
			root.logger(cmd).Debug("cached feed", "user_id", user, "stored_at", entry.StoredAt)
			return writeItems(cmd.OutOrStdout(), output, entry.Items)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user ID")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
