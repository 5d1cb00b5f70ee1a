package cli

import (
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/depreview/depreview/internal/server"
	"github.com/depreview/depreview/pkg/cache"
	"github.com/depreview/depreview/pkg/errors"
	"github.com/depreview/depreview/pkg/store"
)

func (c *CLI) serveCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve uploads, reports and package pages over HTTP.

Lists and release histories are kept in the database named by DATABASE_URL
(postgres:// or mongodb://; in memory when unset). With REDIS_URL set, HTTP
responses are cached in Redis and history refreshes are coordinated across
instances. DEPREVIEW_CACHE_PREFIX separates deployments sharing one Redis.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := c.config()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			codec, err := c.codec(cfg)
			if err != nil {
				return err
			}

			st, err := store.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer st.Close()

			var (
				backend cache.Cache
				locker  store.Locker
			)
			if cfg.RedisURL != "" {
				opts, err := redis.ParseURL(cfg.RedisURL)
				if err != nil {
					return errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid redis url")
				}
				client := redis.NewClient(opts)
				defer client.Close()
				if err := client.Ping(ctx).Err(); err != nil {
					return errors.Wrap(errors.ErrCodeNetwork, err, "connect to redis")
				}
				backend = cache.NewRedisCacheFromClient(client)
				locker = store.NewRedisLocker(client)
			} else {
				if backend, err = cache.NewMemoryCache(0); err != nil {
					return err
				}
				defer backend.Close()
			}

			runner, breakers := c.newRunner(cfg, st, backend)
			runner.Codec = codec
			if locker != nil {
				runner.Locker = locker
			}

			logger.Info("starting server", "listen", cfg.Listen, "redis", cfg.RedisURL != "", "database", cfg.DatabaseURL != "")
			return server.New(cfg.Listen, server.Options{
				Runner:   runner,
				Logger:   c.Logger,
				Breakers: breakers,
			}).Start(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default from config, :8080)")

	return cmd
}
