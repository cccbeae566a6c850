package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/tgdrive/dropshare/internal/api"
	"github.com/tgdrive/dropshare/internal/auth"
	"github.com/tgdrive/dropshare/internal/banner"
	"github.com/tgdrive/dropshare/internal/blob"
	"github.com/tgdrive/dropshare/internal/cache"
	"github.com/tgdrive/dropshare/internal/config"
	"github.com/tgdrive/dropshare/internal/cron"
	"github.com/tgdrive/dropshare/internal/logging"
	"github.com/tgdrive/dropshare/internal/password"
	"github.com/tgdrive/dropshare/internal/store"
	"github.com/tgdrive/dropshare/internal/version"
	"github.com/tgdrive/dropshare/pkg/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func NewRun() *cobra.Command {
	var cfg config.ServerCmdConfig
	loader := config.NewConfigLoader()
	cmd := &cobra.Command{
		Use:               "run",
		Short:             "Start the dropshare server",
		PersistentPreRunE: preRun(loader, &cfg),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApplication(cmd.Context(), &cfg)
		},
	}
	if err := loader.RegisterFlags(cmd.Flags(), "", cfg, false); err != nil {
		panic(err)
	}
	return cmd
}

func runApplication(ctx context.Context, conf *config.ServerCmdConfig) error {
	lg := setupLogging(&conf.Log)
	defer lg.Sync()

	ctx = logging.WithLogger(ctx, lg)

	cacher, err := cache.NewCache(ctx, &conf.Cache)
	if err != nil {
		return errors.Wrap(err, "create cache")
	}

	st, err := store.New(ctx, &conf.DB)
	if err != nil {
		return errors.Wrap(err, "open metadata store")
	}
	defer st.Close()

	blobs, err := blob.New(ctx, &conf.Storage)
	if err != nil {
		return errors.Wrap(err, "open blob storage")
	}
	if c, ok := blobs.(io.Closer); ok {
		defer c.Close()
	}

	hasher, err := password.New(conf.Password)
	if err != nil {
		return errors.Wrap(err, "create password hasher")
	}

	signer := auth.NewSigner(conf.JWT.Secret, conf.JWT.TokenTTL)

	files := services.NewFileService(st, blobs, cacher, hasher, signer, conf.Uploads, conf.Cache.TTL)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Server.Port),
		Handler:           api.NewRouter(conf, files, lg),
		ReadTimeout:       conf.Server.ReadTimeout,
		WriteTimeout:      conf.Server.WriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	scheduler := cron.StartCronJobs(ctx, &conf.CronJobs, files)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		banner.PrintBanner(os.Stdout, banner.StartupInfo{
			Version:  version.Version,
			Addr:     srv.Addr,
			LogLevel: conf.Log.Level,
			DB:       conf.DB.Type,
			Storage:  conf.Storage.Type,
		})
		lg.Info("server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.GracefulShutdown)
		defer cancel()

		scheduler.Stop(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})

	err = g.Wait()
	lg.Info("server stopped")
	return err
}
