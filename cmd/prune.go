package cmd

import (
	"context"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/tgdrive/dropshare/internal/blob"
	"github.com/tgdrive/dropshare/internal/cache"
	"github.com/tgdrive/dropshare/internal/config"
	"github.com/tgdrive/dropshare/internal/logging"
	"github.com/tgdrive/dropshare/internal/store"
	"github.com/tgdrive/dropshare/pkg/services"
)

func NewPrune() *cobra.Command {
	var cfg config.PruneCmdConfig
	loader := config.NewConfigLoader()
	cmd := &cobra.Command{
		Use:               "prune",
		Short:             "Remove expired files and exit",
		PersistentPreRunE: preRun(loader, &cfg),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runPrune(cmd.Context(), &cfg)
			if err != nil {
				return err
			}
			cmd.Printf("removed %d files (%d blobs already missing), %d failed\n",
				res.Records, res.MissingBlobs, res.Failed)
			return nil
		},
	}
	if err := loader.RegisterFlags(cmd.Flags(), "", cfg, false); err != nil {
		panic(err)
	}
	return cmd
}

func runPrune(ctx context.Context, conf *config.PruneCmdConfig) (*services.PruneResult, error) {
	lg := setupLogging(&conf.Log)
	defer lg.Sync()

	ctx = logging.WithLogger(ctx, lg)

	cacher, err := cache.NewCache(ctx, &conf.Cache)
	if err != nil {
		return nil, errors.Wrap(err, "create cache")
	}

	st, err := store.New(ctx, &conf.DB)
	if err != nil {
		return nil, errors.Wrap(err, "open metadata store")
	}
	defer st.Close()

	blobs, err := blob.New(ctx, &conf.Storage)
	if err != nil {
		return nil, errors.Wrap(err, "open blob storage")
	}
	if c, ok := blobs.(io.Closer); ok {
		defer c.Close()
	}

	files := services.NewFileService(st, blobs, cacher, nil, nil, config.UploadsConfig{}, conf.Cache.TTL)
	return files.Prune(ctx, time.Now().UTC())
}
