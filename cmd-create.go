package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/sheepfetch/sheepfetch/internal/fetcher"
	"github.com/sheepfetch/sheepfetch/internal/sheepfile"
)

var (
	flagPatchServer = &cli.StringFlag{
		Name:     "patch-server",
		Usage:    "patch-server base URL, e.g. http://us.patch.battle.net:1119",
		EnvVars:  []string{"SHEEPFETCH_PATCH_SERVER"},
		Required: true,
	}
	flagProduct = &cli.StringFlag{
		Name:     "product",
		Usage:    "product identifier, e.g. wow",
		EnvVars:  []string{"SHEEPFETCH_PRODUCT"},
		Required: true,
	}
	flagRegion = &cli.StringFlag{
		Name:    "region",
		Usage:   "region row to select from the versions/cdns manifests",
		EnvVars: []string{"SHEEPFETCH_REGION"},
		Value:   "us",
	}
	flagCachePath = &cli.StringFlag{
		Name:     "cache-path",
		Usage:    "local directory used as the CDN content mirror",
		EnvVars:  []string{"SHEEPFETCH_CACHE_PATH"},
		Required: true,
	}
	flagRepackPath = &cli.StringFlag{
		Name:     "repack-path",
		Usage:    "local directory holding (or to hold) the sheepfile repack container",
		EnvVars:  []string{"SHEEPFETCH_REPACK_PATH"},
		Required: true,
	}
	flagOutPath = &cli.StringFlag{
		Name:     "out-path",
		Usage:    "file to write the resolved asset's bytes to",
		EnvVars:  []string{"SHEEPFETCH_OUT_PATH"},
		Required: true,
	}
)

func newCmd_Create() *cli.Command {
	return &cli.Command{
		Name:        "create",
		Usage:       "discover the current build and repack every resolvable asset into a sheepfile container",
		Description: "fetches versions/cdns/configs/encoding/root/archive indices from the CDN, then repacks every resolvable file into --repack-path",
		Flags: []cli.Flag{
			flagPatchServer,
			flagProduct,
			flagRegion,
			flagCachePath,
			flagRepackPath,
		},
		Action: func(c *cli.Context) error {
			ctx := c.Context
			startedAt := time.Now()

			f, err := fetcher.New(ctx, fetcher.Config{
				PatchServer: c.String("patch-server"),
				Product:     c.String("product"),
				Region:      c.String("region"),
				CacheRoot:   c.String("cache-path"),
			})
			if err != nil {
				return cli.Exit(fmt.Errorf("initializing fetcher: %w", err), 1)
			}

			w, err := sheepfile.Build(ctx, c.String("repack-path"), []*fetcher.Fetcher{f})
			if err != nil {
				return cli.Exit(fmt.Errorf("building repack: %w", err), 1)
			}
			if err := w.Finish(); err != nil {
				return cli.Exit(err, 1)
			}

			klog.Infof("repack complete: %d entries in %s", len(w.Entries()), time.Since(startedAt))
			return nil
		},
	}
}
