package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/sheepfetch/sheepfetch/internal/sheepfile"
)

func newCmd_GetID() *cli.Command {
	return &cli.Command{
		Name:      "get-id",
		Usage:     "resolve a FileDataID against a repack container and write its bytes to --out-path",
		ArgsUsage: "<file-id>",
		Flags: []cli.Flag{
			flagRepackPath,
			flagOutPath,
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return cli.Exit(fmt.Errorf("usage: sheepfetch get-id <file-id> --repack-path P --out-path P"), 1)
			}
			fileID, err := strconv.ParseUint(c.Args().Get(0), 10, 32)
			if err != nil {
				return cli.Exit(fmt.Errorf("invalid file id %q: %w", c.Args().Get(0), err), 1)
			}

			r, err := sheepfile.Open(c.String("repack-path"))
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer r.Close()

			data, err := r.ReadByID(uint32(fileID))
			if err != nil {
				return cli.Exit(err, 1)
			}
			if err := os.WriteFile(c.String("out-path"), data, 0o644); err != nil {
				return cli.Exit(fmt.Errorf("writing output: %w", err), 1)
			}
			klog.Infof("wrote %d bytes for file id %d to %s", len(data), fileID, c.String("out-path"))
			return nil
		},
	}
}
