package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/sheepfetch/sheepfetch/internal/sheepfile"
)

func newCmd_GetName() *cli.Command {
	return &cli.Command{
		Name:      "get-name",
		Usage:     "resolve a path against a repack container and write its bytes to --out-path",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			flagRepackPath,
			flagOutPath,
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return cli.Exit(fmt.Errorf("usage: sheepfetch get-name <name> --repack-path P --out-path P"), 1)
			}
			name := c.Args().Get(0)

			r, err := sheepfile.Open(c.String("repack-path"))
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer r.Close()

			data, err := r.ReadByName(name)
			if err != nil {
				return cli.Exit(err, 1)
			}
			if err := os.WriteFile(c.String("out-path"), data, 0o644); err != nil {
				return cli.Exit(fmt.Errorf("writing output: %w", err), 1)
			}
			klog.Infof("wrote %d bytes for %q to %s", len(data), name, c.String("out-path"))
			return nil
		},
	}
}
