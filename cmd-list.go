package main

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/sheepfetch/sheepfetch/internal/sheepfile"
)

// newCmd_List enumerates every (file_id, name_hash) pair a repack
// container can resolve. Supplemented from original_source/src/main.rs's
// equivalent listing behavior (SPEC_FULL §A.3.1).
func newCmd_List() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list every file id resolvable in a repack container",
		Flags: []cli.Flag{
			flagRepackPath,
		},
		Action: func(c *cli.Context) error {
			r, err := sheepfile.Open(c.String("repack-path"))
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer r.Close()

			entries := r.Entries()
			sort.Slice(entries, func(i, j int) bool { return entries[i].FileID < entries[j].FileID })
			for _, e := range entries {
				fmt.Printf("%d\t%016x\t%d\n", e.FileID, e.NameHash, e.SizeBytes)
			}
			return nil
		},
	}
}
