// Command gstrie is a small inspection and maintenance toolbox for a
// global-state object store, grounded on the teacher's
// database/mpt/tool command-per-subcommand layout: one urfave/cli App,
// one *cli.Command value per operation, defined in its own file.
//
// Run using
//  go run ./cmd/gstrie <command> <flags>
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var storePathFlag = cli.StringFlag{
	Name:     "store",
	Usage:    "path to the global-state object store directory",
	Required: true,
}

func main() {
	app := &cli.App{
		Name:  "gstrie",
		Usage: "global-state trie toolbox",
		Commands: []*cli.Command{
			&InfoCmd,
			&CommitCmd,
			&ReadCmd,
			&PruneCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
