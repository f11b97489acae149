package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var InfoCmd = cli.Command{
	Action:    info,
	Name:      "info",
	Usage:     "reports whether a global-state store can be opened",
	Flags:     []cli.Flag{&storePathFlag},
	ArgsUsage: " ",
}

func info(context *cli.Context) error {
	store, err := openStore(context)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("store %q opened successfully\n", context.String(storePathFlag.Name))
	return nil
}
