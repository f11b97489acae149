package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var rootFlag = cli.StringFlag{
	Name:  "root",
	Usage: "hex-encoded trie root digest (omit for the empty root)",
}

var keyFlag = cli.StringFlag{
	Name:     "key",
	Usage:    "hex-encoded key to look up",
	Required: true,
}

var ReadCmd = cli.Command{
	Action:    read,
	Name:      "read",
	Usage:     "looks up a single key under a given root",
	Flags:     []cli.Flag{&storePathFlag, &rootFlag, &keyFlag},
	ArgsUsage: " ",
}

func read(context *cli.Context) error {
	store, err := openStore(context)
	if err != nil {
		return err
	}
	defer store.Close()

	root, err := parseRoot(context.String(rootFlag.Name))
	if err != nil {
		return err
	}
	key, err := parseHex(context.String(keyFlag.Name))
	if err != nil {
		return err
	}

	ov, err := store.Checkout(root)
	if err != nil {
		return err
	}
	value, found, err := ov.Read(key)
	if err != nil {
		return err
	}
	if !found {
		fmt.Println("not found")
		return nil
	}
	fmt.Printf("tag=%v value=%x\n", value.Tag, value.Bytes)
	return nil
}
