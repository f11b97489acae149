package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

var keysFlag = cli.StringFlag{
	Name:     "keys",
	Usage:    "path to a file of hex-encoded keys to prune, one per line",
	Required: true,
}

var batchSizeFlag = cli.IntFlag{
	Name:  "batch-size",
	Usage: "prune_batch_size override; 0 disables pruning",
	Value: 1000,
}

var PruneCmd = cli.Command{
	Action:    prune,
	Name:      "prune",
	Usage:     "removes unreferenced trie nodes for a batch of keys",
	Flags:     []cli.Flag{&storePathFlag, &rootFlag, &keysFlag, &batchSizeFlag},
	ArgsUsage: " ",
}

func prune(context *cli.Context) error {
	cfg := gsconfigWithBatch(context)
	store, err := openWithConfig(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	root, err := parseRoot(context.String(rootFlag.Name))
	if err != nil {
		return err
	}
	keys, err := readKeysFile(context.String(keysFlag.Name))
	if err != nil {
		return err
	}

	newRoot, err := store.Prune(root, keys)
	if err != nil {
		return err
	}
	fmt.Printf("post_root=%s\n", newRoot)
	return nil
}

func readKeysFile(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var keys [][]byte
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, err := parseHex(line)
		if err != nil {
			return nil, fmt.Errorf("keys file line %d: %w", lineNo, err)
		}
		keys = append(keys, key)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
