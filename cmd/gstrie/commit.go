package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/casper-network/casper-global-state/overlay"
	"github.com/casper-network/casper-global-state/trie"
	"github.com/urfave/cli/v2"
)

var entriesFlag = cli.StringFlag{
	Name:     "entries",
	Usage:    "path to a file of one entry per line: '<hex key> write <hex value>' | '<hex key> delete' | '<hex key> add_u64 <8-byte hex delta>'",
	Required: true,
}

var CommitCmd = cli.Command{
	Action:    commit,
	Name:      "commit",
	Usage:     "applies a batch of entries to a root and prints the resulting root",
	Flags:     []cli.Flag{&storePathFlag, &rootFlag, &entriesFlag},
	ArgsUsage: " ",
}

func commit(context *cli.Context) error {
	store, err := openStore(context)
	if err != nil {
		return err
	}
	defer store.Close()

	root, err := parseRoot(context.String(rootFlag.Name))
	if err != nil {
		return err
	}

	journal, err := readEntriesFile(context.String(entriesFlag.Name))
	if err != nil {
		return err
	}

	ov, err := store.Checkout(root)
	if err != nil {
		return err
	}
	if err := ov.Apply(journal); err != nil {
		return err
	}
	res, err := ov.Flush()
	if err != nil {
		return err
	}

	fmt.Printf("post_root=%s new_digests=%d\n", res.PostRoot, len(res.NewDigests))
	return nil
}

func readEntriesFile(path string) (overlay.Journal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var journal overlay.Journal
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("entries file line %d: expected at least '<key> <op>'", lineNo)
		}
		key, err := parseHex(fields[0])
		if err != nil {
			return nil, fmt.Errorf("entries file line %d: %w", lineNo, err)
		}

		var t trie.Transform
		switch fields[1] {
		case "write":
			if len(fields) != 3 {
				return nil, fmt.Errorf("entries file line %d: write requires a value", lineNo)
			}
			value, err := parseHex(fields[2])
			if err != nil {
				return nil, fmt.Errorf("entries file line %d: %w", lineNo, err)
			}
			t = trie.Write(trie.TaggedValue{Tag: trie.TagOpaque, Bytes: value})
		case "delete":
			t = trie.Delete()
		case "add_u64":
			if len(fields) != 3 {
				return nil, fmt.Errorf("entries file line %d: add_u64 requires an 8-byte delta", lineNo)
			}
			delta, err := parseHex(fields[2])
			if err != nil {
				return nil, fmt.Errorf("entries file line %d: %w", lineNo, err)
			}
			t, err = trie.AddUnsigned(8, delta)
			if err != nil {
				return nil, fmt.Errorf("entries file line %d: %w", lineNo, err)
			}
		default:
			return nil, fmt.Errorf("entries file line %d: unknown op %q", lineNo, fields[1])
		}
		journal = append(journal, trie.Entry{Key: key, Transform: t})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return journal, nil
}
