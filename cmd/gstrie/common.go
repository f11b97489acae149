package main

import (
	"fmt"

	"github.com/casper-network/casper-global-state/digest"
	"github.com/casper-network/casper-global-state/globalstate"
	"github.com/casper-network/casper-global-state/gsconfig"
	"github.com/urfave/cli/v2"
)

func openStore(context *cli.Context) (*globalstate.Store, error) {
	cfg := gsconfig.Default.WithStorePath(context.String(storePathFlag.Name))
	return globalstate.Open(cfg)
}

func gsconfigWithBatch(context *cli.Context) gsconfig.Config {
	cfg := gsconfig.Default.WithStorePath(context.String(storePathFlag.Name))
	cfg.PruneBatchSize = context.Int(batchSizeFlag.Name)
	return cfg
}

func openWithConfig(cfg gsconfig.Config) (*globalstate.Store, error) {
	return globalstate.Open(cfg)
}

func parseRoot(s string) (digest.Hash, error) {
	if s == "" {
		return digest.Empty, nil
	}
	b, err := parseHex(s)
	if err != nil {
		return digest.Hash{}, err
	}
	if len(b) != digest.Size {
		return digest.Hash{}, fmt.Errorf("root %q is %d bytes, want %d", s, len(b), digest.Size)
	}
	return digest.FromBytes(b), nil
}

func parseHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string %q", s)
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := hexDigit(s[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := hexDigit(s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexDigit(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", c)
	}
}
