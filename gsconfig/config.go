// Package gsconfig holds the configuration surface consumed by the global
// state core, in the same shape as Carmen's state/mpt.MptConfig: a plain
// struct of typed fields plus package-level named presets.
package gsconfig

// Config bundles the tunables enumerated in spec.md section 6.
type Config struct {
	// Name is a descriptive label, used only for logging.
	Name string

	// MaxKeyBytes rejects keys longer than this at the API boundary.
	MaxKeyBytes int

	// MaxValueBytes rejects values larger than this at apply-time.
	MaxValueBytes int

	// PruneBatchSize is the number of keys processed per trie.Prune call,
	// i.e. per write transaction of globalstate.Store.Prune, which keeps
	// calling trie.Prune until every key is processed. Zero disables
	// pruning.
	PruneBatchSize int

	// StorePath is the filesystem path of the backing object store.
	StorePath string

	// MapSize is passed to the LevelDB-backed store as its block cache
	// capacity, in bytes; the in-memory store ignores it. It does not
	// bound the size of the backing store.
	MapSize int64

	// NodeCacheSize is the number of decoded trie nodes retained in the
	// read-through node cache. Zero disables caching.
	NodeCacheSize int
}

// Default mirrors the production settings a caller would use absent any
// chainspec override: a 64-byte key bound, a conservative 16 MiB value
// bound drawn from the deploy-size limit (spec.md section 9 flags this as
// a figure to tighten against the deployed chainspec), pruning disabled,
// and a modest node cache.
var Default = Config{
	Name:          "default",
	MaxKeyBytes:   64,
	MaxValueBytes: 16 * 1024 * 1024,
	PruneBatchSize: 0,
	StorePath:      "",
	MapSize:        1 << 34,
	NodeCacheSize:  100_000,
}

// WithStorePath returns a copy of cfg with StorePath overridden, the
// pattern used throughout Carmen's configuration presets (e.g. S4Config,
// S5Config) to derive variants without mutating the shared default.
func (cfg Config) WithStorePath(path string) Config {
	cfg.StorePath = path
	return cfg
}
