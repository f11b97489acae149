package trie

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/casper-network/casper-global-state/encoding"
	"github.com/casper-network/casper-global-state/gserr"
)

// TransformKind discriminates the transform variants of spec.md section 3.
type TransformKind byte

const (
	TIdentity     TransformKind = 0
	TWrite        TransformKind = 1
	TAddI64       TransformKind = 2
	TAddU64       TransformKind = 3
	TAddU128      TransformKind = 4
	TAddU256      TransformKind = 5
	TAddU512      TransformKind = 6
	TAddNamedKeys TransformKind = 7
	TDelete       TransformKind = 8

	// tPoison never appears in a deploy-authored journal; it is produced
	// internally by Merge when composing two transforms whose combination
	// is already known to fail, so the failure can be deferred to flush
	// time as spec.md section 4.5's footnotes require, instead of
	// rejecting the merge itself.
	tPoison TransformKind = 255
)

// NamedKeyEntry is one (name, key) pair of the add_named_keys transform.
type NamedKeyEntry struct {
	Name string
	Key  []byte
}

// Transform is a unit of state change, spec.md section 3.
type Transform struct {
	Kind TransformKind

	Write TaggedValue

	AddI64    int64
	AddWide   []byte // big-endian delta, width implied by Kind
	NamedKeys []NamedKeyEntry

	poisonErr error
}

func (k TransformKind) String() string {
	switch k {
	case TIdentity:
		return "identity"
	case TWrite:
		return "write"
	case TAddI64:
		return "add_i64"
	case TAddU64:
		return "add_u64"
	case TAddU128:
		return "add_u128"
	case TAddU256:
		return "add_u256"
	case TAddU512:
		return "add_u512"
	case TAddNamedKeys:
		return "add_named_keys"
	case TDelete:
		return "delete"
	case tPoison:
		return "poison"
	default:
		return fmt.Sprintf("transform(%d)", byte(k))
	}
}

func Identity() Transform { return Transform{Kind: TIdentity} }
func Write(v TaggedValue) Transform { return Transform{Kind: TWrite, Write: v} }
func Delete() Transform { return Transform{Kind: TDelete} }
func AddI64(delta int64) Transform { return Transform{Kind: TAddI64, AddI64: delta} }
func AddNamedKeys(entries []NamedKeyEntry) Transform {
	return Transform{Kind: TAddNamedKeys, NamedKeys: append([]NamedKeyEntry(nil), entries...)}
}

// AddUnsigned builds an add_u64/u128/u256/u512 transform; width must be
// 8, 16, 32, or 64 and delta must be that many big-endian bytes.
func AddUnsigned(width int, delta []byte) (Transform, error) {
	kind, err := addKindForWidth(width)
	if err != nil {
		return Transform{}, err
	}
	if len(delta) != width {
		return Transform{}, fmt.Errorf("add delta is %d bytes, want %d: %w", len(delta), width, gserr.Formatting)
	}
	return Transform{Kind: kind, AddWide: append([]byte(nil), delta...)}, nil
}

func addKindForWidth(width int) (TransformKind, error) {
	switch width {
	case 8:
		return TAddU64, nil
	case 16:
		return TAddU128, nil
	case 32:
		return TAddU256, nil
	case 64:
		return TAddU512, nil
	default:
		return 0, fmt.Errorf("unsupported add width %d: %w", width, gserr.Formatting)
	}
}

func tagForAddKind(k TransformKind) ValueTag {
	switch k {
	case TAddU64:
		return TagUint64
	case TAddU128:
		return TagUint128
	case TAddU256:
		return TagUint256
	case TAddU512:
		return TagUint512
	default:
		return TagOpaque
	}
}

func widthForAddKind(k TransformKind) int {
	return tagForAddKind(k).Width()
}

func poison(err error) Transform {
	return Transform{Kind: tPoison, poisonErr: err}
}

// Merge implements spec.md section 4.5's transform composition table:
// given a pending transform t1 and an incoming transform t2 for the same
// key, it returns the single transform that represents applying t1 then
// t2. write and delete as T2 always win outright; identity as T2 is a
// no-op that preserves T1. Composing two numeric adds of matching width
// sums their deltas; composing a write with an add resolves the new
// value eagerly. Any failure that the table's footnotes says should
// surface "at flush" is captured as a poisoned transform instead of
// being returned as an error here, since Merge itself must always
// succeed: overlay.Apply never fails on a transform combination, and
// such failures surface at Flush.
func Merge(t1, t2 Transform) Transform {
	if t1.Kind == tPoison {
		// A transform already known to fail stays poisoned under a later
		// add or identity; a later write or delete replaces the key's
		// state outright, which makes any earlier failure moot.
		if t2.Kind == TDelete || t2.Kind == TWrite {
			return t2
		}
		return t1
	}
	switch t2.Kind {
	case TDelete:
		return t2
	case TIdentity:
		return t1
	case TWrite:
		return t2
	}

	// t2 is one of the add_* variants.
	switch t1.Kind {
	case TWrite:
		v, err := combineAddWithValue(t1.Write, true, t2)
		if err != nil {
			return poison(err)
		}
		return Transform{Kind: TWrite, Write: v}
	case TDelete:
		v, err := combineAddWithValue(TaggedValue{}, false, t2)
		if err != nil {
			return poison(err)
		}
		return Transform{Kind: TWrite, Write: v}
	case TIdentity:
		return t2
	default:
		if t1.Kind != t2.Kind {
			return poison(fmt.Errorf("merging %v with %v: %w", t1.Kind, t2.Kind, gserr.TypeMismatch))
		}
		merged, err := combineAddAdd(t1, t2)
		if err != nil {
			return poison(err)
		}
		return merged
	}
}

// Apply resolves a single transform against the pre-image (current,
// present) read from the trie, per spec.md section 3's transform
// invariants. It returns the post-image value and whether the key should
// be deleted.
func Apply(current TaggedValue, present bool, t Transform) (result TaggedValue, deleted bool, err error) {
	switch t.Kind {
	case tPoison:
		return TaggedValue{}, false, t.poisonErr
	case TIdentity:
		return current, false, nil
	case TWrite:
		return t.Write, false, nil
	case TDelete:
		// delete on an absent key is a no-op, but is still reported as a
		// deletion so the caller omits the key from new writes rather
		// than re-asserting its absence.
		return TaggedValue{}, true, nil
	default:
		v, err := combineAddWithValue(current, present, t)
		if err != nil {
			return TaggedValue{}, false, err
		}
		return v, false, nil
	}
}

func combineAddWithValue(current TaggedValue, present bool, add Transform) (TaggedValue, error) {
	switch add.Kind {
	case TAddI64:
		var base uint64
		if present {
			if current.Tag != TagUint64 {
				return TaggedValue{}, fmt.Errorf("add_i64 against tag %v: %w", current.Tag, gserr.TypeMismatch)
			}
			base = binary.BigEndian.Uint64(current.Bytes)
		}
		sum, ok := addI64ToU64(base, add.AddI64)
		if !ok {
			return TaggedValue{}, fmt.Errorf("add_i64(%d) onto %d: %w", add.AddI64, base, gserr.Overflow)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, sum)
		return TaggedValue{Tag: TagUint64, Bytes: buf}, nil

	case TAddU64, TAddU128, TAddU256, TAddU512:
		width := widthForAddKind(add.Kind)
		tag := tagForAddKind(add.Kind)
		base := make([]byte, width)
		if present {
			if current.Tag != tag {
				return TaggedValue{}, fmt.Errorf("add against tag %v, want %v: %w", current.Tag, tag, gserr.TypeMismatch)
			}
			base = current.Bytes
		}
		sum, overflow := addBigEndianChecked(base, add.AddWide)
		if overflow {
			return TaggedValue{}, fmt.Errorf("add overflowed %d-byte width: %w", width, gserr.Overflow)
		}
		return TaggedValue{Tag: tag, Bytes: sum}, nil

	case TAddNamedKeys:
		var entries []NamedKeyEntry
		if present {
			if current.Tag != TagNamedKeys {
				return TaggedValue{}, fmt.Errorf("add_named_keys against tag %v: %w", current.Tag, gserr.TypeMismatch)
			}
			parsed, err := decodeNamedKeys(current.Bytes)
			if err != nil {
				return TaggedValue{}, err
			}
			entries = parsed
		}
		merged := mergeNamedKeys(entries, add.NamedKeys)
		return TaggedValue{Tag: TagNamedKeys, Bytes: encodeNamedKeys(merged)}, nil

	default:
		return TaggedValue{}, fmt.Errorf("not an add transform: %v: %w", add.Kind, gserr.Formatting)
	}
}

func combineAddAdd(t1, t2 Transform) (Transform, error) {
	switch t1.Kind {
	case TAddI64:
		sum, ok := checkedAddInt64(t1.AddI64, t2.AddI64)
		if !ok {
			return Transform{}, fmt.Errorf("add_i64(%d)+add_i64(%d): %w", t1.AddI64, t2.AddI64, gserr.Overflow)
		}
		return Transform{Kind: TAddI64, AddI64: sum}, nil
	case TAddU64, TAddU128, TAddU256, TAddU512:
		sum, overflow := addBigEndianChecked(t1.AddWide, t2.AddWide)
		if overflow {
			return Transform{}, fmt.Errorf("accumulating add deltas: %w", gserr.Overflow)
		}
		return Transform{Kind: t1.Kind, AddWide: sum}, nil
	case TAddNamedKeys:
		return Transform{Kind: TAddNamedKeys, NamedKeys: mergeNamedKeys(t1.NamedKeys, t2.NamedKeys)}, nil
	default:
		return Transform{}, errors.New("combineAddAdd: not an add transform")
	}
}

// --- fixed-width arithmetic helpers; deliberately not math/big so that
// digests never depend on a bignum library's internal representation. ---

func addI64ToU64(base uint64, delta int64) (uint64, bool) {
	if delta >= 0 {
		sum := base + uint64(delta)
		return sum, sum >= base // false on wraparound
	}
	var negAbs uint64
	if delta == -9223372036854775808 { // math.MinInt64, avoided to dodge an import just for one constant
		negAbs = 9223372036854775808
	} else {
		negAbs = uint64(-delta)
	}
	if negAbs > base {
		return 0, false
	}
	return base - negAbs, true
}

func checkedAddInt64(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// addBigEndianChecked adds two equal-length big-endian byte strings,
// returning the sum (same length) and whether it overflowed that width.
func addBigEndianChecked(a, b []byte) ([]byte, bool) {
	if len(a) != len(b) {
		return nil, true
	}
	out := make([]byte, len(a))
	carry := uint16(0)
	for i := len(a) - 1; i >= 0; i-- {
		sum := uint16(a[i]) + uint16(b[i]) + carry
		out[i] = byte(sum)
		carry = sum >> 8
	}
	return out, carry != 0
}

// --- named-key map encoding: a canonical, name-sorted list, the same
// "sorted and unique" discipline Carmen's state.Update.Check enforces
// over its own append-only update lists. ---

func encodeNamedKeys(entries []NamedKeyEntry) []byte {
	w := encoding.NewWriter()
	w.WriteUint32(uint32(len(entries)))
	for _, e := range entries {
		w.WriteBytes([]byte(e.Name))
		w.WriteBytes(e.Key)
	}
	return w.Bytes()
}

func decodeNamedKeys(data []byte) ([]NamedKeyEntry, error) {
	r := encoding.NewReader(data)
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	entries := make([]NamedKeyEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		name, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		key, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		entries = append(entries, NamedKeyEntry{Name: string(name), Key: key})
	}
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return entries, nil
}

// mergeNamedKeys folds incoming entries into existing ones, later entries
// overwriting earlier ones by name, and returns a canonical name-sorted
// slice so that encodeNamedKeys is deterministic regardless of insertion
// order.
func mergeNamedKeys(existing, incoming []NamedKeyEntry) []NamedKeyEntry {
	byName := make(map[string][]byte, len(existing)+len(incoming))
	order := make([]string, 0, len(existing)+len(incoming))
	add := func(e NamedKeyEntry) {
		if _, ok := byName[e.Name]; !ok {
			order = append(order, e.Name)
		}
		byName[e.Name] = e.Key
	}
	for _, e := range existing {
		add(e)
	}
	for _, e := range incoming {
		add(e)
	}
	sort.Strings(order)
	out := make([]NamedKeyEntry, 0, len(order))
	for _, name := range order {
		out = append(out, NamedKeyEntry{Name: name, Key: byName[name]})
	}
	return out
}
