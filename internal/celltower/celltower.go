// Package celltower implements the packed cell-tower identifier and the
// read-only cell-tower → coarse-location map (spec §4.5), loaded once at
// startup and shared freely afterwards.
package celltower

import (
	"bufio"
	"encoding/gob"
	"io"
	"os"

	"github.com/zidek-labs/bellrock/internal/model"
)

// Pack combines the four cell identity fields into the persisted 64-bit
// big-endian layout: MCC(10) | MNC(10) | LAC(16) | CID(28).
func Pack(mcc, mnc uint16, lac uint16, cid uint32) model.CellTowerID {
	var packed uint64
	packed = uint64(mcc & 0x3FF)
	packed <<= 10
	packed += uint64(mnc & 0x3FF)
	packed <<= 16
	packed += uint64(lac)
	packed <<= 28
	packed += uint64(cid & 0x0FFFFFFF)
	return model.CellTowerID(packed)
}

// Unpack splits a packed identifier back into its four fields.
func Unpack(packed model.CellTowerID) (mcc, mnc uint16, lac uint16, cid uint32) {
	p := uint64(packed)
	cid = uint32(p & 0x0FFFFFFF)
	p >>= 28
	lac = uint16(p & 0xFFFF)
	p >>= 16
	mnc = uint16(p & 0x3FF)
	p >>= 10
	mcc = uint16(p & 0x3FF)
	return
}

// entry is the on-disk record used by the snapshot loader.
type entry struct {
	Packed model.CellTowerID
	Loc    model.CoarseLocation
}

// Map is the immutable, read-only cell-tower -> coarse-location lookup.
// Safe for concurrent reads once loaded; never mutated afterwards.
type Map struct {
	byID map[model.CellTowerID]model.CoarseLocation
}

// NewEmpty returns a map with no entries, useful for tests and for servers
// that run without a cell-tower snapshot.
func NewEmpty() *Map {
	return &Map{byID: make(map[model.CellTowerID]model.CoarseLocation)}
}

// Get returns the coarse location for a packed cell identifier, if known.
func (m *Map) Get(packed model.CellTowerID) (model.CoarseLocation, bool) {
	loc, ok := m.byID[packed]
	return loc, ok
}

// Len reports the number of entries currently loaded.
func (m *Map) Len() int { return len(m.byID) }

// FilterByCountry performs a linear scan for every cell tower whose MCC
// matches, mirroring the original's single-pass filter (no secondary MCC
// index is built, the original doesn't build one either).
func (m *Map) FilterByCountry(mcc uint16) []model.CellTowerID {
	out := make([]model.CellTowerID, 0)
	for packed := range m.byID {
		gotMCC, _, _, _ := Unpack(packed)
		if gotMCC == mcc {
			out = append(out, packed)
		}
	}
	return out
}

// Load reads a gob-encoded snapshot of the whole map from path. The
// snapshot format mirrors the original's whole-map deserialization at
// startup; gob is the ecosystem-standard Go analogue of Java's native
// object serialization used there, since no serialization library appears
// in the retrieved pack now that protobuf has been dropped (see DESIGN.md).
func Load(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(bufio.NewReader(f))
}

// Decode reads a gob-encoded stream of entries into a Map.
func Decode(r io.Reader) (*Map, error) {
	dec := gob.NewDecoder(r)
	m := NewEmpty()
	for {
		var e entry
		err := dec.Decode(&e)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		m.byID[e.Packed] = e.Loc
	}
	return m, nil
}

// Encode writes the map as a gob-encoded stream, one entry at a time. Used
// by the offline preprocessor (out of core scope) and by tests building
// fixtures.
func Encode(w io.Writer, m *Map) error {
	enc := gob.NewEncoder(w)
	for packed, loc := range m.byID {
		if err := enc.Encode(entry{Packed: packed, Loc: loc}); err != nil {
			return err
		}
	}
	return nil
}

// Put inserts or overwrites a single entry. Exposed for fixture construction
// and for an operator-triggered reload of a subset; the core resolver never
// calls it.
func (m *Map) Put(packed model.CellTowerID, loc model.CoarseLocation) {
	m.byID[packed] = loc
}
