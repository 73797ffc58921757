// Package model defines the domain entities shared by the store, the
// codec, the candidate builder and the resolver.
package model

import (
	"math"
	"time"
)

// UIDLen is the fixed length of a device's persistent identifier.
const UIDLen = 8

// KeyLen is the fixed length of a device's symmetric key.
const KeyLen = 16

// AIDLen is the fixed length of an anonymous token broadcast by a device.
const AIDLen = 16

// UID is a device's persistent, immutable identifier.
type UID [UIDLen]byte

// IsZero reports whether u is the zero UID (used as a "no resolution" sentinel).
func (u UID) IsZero() bool { return u == UID{} }

// Key is the symmetric key used to anonymize and trial-decrypt a UID's AIDs.
type Key [KeyLen]byte

// AID is the opaque token a device broadcasts instead of its UID.
type AID [AIDLen]byte

// CoarseLocation is a (lat, lon) pair rounded to roughly 10 m, the quantum
// used for co-location matching.
type CoarseLocation struct {
	Lat float32
	Lon float32
}

// PreciseLocation is a full-precision (lat, lon) pair as reported by a client.
type PreciseLocation struct {
	Lat float64
	Lon float64
}

// coarseScale sets the coarse grid to 1e-4 degrees, about 11 m of latitude.
const coarseScale = 1e4

// ToCoarse downsamples a precise location to the coarse grid used by the store.
func (p PreciseLocation) ToCoarse() CoarseLocation {
	return CoarseLocation{
		Lat: float32(math.Round(p.Lat*coarseScale) / coarseScale),
		Lon: float32(math.Round(p.Lon*coarseScale) / coarseScale),
	}
}

// CellTowerID is the packed 64-bit identifier: MCC(10) | MNC(10) | LAC(16) | CID(28).
type CellTowerID uint64

// User is a registered device as seen by the store: just its identity.
// The key material lives in the segregated key store, not here.
type User struct {
	UID       UID
	CreatedAt time.Time
}

// Peer is one symmetric social edge between two devices.
type Peer struct {
	A UID
	B UID
}

// UserLocation is one interval during which a device was at a coarse location.
type UserLocation struct {
	UID       UID
	Start     time.Time
	End       time.Time
	Coarse    CoarseLocation
	CellTower CellTowerID
}

// OverlapsWith reports whether the receiver's [Start,End] interval intersects [s,e].
// Mirrors the original overlap test: two intervals fail to intersect only when
// one lies entirely before the other or entirely after it.
func (l UserLocation) OverlapsWith(s, e time.Time) bool {
	entirelyBefore := l.Start.Before(s) && l.End.Before(s)
	entirelyAfter := l.Start.After(e) && l.End.After(e)
	return !(entirelyBefore || entirelyAfter)
}

// Observation is one AID heard by an observer at a given time and place.
type Observation struct {
	Observer     UID
	AID          AID
	Time         time.Time
	Location     PreciseLocation
	LocationName string
	ResolvedUID  *UID
}

// Resolved reports whether this observation was attributed to a UID.
func (o Observation) Resolved() bool { return o.ResolvedUID != nil }

// Observations is one chronologically-sorted batch submitted by a single observer.
type Observations struct {
	Observer UID
	List     []Observation
}

// First returns the earliest observation in the batch, assuming chronological order.
func (o Observations) First() Observation { return o.List[0] }

// Last returns the latest observation in the batch, assuming chronological order.
func (o Observations) Last() Observation { return o.List[len(o.List)-1] }
