package weather

import (
	"context"
	"errors"
	"time"
)

// ErrTransport marks a failure to reach the data source at all, as opposed to
// a packet with missing fields (which is data, not an error).
var ErrTransport = errors.New("transport fault")

// Source abstracts a measurement data source.
//
// Retrieve blocks until a packet is available or ctx ends. Absent fields are
// never reported as errors.
type Source interface {
	Name() string
	Retrieve(ctx context.Context, location string) (InfoPacket, error)
}

// Snapshot is a packet that was published for a location at a point in time.
type Snapshot struct {
	Location  string     `json:"location"`
	Timestamp time.Time  `json:"timestamp"` // always UTC
	Packet    InfoPacket `json:"packet"`
}

// Store is the contract the in-memory history store must satisfy.
type Store interface {
	SaveSnapshot(snapshot Snapshot)
	GetLatest(location string) (Snapshot, error)
	GetRange(location string, from, to time.Time) ([]Snapshot, error)
}
