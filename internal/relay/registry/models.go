package registry

import "time"

// Device is one registered edge device as persisted in the registry snapshot
type Device struct {
	Serial       string    `json:"serial"`
	PublicKey    string    `json:"public_key"`
	Address      string    `json:"address"`
	RegisteredAt time.Time `json:"registered_at"`
}

// snapshotVersion is bumped when the on-disk layout changes
const snapshotVersion = 1

// snapshot is the complete on-disk state. Devices is a slice rather than a
// map so listings replay in insertion order.
type snapshot struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Devices   []Device  `json:"devices"`
}

func newSnapshot() *snapshot {
	return &snapshot{
		Version: snapshotVersion,
		Devices: []Device{},
	}
}

// leased returns the addresses currently held by records in the snapshot
func (s *snapshot) leased() []string {
	addrs := make([]string, 0, len(s.Devices))
	for _, d := range s.Devices {
		addrs = append(addrs, d.Address)
	}
	return addrs
}

// find returns the index of the device with the given serial, or -1
func (s *snapshot) find(serial string) int {
	for i, d := range s.Devices {
		if d.Serial == serial {
			return i
		}
	}
	return -1
}

// findKey returns the index of the device holding the given public key, or -1
func (s *snapshot) findKey(publicKey string) int {
	for i, d := range s.Devices {
		if d.PublicKey == publicKey {
			return i
		}
	}
	return -1
}
