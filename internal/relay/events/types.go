// Package events defines the device lifecycle events the relay emits and the
// bus they travel over. Event names and payload shapes live here so
// publishers and subscribers cannot drift apart.
package events

import "time"

// Device Lifecycle Events
const (
	EventDeviceRegistered    = "device.registered"
	EventDeviceDeregistered  = "device.deregistered"
	EventRegistrationFailed  = "device.registration.failed"
	EventInterfaceReconciled = "interface.reconciled"
)

// DeviceRegisteredEvent fires after a device is persisted and its peer is
// live on the interface
type DeviceRegisteredEvent struct {
	Serial    string    `json:"serial"`
	Address   string    `json:"address"`
	PublicKey string    `json:"public_key"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceDeregisteredEvent fires after a device record is deleted. Warning
// carries the partial-removal reason when the live peer could not be dropped.
type DeviceDeregisteredEvent struct {
	Serial    string    `json:"serial"`
	Address   string    `json:"address"`
	Warning   string    `json:"warning,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RegistrationFailedEvent fires when a registration is rejected or rolled
// back. Code is the stable error code the caller saw.
type RegistrationFailedEvent struct {
	Serial    string    `json:"serial"`
	Code      string    `json:"code"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// InterfaceReconciledEvent fires after a reconciliation pass aligned the
// live peer table with the registry
type InterfaceReconciledEvent struct {
	PeersAdded   int       `json:"peers_added"`
	PeersRemoved int       `json:"peers_removed"`
	Timestamp    time.Time `json:"timestamp"`
}
