package events

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gookit/event"
)

// payloadKey is the event data key the typed payload travels under.
const payloadKey = "payload"

// DeviceEventBus fans device lifecycle events out to in-process
// subscribers. Listeners run synchronously on the publishing goroutine,
// so subscribers must stay cheap.
type DeviceEventBus struct {
	bus    *event.Manager
	logger *slog.Logger
}

// NewDeviceEventBus creates the bus all relay components publish through
func NewDeviceEventBus(logger *slog.Logger) *DeviceEventBus {
	return &DeviceEventBus{
		bus:    event.NewManager("relay"),
		logger: logger,
	}
}

// fire publishes one named event with its typed payload and logs the
// attempt. A listener error surfaces to the publisher wrapped with the
// event name.
func (eb *DeviceEventBus) fire(name string, payload any, attrs ...any) error {
	eb.logger.Debug("publishing "+name, attrs...)

	err, _ := eb.bus.Fire(name, event.M{payloadKey: payload})
	if err != nil {
		eb.logger.Error("publishing "+name+" failed",
			append(attrs, slog.String("error", err.Error()))...)
		return fmt.Errorf("publish %s: %w", name, err)
	}
	return nil
}

// PublishDeviceRegistered announces that a device holds an address and a
// live peer entry.
func (eb *DeviceEventBus) PublishDeviceRegistered(serial, address, publicKey string) error {
	return eb.fire(EventDeviceRegistered, DeviceRegisteredEvent{
		Serial:    serial,
		Address:   address,
		PublicKey: publicKey,
		Timestamp: time.Now(),
	}, slog.String("serial", serial), slog.String("address", address))
}

// PublishDeviceDeregistered announces that a device record was deleted.
// Warning is non-empty when the peer could not be removed first.
func (eb *DeviceEventBus) PublishDeviceDeregistered(serial, address, warning string) error {
	return eb.fire(EventDeviceDeregistered, DeviceDeregisteredEvent{
		Serial:    serial,
		Address:   address,
		Warning:   warning,
		Timestamp: time.Now(),
	}, slog.String("serial", serial), slog.String("address", address))
}

// PublishRegistrationFailed announces a registration that did not produce
// a device record, with the error code that stopped it.
func (eb *DeviceEventBus) PublishRegistrationFailed(serial, code, reason string) error {
	return eb.fire(EventRegistrationFailed, RegistrationFailedEvent{
		Serial:    serial,
		Code:      code,
		Reason:    reason,
		Timestamp: time.Now(),
	}, slog.String("serial", serial), slog.String("code", code))
}

// PublishInterfaceReconciled announces the outcome of a reconcile pass.
func (eb *DeviceEventBus) PublishInterfaceReconciled(peersAdded, peersRemoved int) error {
	return eb.fire(EventInterfaceReconciled, InterfaceReconciledEvent{
		PeersAdded:   peersAdded,
		PeersRemoved: peersRemoved,
		Timestamp:    time.Now(),
	}, slog.Int("peers_added", peersAdded), slog.Int("peers_removed", peersRemoved))
}

// SubscribeToDeviceRegistered subscribes to device registered events
func (eb *DeviceEventBus) SubscribeToDeviceRegistered(listener event.Listener) {
	eb.bus.On(EventDeviceRegistered, listener, event.Normal)
}

// SubscribeToDeviceDeregistered subscribes to device deregistered events
func (eb *DeviceEventBus) SubscribeToDeviceDeregistered(listener event.Listener) {
	eb.bus.On(EventDeviceDeregistered, listener, event.Normal)
}

// SubscribeToRegistrationFailed subscribes to registration failed events
func (eb *DeviceEventBus) SubscribeToRegistrationFailed(listener event.Listener) {
	eb.bus.On(EventRegistrationFailed, listener, event.Normal)
}

// SubscribeToInterfaceReconciled subscribes to reconciliation events
func (eb *DeviceEventBus) SubscribeToInterfaceReconciled(listener event.Listener) {
	eb.bus.On(EventInterfaceReconciled, listener, event.Normal)
}

// Close drops all subscriptions. Publishing after Close is a no-op.
func (eb *DeviceEventBus) Close() error {
	eb.logger.Debug("closing device event bus")
	eb.bus.Clear()
	return nil
}

// ExtractPayload recovers the typed payload a subscriber was delivered.
func ExtractPayload[T any](e event.Event) (T, error) {
	var zero T

	raw := e.Get(payloadKey)
	if raw == nil {
		return zero, fmt.Errorf("event %q carries no payload", e.Name())
	}

	typed, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("payload type mismatch: event %q carries %T, want %T", e.Name(), raw, zero)
	}
	return typed, nil
}
