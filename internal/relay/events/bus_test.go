package events

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/gookit/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSlog() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestDeviceEventBus_PublishDeviceRegistered(t *testing.T) {
	bus := NewDeviceEventBus(testSlog())

	var received *DeviceRegisteredEvent
	listener := event.ListenerFunc(func(e event.Event) error {
		payload := e.Get("payload")
		if reg, ok := payload.(DeviceRegisteredEvent); ok {
			received = &reg
		}
		return nil
	})

	bus.SubscribeToDeviceRegistered(listener)

	err := bus.PublishDeviceRegistered("dev-001", "10.10.0.2", "pubkey")
	require.NoError(t, err)
	require.NotNil(t, received)
	assert.Equal(t, "dev-001", received.Serial)
	assert.Equal(t, "10.10.0.2", received.Address)
	assert.Equal(t, "pubkey", received.PublicKey)
	assert.WithinDuration(t, time.Now(), received.Timestamp, time.Second)
}

func TestDeviceEventBus_PublishDeviceDeregistered(t *testing.T) {
	bus := NewDeviceEventBus(testSlog())

	var received *DeviceDeregisteredEvent
	listener := event.ListenerFunc(func(e event.Event) error {
		payload := e.Get("payload")
		if dereg, ok := payload.(DeviceDeregisteredEvent); ok {
			received = &dereg
		}
		return nil
	})

	bus.SubscribeToDeviceDeregistered(listener)

	err := bus.PublishDeviceDeregistered("dev-001", "10.10.0.2", "peer removal failed")
	require.NoError(t, err)
	require.NotNil(t, received)
	assert.Equal(t, "dev-001", received.Serial)
	assert.Equal(t, "peer removal failed", received.Warning)
}

func TestDeviceEventBus_PublishRegistrationFailed(t *testing.T) {
	bus := NewDeviceEventBus(testSlog())

	var received *RegistrationFailedEvent
	listener := event.ListenerFunc(func(e event.Event) error {
		payload := e.Get("payload")
		if fail, ok := payload.(RegistrationFailedEvent); ok {
			received = &fail
		}
		return nil
	})

	bus.SubscribeToRegistrationFailed(listener)

	err := bus.PublishRegistrationFailed("dev-001", "subnet_exhausted", "subnet has no available addresses")
	require.NoError(t, err)
	require.NotNil(t, received)
	assert.Equal(t, "subnet_exhausted", received.Code)
	assert.Equal(t, "subnet has no available addresses", received.Reason)
}

func TestDeviceEventBus_PublishInterfaceReconciled(t *testing.T) {
	bus := NewDeviceEventBus(testSlog())

	var received *InterfaceReconciledEvent
	listener := event.ListenerFunc(func(e event.Event) error {
		payload := e.Get("payload")
		if rec, ok := payload.(InterfaceReconciledEvent); ok {
			received = &rec
		}
		return nil
	})

	bus.SubscribeToInterfaceReconciled(listener)

	err := bus.PublishInterfaceReconciled(2, 1)
	require.NoError(t, err)
	require.NotNil(t, received)
	assert.Equal(t, 2, received.PeersAdded)
	assert.Equal(t, 1, received.PeersRemoved)
}

func TestExtractPayload(t *testing.T) {
	e := &event.BasicEvent{}
	e.SetName("test")
	e.SetData(event.M{
		"payload": DeviceRegisteredEvent{
			Serial:    "dev-001",
			Address:   "10.10.0.2",
			Timestamp: time.Now(),
		},
	})

	payload, err := ExtractPayload[DeviceRegisteredEvent](e)
	require.NoError(t, err)
	assert.Equal(t, "dev-001", payload.Serial)

	_, err = ExtractPayload[InterfaceReconciledEvent](e)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "payload type mismatch")
}

func TestCloseDropsSubscriptions(t *testing.T) {
	bus := NewDeviceEventBus(testSlog())

	fired := 0
	bus.SubscribeToDeviceRegistered(event.ListenerFunc(func(e event.Event) error {
		fired++
		return nil
	}))

	require.NoError(t, bus.PublishDeviceRegistered("dev-001", "10.10.0.2", "pubkey"))
	assert.Equal(t, 1, fired)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.PublishDeviceRegistered("dev-002", "10.10.0.3", "pubkey2"))
	assert.Equal(t, 1, fired)
}
