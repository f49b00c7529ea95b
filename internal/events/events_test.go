package events

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeEmitUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got []*Event
	id := bus.Subscribe(DatasetReloaded, func(e *Event) {
		got = append(got, e)
	})
	assert.Equal(t, 1, bus.SubscriberCount(DatasetReloaded))

	bus.Emit(DatasetReloaded, "dataset", map[string]interface{}{"records": 3})
	bus.Emit(DatasetReset, "dataset", nil)

	require.Len(t, got, 1)
	assert.Equal(t, DatasetReloaded, got[0].Type)
	assert.Equal(t, "dataset", got[0].Module)
	assert.Equal(t, 3, got[0].Data["records"])
	assert.False(t, got[0].Timestamp.IsZero())

	bus.Unsubscribe(id)
	assert.Zero(t, bus.SubscriberCount(DatasetReloaded))

	bus.Emit(DatasetReloaded, "dataset", nil)
	assert.Len(t, got, 1)
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	count := 0
	ids := bus.SubscribeAll(func(*Event) { count++ })
	assert.Len(t, ids, len(AllEventTypes))

	for _, et := range AllEventTypes {
		bus.Emit(et, "test", nil)
	}
	assert.Equal(t, len(AllEventTypes), count)

	bus.Unsubscribe(ids...)
	bus.Emit(SnapshotCreated, "test", nil)
	assert.Equal(t, len(AllEventTypes), count)
}

func TestBus_PanickingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	delivered := 0
	bus.Subscribe(ErrorOccurred, func(*Event) { panic("boom") })
	bus.Subscribe(ErrorOccurred, func(*Event) { delivered++ })

	assert.NotPanics(t, func() {
		bus.Emit(ErrorOccurred, "test", nil)
	})
	assert.Equal(t, 1, delivered)
}

func TestBus_ConcurrentEmit(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var mu sync.Mutex
	count := 0
	bus.Subscribe(MarketUpdated, func(*Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit(MarketUpdated, "market", nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, count)
}

func TestManager_EmitTyped(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())

	var received *Event
	bus.Subscribe(DatasetReloaded, func(e *Event) { received = e })

	manager.EmitTyped("dataset", &DatasetReloadedData{Records: 42, Persisted: 40, Source: "nyc-open-data"})

	require.NotNil(t, received)
	typed, ok := received.GetTypedData().(*DatasetReloadedData)
	require.True(t, ok)
	assert.Equal(t, 42, typed.Records)
	assert.Equal(t, 40, typed.Persisted)
	assert.Equal(t, "nyc-open-data", typed.Source)
}

func TestManager_EmitError(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())

	var received *Event
	bus.Subscribe(ErrorOccurred, func(e *Event) { received = e })

	manager.EmitError("snapshot", errors.New("upload failed"), map[string]interface{}{"bucket": "b"})
	require.NotNil(t, received)

	typed, ok := received.GetTypedData().(*ErrorEventData)
	require.True(t, ok)
	assert.Equal(t, "upload failed", typed.Error)
	assert.Equal(t, "b", typed.Context["bucket"])

	manager.EmitError("snapshot", nil, nil)
}

func TestManager_NilSafe(t *testing.T) {
	var manager *Manager
	assert.NotPanics(t, func() {
		manager.EmitTyped("dataset", &DatasetResetData{Cleared: 1})
	})
}

func TestGetTypedData_Unknown(t *testing.T) {
	e := &Event{Type: EventType("UNKNOWN"), Data: map[string]interface{}{"x": 1}}
	assert.Nil(t, e.GetTypedData())
	assert.Nil(t, (&Event{Type: DatasetReset}).GetTypedData())
}
