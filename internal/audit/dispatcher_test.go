package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

// blockingSink parks inside Emit until released, so tests can hold the
// dispatcher's worker busy and fill the buffer behind it.
type blockingSink struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, Event) {
	s.started <- struct{}{}
	<-s.release
}

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8, Logger: zerolog.Nop()}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: "login_success", AccountID: "acct-1"})

	select {
	case got := <-sink.Events():
		assert.Equal(t, "login_success", got.EventType)
		assert.Equal(t, "acct-1", got.AccountID)
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the sink")
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NewChannelSink(1))
	require.Nil(t, d)

	// All operations on a nil dispatcher are safe no-ops.
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	assert.Zero(t, d.Dropped())
}

func TestDropIfFullCountsDrops(t *testing.T) {
	sink := &blockingSink{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true, Logger: zerolog.Nop()}, sink)

	// First event occupies the worker, second fills the buffer, third has
	// nowhere to go.
	d.Emit(context.Background(), Event{EventType: "one"})
	<-sink.started
	d.Emit(context.Background(), Event{EventType: "two"})
	d.Emit(context.Background(), Event{EventType: "three"})

	assert.Equal(t, uint64(1), d.Dropped())

	close(sink.release)
	d.Close()
}

func TestShedWarningNamesTheEvent(t *testing.T) {
	var logBuf bytes.Buffer
	logger := zerolog.New(&logBuf)

	sink := &blockingSink{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true, Logger: logger}, sink)

	d.Emit(context.Background(), Event{EventType: "scan_recorded", DeviceID: "dev-9"})
	<-sink.started
	d.Emit(context.Background(), Event{EventType: "scan_recorded", DeviceID: "dev-9"})
	d.Emit(context.Background(), Event{EventType: "queue_enqueued", DeviceID: "dev-9"})

	// The first shed event is logged with its type and device.
	assert.Contains(t, logBuf.String(), "queue_enqueued")
	assert.Contains(t, logBuf.String(), "dev-9")
	assert.Equal(t, 1, strings.Count(logBuf.String(), "shedding"))

	close(sink.release)
	d.Close()
}

func TestCloseDrainsBufferedEvents(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64, Logger: zerolog.Nop()}, sink)

	const n = 20
	for i := 0; i < n; i++ {
		d.Emit(context.Background(), Event{EventType: "tick"})
	}
	d.Close()

	assert.Equal(t, int64(n), sink.count.Load())

	// Emitting after close is a no-op.
	d.Emit(context.Background(), Event{EventType: "late"})
	assert.Equal(t, int64(n), sink.count.Load())
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		EventType: "scan_recorded",
		Resource:  "product:sku-1",
		Success:   true,
		Metadata:  map[string]string{"stock": "2"},
	})

	var got Event
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "scan_recorded", got.EventType)
	assert.Equal(t, "2", got.Metadata["stock"])
	assert.True(t, got.Success)
}

func TestJSONWriterSinkNilWriter(t *testing.T) {
	sink := NewJSONWriterSink(nil)
	sink.Emit(context.Background(), Event{EventType: "x"})
}
