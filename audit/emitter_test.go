package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	received []Event
	fail     bool
}

func (r *recordingSink) Write(ctx context.Context, ev Event) error {
	if r.fail {
		return assert.AnError
	}
	r.received = append(r.received, ev)
	return nil
}

func TestEmitterSanitizesBeforeWritingToSinks(t *testing.T) {
	sink := &recordingSink{}
	e := NewEmitter(nil, sink)

	e.Emit(context.Background(), Event{
		Flow:        "Authorize",
		ConnectorID: "stripe",
		Request:     map[string]any{"card_number": "4242424242424242"},
	})

	require.Len(t, sink.received, 1)
	assert.Equal(t, "4242********4242", sink.received[0].Request["card_number"])
}

func TestEmitterIgnoresNilSinks(t *testing.T) {
	e := NewEmitter(nil, nil, &recordingSink{})
	assert.Len(t, e.sinks, 1)
}

func TestEmitterContinuesAfterSinkFailure(t *testing.T) {
	failing := &recordingSink{fail: true}
	ok := &recordingSink{}
	e := NewEmitter(nil, failing, ok)

	e.Emit(context.Background(), Event{Flow: "Capture", ConnectorID: "iyzico"})
	assert.Len(t, ok.received, 1)
}
