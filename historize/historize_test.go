package historize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	records []Record
	pubErr  error
	closed  bool
}

func (f *fakeSink) Publish(ctx context.Context, rec Record) error {
	if f.pubErr != nil {
		return f.pubErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func TestFanOutPublishesToAllSinks(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{}
	fo := FanOut{Sinks: []Sink{a, b}}

	rec := Record{PLC: "line1", Tag: "Speed", Type: "DINT", Value: int32(7)}
	require.NoError(t, fo.Publish(context.Background(), rec))
	require.Len(t, a.records, 1)
	require.Len(t, b.records, 1)
	require.Equal(t, rec, a.records[0])
}

func TestFanOutContinuesPastOneFailingSink(t *testing.T) {
	failing := &fakeSink{pubErr: errors.New("broker unreachable")}
	ok := &fakeSink{}
	fo := FanOut{Sinks: []Sink{failing, ok}}

	err := fo.Publish(context.Background(), Record{PLC: "line1", Tag: "Speed"})
	require.Error(t, err, "expected the first sink's error to surface")
	require.Len(t, ok.records, 1, "expected the second sink to still receive the record")
}

func TestFanOutClosesAllSinks(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{}
	fo := FanOut{Sinks: []Sink{a, b}}
	require.NoError(t, fo.Close())
	require.True(t, a.closed)
	require.True(t, b.closed)
}
