package event

import (
	"context"
	"errors"
	"testing"

	"github.com/fundme/meta"
	"gotest.tools/v3/assert"
)

type failingSink struct{ calls int }

func (f *failingSink) Publish(context.Context, meta.Event) error {
	f.calls++
	return errors.New("sink down")
}

func TestJournalFlush(t *testing.T) {
	j := NewJournal()
	j.Emit("fundme", meta.EventFunded, map[string]string{"amount": "1"})
	j.Emit("fundme", meta.EventWithdrawn, nil)

	rec := &Recorder{}
	flushed := j.Flush(context.Background(), rec)
	assert.Equal(t, len(flushed), 2)
	assert.Equal(t, len(rec.Events()), 2)
	assert.Equal(t, rec.Events()[0].Type, meta.EventFunded)
	assert.Assert(t, rec.Events()[0].ID != "")

	assert.Equal(t, len(j.Drain()), 0)
}

func TestJournalDiscard(t *testing.T) {
	j := NewJournal()
	j.Emit("fundme", meta.EventFunded, nil)
	j.Discard()

	rec := &Recorder{}
	assert.Equal(t, len(j.Flush(context.Background(), rec)), 0)
	assert.Equal(t, len(rec.Events()), 0)
}

func TestMultiPublishesToAll(t *testing.T) {
	bad := &failingSink{}
	rec := &Recorder{}
	m := Multi{bad, rec}

	err := m.Publish(context.Background(), NewEvent("fundme", meta.EventFunded, nil))
	assert.ErrorContains(t, err, "sink down")
	assert.Equal(t, bad.calls, 1)
	assert.Equal(t, len(rec.Events()), 1)
}

func TestFlushIgnoresSinkErrors(t *testing.T) {
	j := NewJournal()
	j.Emit("fundme", meta.EventFunded, nil)
	bad := &failingSink{}
	flushed := j.Flush(context.Background(), bad)
	assert.Equal(t, len(flushed), 1)
	assert.Equal(t, bad.calls, 1)
}
