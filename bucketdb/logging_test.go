package bucketdb

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LokeshJonnakuti/vespa"
	"github.com/LokeshJonnakuti/vespa/blobstore"
	"github.com/LokeshJonnakuti/vespa/bucket"
)

// recordingHandler captures log records for assertions.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.records))
	for i, r := range h.records {
		out[i] = r.Message
	}
	return out
}

func TestDBLogsLifecycleEvents(t *testing.T) {
	handler := &recordingHandler{}
	db := mustDB(t, WithLogger(vespa.NewLogger(handler).Logger))

	id := bucket.MustNew(16, 0xB57B)
	require.NoError(t, db.Update(id, Info{Documents: 1}))
	require.NoError(t, db.Update(id, Info{Documents: 2}))
	db.Remove(id)

	store := blobstore.NewMemoryStore()
	require.NoError(t, db.WriteSnapshot(context.Background(), store, "snap", CompressionNone))

	msgs := handler.messages()
	assert.Contains(t, msgs, "bucket created")
	assert.Contains(t, msgs, "bucket removed")
	assert.Contains(t, msgs, "snapshot written")

	// Replacing an existing bucket is not a creation event.
	created := 0
	for _, m := range msgs {
		if m == "bucket created" {
			created++
		}
	}
	assert.Equal(t, 1, created)
}
