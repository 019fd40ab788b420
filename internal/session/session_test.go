package session

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robovis/overlay-renderer/internal/metrics"
	"github.com/robovis/overlay-renderer/pkg/types"
)

func TestHandleMetadataCountsConcurrently(t *testing.T) {
	m := metrics.New()
	srv := NewServer(nil, 4, m)

	var delivered atomic.Uint64
	srv.OnMetadata = func(types.MetadataFrame) { delivered.Add(1) }

	sess := &Session{id: "test"}
	good := []byte(`{"timestamp": 1, "frame_id": 1, "detections": []}`)
	bad := []byte(`{"detections": []}`)

	const workers = 8
	const perWorker = 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				srv.handleMetadata(sess, good)
				srv.handleMetadata(sess, bad)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(workers*perWorker), sess.framesReceived.Load())
	assert.Equal(t, uint64(workers*perWorker), sess.framesDropped.Load())
	assert.Equal(t, uint64(workers*perWorker), delivered.Load())
	assert.Equal(t, uint64(workers*perWorker), m.MetadataDropped.Load())
}

func TestRemoveSessionUnknownIDIsANoOp(t *testing.T) {
	srv := NewServer(nil, 4, metrics.New())

	fired := false
	srv.OnDisconnect = func(string) { fired = true }

	srv.RemoveSession("no-such-session")
	assert.False(t, fired)
	assert.Equal(t, 0, srv.Count())
}
