package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estateai/property-analysis-service/internal/domain"
	"github.com/estateai/property-analysis-service/internal/selector"
	"github.com/estateai/property-analysis-service/internal/transport"
)

func TestEngine_ExactlyOnceCompletion(t *testing.T) {
	r := newRig(t, selector.NewStatic([]string{"condo", "townhouse"}), 30*time.Second)
	ctx := context.Background()

	correlationID, err := r.dispatcher.Dispatch(ctx, "q", testOriginator)
	require.NoError(t, err)
	r.drainWorkerRequests(t, "condo", "townhouse")

	r.reply(correlationID, "condo", "C")
	r.receive(t, testWorkers["condo"])
	r.reply(correlationID, "townhouse", "T")
	r.receive(t, testWorkers["townhouse"])

	result := r.receive(t, testOriginator)
	require.Equal(t, transport.KindResult, result.Kind)
	r.receive(t, testOriginator) // close

	// Redelivering any reply afterward is a no-op: no second result,
	// only a close back to the peer.
	r.reply(correlationID, "condo", "C")
	require.Equal(t, transport.KindClose, r.receive(t, testWorkers["condo"]).Kind)

	recvCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = r.bus.Receive(recvCtx, testOriginator)
	assert.Error(t, err, "no second aggregated output may be delivered")
	assert.Equal(t, 0, r.store.Len())
}

func TestEngine_ConcurrentDisjointRepliesNoLostUpdate(t *testing.T) {
	keys := []string{"single_family", "multi_family", "condo", "townhouse"}
	r := newRig(t, selector.NewStatic(keys), 30*time.Second)
	ctx := context.Background()

	correlationID, err := r.dispatcher.Dispatch(ctx, "q", testOriginator)
	require.NoError(t, err)
	r.drainWorkerRequests(t, keys...)

	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			r.reply(correlationID, key, "payload-"+key)
		}(key)
	}
	wg.Wait()

	// Drain the per-worker close signals.
	for _, key := range keys {
		r.receive(t, testWorkers[key])
	}

	result := r.receive(t, testOriginator)
	require.Equal(t, transport.KindResult, result.Kind)
	for _, key := range keys {
		assert.Contains(t, result.Payload, "payload-"+key)
	}
	assert.Equal(t, 0, r.store.Len())
	assert.Equal(t, 0, r.engine.LockCount())
}

func TestEngine_UnknownCorrelationIDIsInert(t *testing.T) {
	r := newRig(t, selector.NewStatic([]string{"condo"}), 30*time.Second)

	r.reply("no-such-id", "condo", "payload")

	// Only a close signal to the sender; no record touched.
	env := r.receive(t, testWorkers["condo"])
	assert.Equal(t, transport.KindClose, env.Kind)
	assert.Equal(t, "no-such-id", env.CorrelationID)
	assert.Equal(t, 0, r.store.Len())
}

func TestEngine_UnexpectedWorkerKeyIsInert(t *testing.T) {
	r := newRig(t, selector.NewStatic([]string{"condo", "townhouse"}), 30*time.Second)
	ctx := context.Background()

	correlationID, err := r.dispatcher.Dispatch(ctx, "q", testOriginator)
	require.NoError(t, err)
	r.drainWorkerRequests(t, "condo", "townhouse")

	r.reply(correlationID, "single_family", "uninvited")
	require.Equal(t, transport.KindClose, r.receive(t, testWorkers["single_family"]).Kind)

	req, err := r.store.Get(ctx, correlationID)
	require.NoError(t, err)
	assert.Empty(t, req.Received, "unexpected key must not be stored")
	assert.Equal(t, domain.StatusOpen, req.Status)
}

func TestEngine_DuplicateReplyLastWriteWins(t *testing.T) {
	r := newRig(t, selector.NewStatic([]string{"condo", "townhouse"}), 30*time.Second)
	ctx := context.Background()

	correlationID, err := r.dispatcher.Dispatch(ctx, "q", testOriginator)
	require.NoError(t, err)
	r.drainWorkerRequests(t, "condo", "townhouse")

	r.reply(correlationID, "condo", "first")
	r.receive(t, testWorkers["condo"])
	r.reply(correlationID, "condo", "second")
	r.receive(t, testWorkers["condo"])

	req, err := r.store.Get(ctx, correlationID)
	require.NoError(t, err)
	assert.Equal(t, "second", req.Received["condo"])
	assert.Equal(t, domain.StatusOpen, req.Status, "duplicate must not complete the request")
}

func TestEngine_IgnoresNonResultEnvelopes(t *testing.T) {
	r := newRig(t, selector.NewStatic([]string{"condo"}), 30*time.Second)
	ctx := context.Background()

	correlationID, err := r.dispatcher.Dispatch(ctx, "q", testOriginator)
	require.NoError(t, err)
	r.drainWorkerRequests(t, "condo")

	r.engine.HandleEnvelope(ctx, transport.NewCloseEnvelope(correlationID))
	r.engine.HandleEnvelope(ctx, transport.NewRequestEnvelope(correlationID, "condo", "q", testReplyAddress))

	req, err := r.store.Get(ctx, correlationID)
	require.NoError(t, err)
	assert.Empty(t, req.Received)
}

func TestEngine_ReplySweepRaceCompletesExactlyOnce(t *testing.T) {
	// Run the race many times: a reply that achieves full coverage
	// arrives while the sweeper fires for the same expired id. Exactly
	// one aggregated output must come out every time.
	for i := 0; i < 50; i++ {
		t.Run(fmt.Sprintf("round_%d", i), func(t *testing.T) {
			r := newRig(t, selector.NewStatic([]string{"condo"}), time.Second)
			ctx := context.Background()

			correlationID, err := r.dispatcher.Dispatch(ctx, "q", testOriginator)
			require.NoError(t, err)
			r.drainWorkerRequests(t, "condo")
			r.backdate(t, correlationID, time.Minute)

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				r.reply(correlationID, "condo", "C")
			}()
			go func() {
				defer wg.Done()
				r.sweeper.Sweep(ctx)
			}()
			wg.Wait()

			// Exactly one result envelope, then its close.
			result := r.receive(t, testOriginator)
			require.Equal(t, transport.KindResult, result.Kind)
			require.Equal(t, transport.KindClose, r.receive(t, testOriginator).Kind)

			recvCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			_, err = r.bus.Receive(recvCtx, testOriginator)
			cancel()
			require.Error(t, err, "second terminal transition must not happen")
			require.Equal(t, 0, r.store.Len())
		})
	}
}
