package embedding

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// fakeProvider fails a configurable number of times before succeeding.
type fakeProvider struct {
	failures int
	failWith error
	calls    int
}

func (f *fakeProvider) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.failWith
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.failWith
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1, 0}
	}
	return out, nil
}

func (f *fakeProvider) Dimensions() int              { return 3 }
func (f *fakeProvider) ModelName() string            { return "fake-model" }
func (f *fakeProvider) Ping(_ context.Context) error { return nil }
func (f *fakeProvider) Close() error                 { return nil }

// fastConfig keeps test retries near-instant and disables rate limiting.
func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialInterval:   time.Millisecond,
		MaxInterval:       2 * time.Millisecond,
		RequestsPerSecond: -1,
	}
}

func TestRetryingService_TransientFailuresAreRetried(t *testing.T) {
	fake := &fakeProvider{
		failures: 2,
		failWith: fmt.Errorf("%w: status 503", domain.ErrProviderTransient),
	}
	svc := NewRetryingService(fake, fastConfig())

	vec, err := svc.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)
	assert.Equal(t, 3, fake.calls, "two failures plus the success")
}

func TestRetryingService_PermanentFailureNotRetried(t *testing.T) {
	fake := &fakeProvider{
		failures: 10,
		failWith: fmt.Errorf("%w: status 401", domain.ErrProviderPermanent),
	}
	svc := NewRetryingService(fake, fastConfig())

	_, err := svc.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderPermanent)
	assert.Equal(t, 1, fake.calls, "permanent errors must fail fast")
}

func TestRetryingService_ExhaustedRetriesReturnLastError(t *testing.T) {
	fake := &fakeProvider{
		failures: 10,
		failWith: fmt.Errorf("%w: status 429", domain.ErrProviderTransient),
	}
	svc := NewRetryingService(fake, fastConfig())

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderTransient)
	assert.Equal(t, 4, fake.calls, "initial attempt plus MaxRetries")
}

func TestRetryingService_BatchSuccessIsComplete(t *testing.T) {
	fake := &fakeProvider{
		failures: 1,
		failWith: fmt.Errorf("%w: flaky", domain.ErrProviderTransient),
	}
	svc := NewRetryingService(fake, fastConfig())

	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 3)
	}
}

func TestRetryingService_ContextCancellationStopsRetry(t *testing.T) {
	fake := &fakeProvider{
		failures: 100,
		failWith: fmt.Errorf("%w: down", domain.ErrProviderTransient),
	}
	cfg := fastConfig()
	cfg.MaxRetries = 100
	cfg.InitialInterval = 50 * time.Millisecond
	svc := NewRetryingService(fake, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Embed(ctx, "hello")
	require.Error(t, err)
	assert.Less(t, fake.calls, 100)
}

func TestRetryingService_DelegatesMetadata(t *testing.T) {
	fake := &fakeProvider{}
	svc := NewRetryingService(fake, fastConfig())

	assert.Equal(t, 3, svc.Dimensions())
	assert.Equal(t, "fake-model", svc.ModelName())
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}
