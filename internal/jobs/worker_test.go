package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/etvincen/boredapi/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockReembedder is a mock implementation of Reembedder
type MockReembedder struct {
	mock.Mock
}

func (m *MockReembedder) ReembedPending(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_KeepsRunningAfterErrors tests that a failing cycle does not stop the loop
func TestWorker_KeepsRunningAfterErrors(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("database down"))

	worker := NewWorker(mockProcessor, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)
	worker.Stop()
	wg.Wait()

	assert.GreaterOrEqual(t, len(mockProcessor.Calls), 2)
}

func TestWorker_RunsImmediately(t *testing.T) {
	called := make(chan struct{})
	var once sync.Once
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Run(func(mock.Arguments) {
		once.Do(func() { close(called) })
	}).Return(nil)

	worker := NewWorker(mockProcessor, time.Hour, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(context.Background())
	}()

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("first cycle did not run before the first tick")
	}

	worker.Stop()
	worker.Stop()
	wg.Wait()
}

func TestWorker_StopCancelsRunningCycle(t *testing.T) {
	started := make(chan struct{})
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Run(func(args mock.Arguments) {
		close(started)
		<-args.Get(0).(context.Context).Done()
	}).Return(context.Canceled).Once()

	worker := NewWorker(mockProcessor, time.Hour, nil)
	go worker.Start(context.Background())
	<-started

	done := make(chan struct{})
	go func() {
		worker.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not interrupt the running cycle")
	}
}

func TestReembedWorker_ProcessJobs(t *testing.T) {
	t.Run("embeds a batch of pending documents", func(t *testing.T) {
		index := new(MockReembedder)
		index.On("ReembedPending", mock.Anything, 25).Return(3, nil)

		err := NewReembedWorker(index, 25, nil).ProcessJobs(context.Background())

		assert.NoError(t, err)
		index.AssertExpectations(t)
	})

	t.Run("uses the default batch size", func(t *testing.T) {
		index := new(MockReembedder)
		index.On("ReembedPending", mock.Anything, DefaultReembedBatch).Return(0, nil)

		err := NewReembedWorker(index, 0, nil).ProcessJobs(context.Background())

		assert.NoError(t, err)
		index.AssertExpectations(t)
	})

	t.Run("an unavailable model is not an error", func(t *testing.T) {
		index := new(MockReembedder)
		index.On("ReembedPending", mock.Anything, 10).Return(1, domain.NewEmbeddingUnavailable("model not loaded", nil))

		err := NewReembedWorker(index, 10, nil).ProcessJobs(context.Background())

		assert.NoError(t, err)
	})

	t.Run("backend failures are reported", func(t *testing.T) {
		index := new(MockReembedder)
		index.On("ReembedPending", mock.Anything, 10).Return(0, domain.NewBackendUnavailable("connection refused", nil))

		err := NewReembedWorker(index, 10, nil).ProcessJobs(context.Background())

		assert.Error(t, err)
	})
}
