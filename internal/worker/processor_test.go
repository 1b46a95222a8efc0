package worker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdhoang/clipsvc/internal/clip"
)

type mockStore struct {
	claimErr   error
	claimed    []string
	released   []string
	releaseErr error
	purgeKeys  []string
	purgeErr   error
}

func (m *mockStore) ClaimJob(_ context.Context, jobID, workerID string) (*clip.Job, error) {
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	m.claimed = append(m.claimed, jobID)
	return &clip.Job{
		JobID:     jobID,
		SourceURL: "https://www.youtube.com/watch?v=abc",
		StartSec:  0,
		EndSec:    10,
		Status:    clip.StatusWorking,
		WorkerID:  workerID,
	}, nil
}

func (m *mockStore) ReleaseJob(_ context.Context, jobID string) error {
	if m.releaseErr != nil {
		return m.releaseErr
	}
	m.released = append(m.released, jobID)
	return nil
}

func (m *mockStore) PurgeExpired(_ context.Context) ([]string, error) {
	if m.purgeErr != nil {
		return nil, m.purgeErr
	}
	return m.purgeKeys, nil
}

type mockRunner struct {
	err   error
	runs  []string
	block time.Duration
}

func (m *mockRunner) Run(ctx context.Context, job *clip.Job) error {
	m.runs = append(m.runs, job.JobID)
	if m.block > 0 {
		select {
		case <-time.After(m.block):
		case <-ctx.Done():
			return clip.NewPipelineError(clip.ErrCodeDownloadTimeout, ctx.Err())
		}
	}
	return m.err
}

type mockRemover struct {
	removed []string
	err     error
}

func (m *mockRemover) Remove(_ context.Context, key string) error {
	if m.err != nil {
		return m.err
	}
	m.removed = append(m.removed, key)
	return nil
}

func newTestWorker(store *mockStore, runner *mockRunner, remover *mockRemover) *Worker {
	return NewWorker(&Config{
		Logger:          slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Storage:         store,
		Pipeline:        runner,
		ObjectStore:     remover,
		Concurrency:     1,
		JobTimeout:      time.Second,
		JanitorInterval: time.Minute,
	})
}

func TestProcessJob(t *testing.T) {
	t.Run("successful job is acked", func(t *testing.T) {
		store := &mockStore{}
		runner := &mockRunner{}
		w := newTestWorker(store, runner, nil)

		err := w.processJob(context.Background(), &jobMessage{JobID: "job-1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"job-1"}, store.claimed)
		assert.Equal(t, []string{"job-1"}, runner.runs)
	})

	t.Run("pipeline failure still acks", func(t *testing.T) {
		store := &mockStore{}
		runner := &mockRunner{err: clip.NewPipelineError(clip.ErrCodeTrimFailed, fmt.Errorf("ffmpeg exit 1"))}
		w := newTestWorker(store, runner, nil)

		err := w.processJob(context.Background(), &jobMessage{JobID: "job-2"})
		assert.NoError(t, err)
	})

	t.Run("already claimed is not requeued", func(t *testing.T) {
		store := &mockStore{claimErr: clip.ErrJobAlreadyClaimed}
		runner := &mockRunner{}
		w := newTestWorker(store, runner, nil)

		err := w.processJob(context.Background(), &jobMessage{JobID: "job-3"})
		require.Error(t, err)
		assert.False(t, w.shouldRequeueJob(err))
		assert.Empty(t, runner.runs)
	})

	t.Run("transient claim failure is requeued", func(t *testing.T) {
		store := &mockStore{claimErr: fmt.Errorf("connection refused")}
		runner := &mockRunner{}
		w := newTestWorker(store, runner, nil)

		err := w.processJob(context.Background(), &jobMessage{JobID: "job-4"})
		require.Error(t, err)
		assert.True(t, w.shouldRequeueJob(err))
		assert.Empty(t, runner.runs)
	})

	t.Run("shutdown interruption releases claim and requeues", func(t *testing.T) {
		store := &mockStore{}
		runner := &mockRunner{err: fmt.Errorf("job interrupted: %w", context.Canceled)}
		w := newTestWorker(store, runner, nil)

		err := w.processJob(context.Background(), &jobMessage{JobID: "job-6"})
		require.Error(t, err)
		assert.True(t, w.shouldRequeueJob(err))
		assert.Equal(t, []string{"job-6"}, store.released)
	})

	t.Run("release failure still requeues", func(t *testing.T) {
		store := &mockStore{releaseErr: fmt.Errorf("db down")}
		runner := &mockRunner{err: fmt.Errorf("job interrupted: %w", context.Canceled)}
		w := newTestWorker(store, runner, nil)

		err := w.processJob(context.Background(), &jobMessage{JobID: "job-7"})
		require.Error(t, err)
		assert.True(t, w.shouldRequeueJob(err))
	})

	t.Run("job timeout enforced via context", func(t *testing.T) {
		store := &mockStore{}
		runner := &mockRunner{block: 5 * time.Second}
		w := newTestWorker(store, runner, nil)
		w.jobTimeout = 20 * time.Millisecond

		start := time.Now()
		err := w.processJob(context.Background(), &jobMessage{JobID: "job-5"})
		assert.NoError(t, err)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestRunJanitor(t *testing.T) {
	t.Run("removes purged objects", func(t *testing.T) {
		store := &mockStore{purgeKeys: []string{"clips/a.mp4", "clips/b.mp4"}}
		remover := &mockRemover{}
		w := newTestWorker(store, &mockRunner{}, remover)

		w.runJanitor(context.Background())
		assert.Equal(t, []string{"clips/a.mp4", "clips/b.mp4"}, remover.removed)
	})

	t.Run("purge failure leaves objects alone", func(t *testing.T) {
		store := &mockStore{purgeErr: fmt.Errorf("db down")}
		remover := &mockRemover{}
		w := newTestWorker(store, &mockRunner{}, remover)

		w.runJanitor(context.Background())
		assert.Empty(t, remover.removed)
	})

	t.Run("remove failure does not panic", func(t *testing.T) {
		store := &mockStore{purgeKeys: []string{"clips/a.mp4"}}
		remover := &mockRemover{err: fmt.Errorf("storage down")}
		w := newTestWorker(store, &mockRunner{}, remover)

		w.runJanitor(context.Background())
		assert.Empty(t, remover.removed)
	})
}
