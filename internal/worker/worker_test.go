package worker_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"sentientplanner.app/planner/internal/model"
	"sentientplanner.app/planner/internal/queue"
	"sentientplanner.app/planner/internal/store"
	"sentientplanner.app/planner/internal/worker"
)

type mockJobSource struct {
	readFn func(ctx context.Context) ([]queue.JobMessage, error)
	acked  []string
}

func (m *mockJobSource) Read(ctx context.Context) ([]queue.JobMessage, error) {
	if m.readFn != nil {
		return m.readFn(ctx)
	}
	return nil, nil
}

func (m *mockJobSource) Ack(ctx context.Context, id string) error {
	m.acked = append(m.acked, id)
	return nil
}

type mockArtifactStore struct {
	uploadFn func(ctx context.Context, key, content string) (string, error)
	uploads  []string
}

func (m *mockArtifactStore) Upload(ctx context.Context, key, content string) (string, error) {
	m.uploads = append(m.uploads, key)
	if m.uploadFn != nil {
		return m.uploadFn(ctx, key, content)
	}
	return "https://storage.example.com/" + key, nil
}

type mockPlanStore struct {
	setArtifactFn func(ctx context.Context, userID, recordID, url string, generatedAt time.Time) error
	updates       []string
}

func (m *mockPlanStore) Create(ctx context.Context, record *model.PlanRecord) error {
	return nil
}

func (m *mockPlanStore) ListByUser(ctx context.Context, userID string, limit int32) ([]model.PlanRecord, error) {
	return nil, nil
}

func (m *mockPlanStore) SetArtifact(ctx context.Context, userID, recordID, artifactURL string, generatedAt time.Time) error {
	m.updates = append(m.updates, recordID)
	if m.setArtifactFn != nil {
		return m.setArtifactFn(ctx, userID, recordID, artifactURL, generatedAt)
	}
	return nil
}

func makeJobs(n int) []queue.JobMessage {
	enqueued := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	jobs := make([]queue.JobMessage, n)
	for i := range jobs {
		jobs[i] = queue.JobMessage{
			ID: fmt.Sprintf("1-%d", i),
			Job: model.CanvasJob{
				RecordID:   fmt.Sprintf("rec-%d", i),
				UserID:     "user-1",
				Emotion:    "anxious",
				EnqueuedAt: enqueued,
			},
		}
	}
	return jobs
}

var _ = Describe("Worker", func() {
	var (
		source    *mockJobSource
		artifacts *mockArtifactStore
		plans     *mockPlanStore
		w         *worker.Worker
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		source = &mockJobSource{}
		artifacts = &mockArtifactStore{}
		plans = &mockPlanStore{}
		w = worker.New(source, artifacts, plans, worker.Config{
			IdleDelay:  time.Millisecond,
			ErrorDelay: time.Millisecond,
		})
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		cancel()
	})

	runBatches := func(batches ...[]queue.JobMessage) error {
		i := 0
		source.readFn = func(ctx context.Context) ([]queue.JobMessage, error) {
			if i >= len(batches) {
				cancel()
				return nil, nil
			}
			batch := batches[i]
			i++
			return batch, nil
		}
		return w.Run(ctx)
	}

	It("acknowledges a job only after upload and record update succeed", func() {
		err := runBatches(makeJobs(1))

		Expect(err).To(MatchError(context.Canceled))
		Expect(artifacts.uploads).To(HaveLen(1))
		Expect(artifacts.uploads[0]).To(Equal("artifacts/user-1/2026/03/14/rec-0.txt"))
		Expect(plans.updates).To(ConsistOf("rec-0"))
		Expect(source.acked).To(ConsistOf("1-0"))

		processed, errored := w.Totals()
		Expect(processed).To(Equal(1))
		Expect(errored).To(BeZero())
	})

	It("leaves the job pending when the upload fails", func() {
		artifacts.uploadFn = func(ctx context.Context, key, content string) (string, error) {
			return "", errors.New("bucket unavailable")
		}

		err := runBatches(makeJobs(1))

		Expect(err).To(MatchError(context.Canceled))
		Expect(plans.updates).To(BeEmpty())
		Expect(source.acked).To(BeEmpty())

		_, errored := w.Totals()
		Expect(errored).To(Equal(1))
	})

	It("leaves the job pending when the record update fails", func() {
		plans.setArtifactFn = func(ctx context.Context, userID, recordID, url string, generatedAt time.Time) error {
			return errors.New("connection reset")
		}

		err := runBatches(makeJobs(1))

		Expect(err).To(MatchError(context.Canceled))
		Expect(source.acked).To(BeEmpty())
	})

	It("acknowledges jobs whose plan record no longer exists", func() {
		plans.setArtifactFn = func(ctx context.Context, userID, recordID, url string, generatedAt time.Time) error {
			return store.ErrNotFound
		}

		err := runBatches(makeJobs(1))

		Expect(err).To(MatchError(context.Canceled))
		Expect(source.acked).To(ConsistOf("1-0"))

		processed, errored := w.Totals()
		Expect(processed).To(BeZero())
		Expect(errored).To(Equal(1))
	})

	It("stops mid-batch and leaves remaining jobs pending", func() {
		plans.setArtifactFn = func(ctx context.Context, userID, recordID, url string, generatedAt time.Time) error {
			if len(plans.updates) == 3 {
				cancel()
			}
			return nil
		}

		err := runBatches(makeJobs(10))

		Expect(err).To(BeNil())
		Expect(source.acked).To(HaveLen(3))
		Expect(plans.updates).To(HaveLen(3))
	})

	It("stamps the artifact with the record id and emotion panel", func() {
		var uploaded string
		artifacts.uploadFn = func(ctx context.Context, key, content string) (string, error) {
			uploaded = content
			return "https://storage.example.com/" + key, nil
		}

		err := runBatches(makeJobs(1))

		Expect(err).To(MatchError(context.Canceled))
		Expect(uploaded).To(ContainSubstring("ANXIETY DETECTED"))
		Expect(strings.Contains(uploaded, "ID: rec-0")).To(BeTrue())
	})

	Describe("HandleReclaimed", func() {
		It("processes a redelivered job end to end", func() {
			enqueued := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
			msg := redis.XMessage{ID: "7-0", Values: map[string]any{
				"record_id":   "rec-7",
				"user_id":     "user-1",
				"emotion":     "grateful",
				"enqueued_at": enqueued.Format(time.RFC3339),
			}}

			err := w.HandleReclaimed(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(plans.updates).To(ConsistOf("rec-7"))
			Expect(source.acked).To(ConsistOf("7-0"))
		})

		It("acknowledges unparseable jobs to break redelivery loops", func() {
			msg := redis.XMessage{ID: "7-1", Values: map[string]any{"user_id": "user-1"}}

			err := w.HandleReclaimed(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(plans.updates).To(BeEmpty())
			Expect(source.acked).To(ConsistOf("7-1"))
		})
	})
})
