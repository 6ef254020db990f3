package process_test

import (
	"context"
	"encoding/base64"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"sentientplanner.app/planner/internal/process"
	"sentientplanner.app/planner/internal/queue"
)

var _ = Describe("Runner", func() {
	var (
		source     *mockReflectionSource
		provider   *mockSecretProvider
		enricher   *mockEnricher
		plans      *mockPlanStore
		dispatcher *mockDispatcher
		runner     *process.Runner
		ctx        context.Context
	)

	BeforeEach(func() {
		source = &mockReflectionSource{}
		provider = &mockSecretProvider{}
		enricher = &mockEnricher{}
		plans = &mockPlanStore{}
		dispatcher = &mockDispatcher{}
		svc := process.NewService(provider, enricher, plans, dispatcher, nil)
		runner = process.NewRunner(source, svc)
		ctx = context.Background()
	})

	Describe("HandleReclaimed", func() {
		It("processes and acknowledges a redelivered reflection", func() {
			data := encodeReflection("stale but valid", "user-9")
			msg := redis.XMessage{ID: "9-0", Values: map[string]any{"data": data}}

			err := runner.HandleReclaimed(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(plans.created).To(HaveLen(1))
			Expect(plans.created[0].UserID).To(Equal("user-9"))
			Expect(source.acked).To(ConsistOf("9-0"))
		})

		It("acknowledges entries without a data field to break redelivery loops", func() {
			msg := redis.XMessage{ID: "9-1", Values: map[string]any{"other": "x"}}

			err := runner.HandleReclaimed(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(plans.created).To(BeEmpty())
			Expect(source.acked).To(ConsistOf("9-1"))
		})
	})

	Describe("Run", func() {
		It("acknowledges every message after a successful batch", func() {
			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			delivered := false
			source.readFn = func(ctx context.Context) ([]queue.Reflection, error) {
				if delivered {
					cancel()
					return nil, nil
				}
				delivered = true
				return []queue.Reflection{
					{ID: "1-0", Data: encodeReflection("a", "user-1")},
					{ID: "1-1", Data: encodeBroken()},
				}, nil
			}

			err := runner.Run(runCtx)

			Expect(err).To(MatchError(context.Canceled))
			// The undecodable message is still acked; redelivery cannot fix it.
			Expect(source.acked).To(ConsistOf("1-0", "1-1"))
			Expect(plans.created).To(HaveLen(1))
		})
	})
})

func encodeBroken() string {
	return base64.StdEncoding.EncodeToString([]byte("not json"))
}
