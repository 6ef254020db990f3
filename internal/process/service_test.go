package process_test

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sentientplanner.app/planner/internal/enrich"
	"sentientplanner.app/planner/internal/model"
	"sentientplanner.app/planner/internal/process"
	"sentientplanner.app/planner/internal/queue"
	"sentientplanner.app/planner/internal/secrets"
)

func encodeReflection(text, userID string) string {
	payload := fmt.Sprintf(`{"text":%q,"userId":%q}`, text, userID)
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

var _ = Describe("Service", func() {
	var (
		svc        process.Service
		provider   *mockSecretProvider
		enricher   *mockEnricher
		plans      *mockPlanStore
		dispatcher *mockDispatcher
		ctx        context.Context
	)

	BeforeEach(func() {
		provider = &mockSecretProvider{}
		enricher = &mockEnricher{}
		plans = &mockPlanStore{}
		dispatcher = &mockDispatcher{}
		svc = process.NewService(provider, enricher, plans, dispatcher, nil)
		ctx = context.Background()
	})

	Describe("ProcessBatch", func() {
		It("stores a record and dispatches a canvas job per reflection", func() {
			batch := []queue.Reflection{
				{ID: "1-0", Data: encodeReflection("rough monday", "user-1")},
				{ID: "1-1", Data: encodeReflection("feeling lighter", "user-2")},
			}

			result, err := svc.ProcessBatch(ctx, batch)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Processed).To(Equal(2))
			Expect(result.Errors).To(BeZero())
			Expect(result.Skipped).To(BeZero())

			Expect(plans.created).To(HaveLen(2))
			Expect(plans.created[0].UserID).To(Equal("user-1"))
			Expect(plans.created[0].Text).To(Equal("rough monday"))
			Expect(plans.created[0].RecordID).NotTo(BeEmpty())
			Expect(plans.created[0].Emotion).To(Equal("hopeful"))
			Expect(plans.created[0].ArtifactStatus).To(Equal(model.ArtifactPending))
			Expect(plans.created[0].Fallback).To(BeFalse())

			Expect(dispatcher.dispatched).To(HaveLen(2))
			Expect(dispatcher.dispatched[0].RecordID).To(Equal(plans.created[0].RecordID))
			Expect(dispatcher.dispatched[0].Emotion).To(Equal("hopeful"))
		})

		It("passes the resolved API key to the enricher", func() {
			provider.fetchFn = func(ctx context.Context) (secrets.Bundle, error) {
				return secrets.Bundle{InferenceAPIKey: "rotated-key", SigningSecret: "s"}, nil
			}
			batch := []queue.Reflection{{ID: "1-0", Data: encodeReflection("hi", "user-1")}}

			_, err := svc.ProcessBatch(ctx, batch)

			Expect(err).NotTo(HaveOccurred())
			Expect(enricher.seenAPIKeys).To(ConsistOf("rotated-key"))
		})

		It("aborts the batch when the secret bundle cannot be resolved", func() {
			provider.fetchFn = func(ctx context.Context) (secrets.Bundle, error) {
				return secrets.Bundle{}, errors.New("secret backend down")
			}
			batch := []queue.Reflection{{ID: "1-0", Data: encodeReflection("hi", "user-1")}}

			_, err := svc.ProcessBatch(ctx, batch)

			Expect(err).To(HaveOccurred())
			Expect(plans.created).To(BeEmpty())
			Expect(dispatcher.dispatched).To(BeEmpty())
		})

		It("counts undecodable payloads as errors and continues", func() {
			batch := []queue.Reflection{
				{ID: "1-0", Data: "!!!not-base64!!!"},
				{ID: "1-1", Data: encodeReflection("still here", "user-2")},
			}

			result, err := svc.ProcessBatch(ctx, batch)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Errors).To(Equal(1))
			Expect(result.Processed).To(Equal(1))
			Expect(plans.created).To(HaveLen(1))
		})

		It("skips reflections with no text", func() {
			batch := []queue.Reflection{
				{ID: "1-0", Data: encodeReflection("   ", "user-1")},
			}

			result, err := svc.ProcessBatch(ctx, batch)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Skipped).To(Equal(1))
			Expect(plans.created).To(BeEmpty())
			Expect(dispatcher.dispatched).To(BeEmpty())
		})

		It("counts storage failures as errors and does not dispatch", func() {
			plans.createFn = func(ctx context.Context, record *model.PlanRecord) error {
				return errors.New("connection reset")
			}
			batch := []queue.Reflection{{ID: "1-0", Data: encodeReflection("hi", "user-1")}}

			result, err := svc.ProcessBatch(ctx, batch)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Errors).To(Equal(1))
			Expect(dispatcher.dispatched).To(BeEmpty())
		})

		It("still counts the record as processed when dispatch fails", func() {
			dispatcher.dispatchFn = func(ctx context.Context, job model.CanvasJob) bool {
				return false
			}
			batch := []queue.Reflection{{ID: "1-0", Data: encodeReflection("hi", "user-1")}}

			result, err := svc.ProcessBatch(ctx, batch)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Processed).To(Equal(1))
			Expect(plans.created).To(HaveLen(1))
		})

		It("stores the fallback flag when enrichment degrades", func() {
			enricher.analyzeFn = func(ctx context.Context, text, apiKey string) enrich.Analysis {
				return enrich.Fallback()
			}
			batch := []queue.Reflection{{ID: "1-0", Data: encodeReflection("hi", "user-1")}}

			result, err := svc.ProcessBatch(ctx, batch)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Processed).To(Equal(1))
			Expect(plans.created[0].Fallback).To(BeTrue())
			Expect(plans.created[0].Emotion).To(Equal("neutral"))
			Expect(plans.created[0].SentimentScore).To(Equal(50))
		})

		It("assigns a distinct record id per reflection", func() {
			batch := []queue.Reflection{
				{ID: "1-0", Data: encodeReflection("first", "user-1")},
				{ID: "1-1", Data: encodeReflection("second", "user-1")},
			}

			_, err := svc.ProcessBatch(ctx, batch)

			Expect(err).NotTo(HaveOccurred())
			Expect(plans.created).To(HaveLen(2))
			Expect(plans.created[0].RecordID).NotTo(Equal(plans.created[1].RecordID))
		})
	})
})
