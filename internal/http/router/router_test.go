package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sentientplanner.app/planner/internal/auth"
	"sentientplanner.app/planner/internal/http/dto"
	"sentientplanner.app/planner/internal/http/router"
	"sentientplanner.app/planner/internal/model"
	"sentientplanner.app/planner/internal/queue"
)

type fakeProducer struct {
	published []queue.ReflectionInput
	err       error
}

func (f *fakeProducer) Publish(ctx context.Context, input queue.ReflectionInput) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, input)
	return nil
}

type fakePlanStore struct {
	records []model.PlanRecord
	listErr error
}

func (f *fakePlanStore) Create(ctx context.Context, record *model.PlanRecord) error {
	return nil
}

func (f *fakePlanStore) ListByUser(ctx context.Context, userID string, limit int32) ([]model.PlanRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if int32(len(f.records)) > limit {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakePlanStore) SetArtifact(ctx context.Context, userID, recordID, artifactURL string, generatedAt time.Time) error {
	return nil
}

var _ = Describe("Routes", func() {
	var (
		engine   *gin.Engine
		tokens   *auth.TokenManager
		producer *fakeProducer
		plans    *fakePlanStore
	)

	issueToken := func(userID string) string {
		token, err := tokens.Issue(userID)
		Expect(err).NotTo(HaveOccurred())
		return token
	}

	doRequest := func(method, path, token string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		engine = gin.New()
		tokens = auth.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
		producer = &fakeProducer{}
		plans = &fakePlanStore{}
		router.SetupRoutes(engine, tokens, producer, plans, router.RouterConfig{})
	})

	Describe("GET /health", func() {
		It("responds without authentication", func() {
			rec := doRequest(http.MethodGet, "/health", "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /auth/token", func() {
		It("issues a usable development token", func() {
			rec := doRequest(http.MethodPost, "/auth/token", "", dto.IssueTokenRequest{UserID: "user-1"})

			Expect(rec.Code).To(Equal(http.StatusOK))
			var resp dto.IssueTokenResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())

			subject, err := tokens.Verify(resp.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(subject).To(Equal("user-1"))
		})

		It("is absent in production", func() {
			prod := gin.New()
			router.SetupRoutes(prod, tokens, producer, plans, router.RouterConfig{IsProduction: true})

			req := httptest.NewRequest(http.MethodPost, "/auth/token", nil)
			rec := httptest.NewRecorder()
			prod.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /api/v1/reflections", func() {
		It("publishes the reflection under the token subject", func() {
			token := issueToken("user-1")
			rec := doRequest(http.MethodPost, "/api/v1/reflections", token, dto.SubmitReflectionRequest{Text: "long day"})

			Expect(rec.Code).To(Equal(http.StatusAccepted))
			Expect(producer.published).To(HaveLen(1))
			Expect(producer.published[0].UserID).To(Equal("user-1"))
			Expect(producer.published[0].Text).To(Equal("long day"))
		})

		It("rejects unauthenticated requests", func() {
			rec := doRequest(http.MethodPost, "/api/v1/reflections", "", dto.SubmitReflectionRequest{Text: "hi"})
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(producer.published).To(BeEmpty())
		})

		It("rejects bodies without text", func() {
			token := issueToken("user-1")
			rec := doRequest(http.MethodPost, "/api/v1/reflections", token, map[string]string{})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 500 when the stream is unavailable", func() {
			producer.err = errors.New("stream down")
			token := issueToken("user-1")
			rec := doRequest(http.MethodPost, "/api/v1/reflections", token, dto.SubmitReflectionRequest{Text: "hi"})
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("GET /api/v1/plans/:userId", func() {
		urlFor := func(user string) string { return "/api/v1/plans/" + user }

		It("returns the caller's plans with a pending artifact count", func() {
			url := "https://storage.example.com/artifacts/user-1/2026/03/14/rec-1.txt"
			plans.records = []model.PlanRecord{
				{
					RecordID:       "rec-1",
					UserID:         "user-1",
					Emotion:        "hopeful",
					SentimentScore: 70,
					ArtifactStatus: model.ArtifactCompleted,
					ArtifactURL:    &url,
				},
				{
					RecordID:       "rec-2",
					UserID:         "user-1",
					Emotion:        "anxious",
					SentimentScore: 35,
					ArtifactStatus: model.ArtifactPending,
				},
			}

			token := issueToken("user-1")
			rec := doRequest(http.MethodGet, urlFor("user-1"), token, nil)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var resp dto.ListPlansResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Plans).To(HaveLen(2))
			Expect(resp.PendingArtifacts).To(Equal(1))
			Expect(resp.Plans[0].ArtifactURL).NotTo(BeNil())
			Expect(resp.Plans[1].ArtifactURL).To(BeNil())
		})

		It("forbids reading another user's plans", func() {
			token := issueToken("user-2")
			rec := doRequest(http.MethodGet, urlFor("user-1"), token, nil)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("rejects an out-of-range limit", func() {
			token := issueToken("user-1")
			rec := doRequest(http.MethodGet, urlFor("user-1")+"?limit=0", token, nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
