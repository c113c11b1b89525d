package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	mnemologger "github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/metrics"
	"github.com/papercomputeco/mnemo/pkg/prune"
	"github.com/papercomputeco/mnemo/pkg/registry"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/service"
	"github.com/papercomputeco/mnemo/pkg/session"
	"github.com/papercomputeco/mnemo/pkg/storage/sqlite"
	"github.com/papercomputeco/mnemo/pkg/tool"
)

func newTestServer() *Server {
	ctx := context.Background()
	logger := mnemologger.Nop()

	store, err := sqlite.NewStore(ctx, ":memory:", nil)
	Expect(err).NotTo(HaveOccurred())
	reg, err := registry.New(map[memory.Scope]memory.Store{
		memory.ScopeAgent: store,
		memory.ScopeTeam:  store,
	})
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { Expect(reg.Close()).To(Succeed()) })

	rec := metrics.Nop()
	svc, err := service.New(service.Config{Registry: reg, Metrics: rec})
	Expect(err).NotTo(HaveOccurred())
	handler, err := tool.NewHandler(svc)
	Expect(err).NotTo(HaveOccurred())
	search, err := retrieval.New(retrieval.Config{Registry: reg, Metrics: rec})
	Expect(err).NotTo(HaveOccurred())
	pruner, err := prune.New(prune.Config{Registry: reg, Metrics: rec})
	Expect(err).NotTo(HaveOccurred())
	reflector, err := session.NewReflector(session.ReflectorConfig{Service: svc})
	Expect(err).NotTo(HaveOccurred())
	recorder, err := session.NewRecorder(session.RecorderConfig{Service: svc, Reflector: reflector, Pruner: pruner})
	Expect(err).NotTo(HaveOccurred())

	server, err := NewServer(Config{
		ListenAddr: ":0",
		Tool:       handler,
		Retrieval:  search,
		Injector:   retrieval.NewInjector(retrieval.InjectorConfig{}),
		Recorder:   recorder,
		Pruner:     pruner,
		Metrics:    rec,
	}, logger)
	Expect(err).NotTo(HaveOccurred())

	return server
}

func post(server *Server, path string, body any, agent string) *http.Response {
	raw, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())

	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	if agent != "" {
		req.Header.Set(HeaderAgentID, agent)
		req.Header.Set(HeaderTeamID, "1")
		req.Header.Set(HeaderRole, "control")
		req.Header.Set(HeaderSystemID, "7")
	}

	resp, err := server.app.Test(req)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func get(server *Server, path string) *http.Response {
	req, err := http.NewRequest(http.MethodGet, path, nil)
	Expect(err).NotTo(HaveOccurred())

	resp, err := server.app.Test(req)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func decode[T any](resp *http.Response) T {
	var out T
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(body, &out)).To(Succeed())
	return out
}

var _ = Describe("Server", func() {
	var server *Server

	BeforeEach(func() {
		server = newTestServer()
	})

	Describe("NewServer", func() {
		It("requires a tool handler", func() {
			_, err := NewServer(Config{}, mnemologger.Nop())
			Expect(err).To(MatchError(ContainSubstring("tool handler is required")))
		})
	})

	It("answers ping", func() {
		req, err := http.NewRequest(http.MethodGet, "/ping", nil)
		Expect(err).NotTo(HaveOccurred())

		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
	})

	Describe("POST /v1/memory", func() {
		It("requires actor headers", func() {
			resp := post(server, "/v1/memory", tool.Request{Action: tool.ActionList}, "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body := decode[ErrorResponse](resp)
			Expect(body.Code).To(Equal(memory.CodeInvalidParams))
		})

		It("creates and lists entries", func() {
			content := "the build uses make"
			conf := 0.9
			resp := post(server, "/v1/memory", tool.Request{
				Action: tool.ActionCreate,
				Items:  []tool.Item{{Content: &content, Priority: "MEDIUM", Source: "MANUAL", Confidence: &conf}},
			}, "a1")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			created := decode[tool.Response](resp)
			Expect(created.Errors).To(BeEmpty())
			Expect(created.Items).To(HaveLen(1))
			Expect(created.Items[0].Namespace).To(Equal("a1"))

			list := decode[tool.Response](post(server, "/v1/memory", tool.Request{Action: tool.ActionList}, "a1"))
			Expect(list.Items).To(HaveLen(1))
			Expect(list.Items[0].Content).To(Equal(content))
		})
	})

	Describe("search and inject", func() {
		BeforeEach(func() {
			content := "deploys happen on tuesday"
			conf := 1.0
			resp := post(server, "/v1/memory", tool.Request{
				Action:    tool.ActionCreate,
				Scope:     "team",
				Namespace: "1",
				Items:     []tool.Item{{ID: "deploy", Content: &content, Priority: "high", Layer: "long_term", Source: "manual", Confidence: &conf}},
			}, "a1")
			Expect(decode[tool.Response](resp).Errors).To(BeEmpty())
		})

		It("returns ranked entries", func() {
			resp := post(server, "/v1/memory/search", SearchRequest{Scope: "team", Namespace: "1", Text: "deploys"}, "a1")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body := decode[SearchResponse](resp)
			Expect(body.Items).To(HaveLen(1))
			Expect(body.Items[0].ID).To(Equal("deploy"))
		})

		It("formats prompt lines", func() {
			resp := post(server, "/v1/memory/inject", SearchRequest{Scope: "team", Namespace: "1", Text: "deploys"}, "a1")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body := decode[InjectResponse](resp)
			Expect(body.Lines).To(Equal([]string{"[team:1|deploy] deploys happen on tuesday"}))
		})

		It("maps forbidden access to 403", func() {
			raw, _ := json.Marshal(PruneRequest{Scope: "team", Namespace: "1"})
			req, _ := http.NewRequest(http.MethodPost, "/v1/memory/prune", bytes.NewReader(raw))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(HeaderAgentID, "w1")
			req.Header.Set(HeaderTeamID, "1")
			req.Header.Set(HeaderRole, "worker")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusForbidden))
			Expect(decode[ErrorResponse](resp).Code).To(Equal(memory.CodeForbidden))
		})

		It("reports the operation tally on GET /v1/metrics", func() {
			post(server, "/v1/memory/search", SearchRequest{Scope: "team", Namespace: "1", Text: "deploys"}, "a1")

			resp := get(server, "/v1/metrics")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			snap := decode[metrics.Snapshot](resp)
			Expect(snap.Operations).To(HaveKeyWithValue("create:success", int64(1)))
			Expect(snap.Operations).To(HaveKeyWithValue("search:success", int64(1)))
			Expect(snap.Queries).To(Equal(int64(1)))
			Expect(snap.Results).To(Equal(int64(1)))
		})

		It("rejects a bad cursor", func() {
			resp := post(server, "/v1/memory/search", SearchRequest{Scope: "team", Namespace: "1", Cursor: "nope"}, "a1")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	It("records session lines", func() {
		resp := post(server, "/v1/session/record", RecordRequest{Lines: []string{"opened repo", "ran tests"}}, "a1")
		Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

		body := decode[session.Result](resp)
		Expect(body.Entry.Content).To(Equal("opened repo\nran tests"))
		Expect(body.Entry.Layer).To(Equal(memory.LayerSession))
	})

	It("prunes a partition", func() {
		resp := post(server, "/v1/memory/prune", PruneRequest{}, "a1")
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(decode[PruneResponse](resp).Deleted).To(BeEmpty())
	})

	It("answers 503 on /v1/metrics without a recorder", func() {
		server.config.Metrics = nil

		resp := get(server, "/v1/metrics")
		Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		Expect(decode[ErrorResponse](resp).Code).To(Equal(memory.CodeNotImplemented))
	})

	It("rejects a non-numeric system id", func() {
		raw, _ := json.Marshal(PruneRequest{})
		req, _ := http.NewRequest(http.MethodPost, "/v1/memory/prune", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderAgentID, "a1")
		req.Header.Set(HeaderSystemID, "seven")

		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
	})
})

var _ = Describe("StatusFor", func() {
	DescribeTable("maps codes",
		func(code memory.Code, status int) {
			Expect(StatusFor(code)).To(Equal(status))
		},
		Entry("invalid", memory.CodeInvalidParams, fiber.StatusBadRequest),
		Entry("forbidden", memory.CodeForbidden, fiber.StatusForbidden),
		Entry("not found", memory.CodeNotFound, fiber.StatusNotFound),
		Entry("conflict", memory.CodeConflict, fiber.StatusConflict),
		Entry("not implemented", memory.CodeNotImplemented, fiber.StatusNotImplemented),
		Entry("internal", memory.CodeInternal, fiber.StatusInternalServerError),
	)
})
