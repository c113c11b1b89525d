package mcp_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/api/mcp"
	mnemologger "github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/registry"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/service"
	"github.com/papercomputeco/mnemo/pkg/storage/sqlite"
	"github.com/papercomputeco/mnemo/pkg/tool"
)

var _ = Describe("MCP Server", func() {
	var (
		handler  *tool.Handler
		search   *retrieval.Service
		injector *retrieval.Injector
	)

	BeforeEach(func() {
		store, err := sqlite.NewStore(context.Background(), ":memory:", nil)
		Expect(err).NotTo(HaveOccurred())
		reg, err := registry.New(map[memory.Scope]memory.Store{memory.ScopeAgent: store})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(reg.Close()).To(Succeed()) })

		svc, err := service.New(service.Config{Registry: reg})
		Expect(err).NotTo(HaveOccurred())
		handler, err = tool.NewHandler(svc)
		Expect(err).NotTo(HaveOccurred())
		search, err = retrieval.New(retrieval.Config{Registry: reg})
		Expect(err).NotTo(HaveOccurred())
		injector = retrieval.NewInjector(retrieval.InjectorConfig{})
	})

	Describe("NewServer", func() {
		It("returns an error when the tool handler is nil", func() {
			_, err := mcp.NewServer(mcp.Config{
				Retrieval: search,
				Injector:  injector,
				Logger:    mnemologger.Nop(),
			})
			Expect(err).To(MatchError(ContainSubstring("tool handler is required")))
		})

		It("returns an error when retrieval is nil", func() {
			_, err := mcp.NewServer(mcp.Config{
				Tool:     handler,
				Injector: injector,
				Logger:   mnemologger.Nop(),
			})
			Expect(err).To(MatchError(ContainSubstring("retrieval service is required")))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{
				Tool:      handler,
				Retrieval: search,
				Injector:  injector,
			})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("creates a server with an HTTP handler", func() {
			server, err := mcp.NewServer(mcp.Config{
				Tool:      handler,
				Retrieval: search,
				Injector:  injector,
				Logger:    mnemologger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})

		It("creates an empty server in noop mode", func() {
			server, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})
	})
})
