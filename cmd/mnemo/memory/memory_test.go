package memorycmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/api"
	memorycmder "github.com/papercomputeco/mnemo/cmd/mnemo/memory"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/metrics"
	"github.com/papercomputeco/mnemo/pkg/stack"
	"github.com/papercomputeco/mnemo/pkg/tool"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
)

var _ = Describe("NewMemoryCmd", func() {
	It("registers every subcommand", func() {
		cmd := memorycmder.NewMemoryCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements(
			"add", "get", "list", "search", "inject", "update",
			"delete", "promote", "prune", "record", "import", "stats",
		))
	})

	It("has the actor and partition flags", func() {
		cmd := memorycmder.NewMemoryCmd()
		for _, name := range []string{"api-target", "agent", "team", "role", "system-id", "scope", "namespace", "json"} {
			Expect(cmd.PersistentFlags().Lookup(name)).NotTo(BeNil(), name)
		}
		Expect(cmd.PersistentFlags().ShorthandLookup("a")).NotTo(BeNil())
	})
})

var _ = Describe("Memory command execution", func() {
	var (
		tmpDir string
		ts     *httptest.Server
		out    *bytes.Buffer
		errOut *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "mnemo-memory-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })

		cfg := config.NewDefaultConfig()
		cfg.Storage.SQLitePath = ":memory:"
		s, err := stack.New(context.Background(), stack.Options{
			Config: cfg,
			Audit:  testutils.NewRecordingSink(),
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(s.Close()).To(Succeed()) })

		server, err := api.NewServer(api.Config{
			Tool:      s.Tool,
			Retrieval: s.Retrieval,
			Injector:  s.Injector,
			Recorder:  s.Recorder,
			Pruner:    s.Pruner,
			Metrics:   s.Metrics,
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		ts = httptest.NewServer(server.Handler())
		DeferCleanup(ts.Close)
	})

	// run executes "memory <args>" as the given agent against the test server.
	run := func(agent, role string, args ...string) error {
		out = &bytes.Buffer{}
		errOut = &bytes.Buffer{}

		root := &cobra.Command{Use: "mnemo", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(memorycmder.NewMemoryCmd())
		root.SetOut(out)
		root.SetErr(errOut)

		full := append([]string{"memory"}, args...)
		full = append(full,
			"--api-target", ts.URL,
			"--agent", agent,
			"--team", "t1",
			"--role", role,
			"--config-dir", tmpDir,
		)
		root.SetArgs(full)
		return root.Execute()
	}

	decode := func() tool.Response {
		var resp tool.Response
		Expect(json.Unmarshal(out.Bytes(), &resp)).To(Succeed())
		return resp
	}

	It("adds and reads back an agent entry", func() {
		Expect(run("w1", "worker", "add", "prefers", "short", "answers", "--id", "n1", "--tags", "style", "--json")).To(Succeed())
		created := decode()
		Expect(created.Items).To(HaveLen(1))
		Expect(created.Items[0].Content).To(Equal("prefers short answers"))
		Expect(created.Items[0].Namespace).To(Equal("w1"))
		Expect(created.Items[0].Tags).To(ConsistOf("style"))

		Expect(run("w1", "worker", "get", "n1", "--json")).To(Succeed())
		read := decode()
		Expect(read.Items).To(HaveLen(1))
		Expect(read.Items[0].ID).To(Equal("n1"))
	})

	It("reports per-item failures as an error", func() {
		Expect(run("w1", "worker", "get", "missing", "--json")).To(HaveOccurred())
		resp := decode()
		Expect(resp.Errors).To(HaveLen(1))
		Expect(string(resp.Errors[0].Code)).To(Equal("NOT_FOUND"))
	})

	It("reports request-level failures with their code", func() {
		err := run("w1", "worker", "add", "team note", "--scope", "team", "--namespace", "ops", "--layer", "long_term")
		Expect(err).To(HaveOccurred())
		Expect(out.String()).To(ContainSubstring("FORBIDDEN"))
	})

	It("requires an agent id", func() {
		Expect(run("", "worker", "list")).To(HaveOccurred())
	})

	It("searches and injects", func() {
		Expect(run("lead", "control", "add", "deploys happen on tuesdays", "--id", "d1",
			"--scope", "team", "--namespace", "ops", "--layer", "long_term")).To(Succeed())

		Expect(run("lead", "control", "search", "deploys", "--scope", "team", "--namespace", "ops", "--quiet")).To(Succeed())
		Expect(strings.TrimSpace(out.String())).To(Equal("d1"))

		Expect(run("lead", "control", "search", "deploys", "--scope", "team", "--namespace", "ops")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("#1"))
		Expect(out.String()).To(ContainSubstring("team:ops"))

		Expect(run("lead", "control", "search", "nothing-matches-this", "--scope", "team", "--namespace", "ops")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No results found."))

		Expect(run("lead", "control", "inject", "deploys", "--scope", "team", "--namespace", "ops")).To(Succeed())
		Expect(out.String()).To(Equal("[team:ops|d1] deploys happen on tuesdays\n"))
	})

	It("updates with an etag and deletes", func() {
		Expect(run("w1", "worker", "add", "draft", "--id", "u1", "--json")).To(Succeed())
		etag := decode().Items[0].ETag

		Expect(run("w1", "worker", "update", "u1", "--content", "final", "--if-match", etag, "--json")).To(Succeed())
		updated := decode()
		Expect(updated.Items[0].Content).To(Equal("final"))
		Expect(updated.Items[0].Version).To(BeNumerically(">", 1))

		Expect(run("w1", "worker", "delete", "u1")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Deleted"))

		Expect(run("w1", "worker", "get", "u1", "--json")).To(HaveOccurred())
	})

	It("promotes an agent entry into team memory", func() {
		Expect(run("lead", "control", "add", "runbook lives in the wiki", "--id", "p1", "--json")).To(Succeed())

		Expect(run("lead", "control", "promote", "p1", "--to", "team", "--namespace", "ops", "--json")).To(Succeed())
		promoted := decode()
		Expect(promoted.Items).To(HaveLen(1))
		Expect(string(promoted.Items[0].Scope)).To(Equal("team"))
		Expect(promoted.Items[0].Namespace).To(Equal("ops"))
	})

	It("lists with a page limit", func() {
		for _, id := range []string{"l1", "l2", "l3"} {
			Expect(run("w1", "worker", "add", "note "+id, "--id", id)).To(Succeed())
		}

		Expect(run("w1", "worker", "list", "--limit", "2", "--json")).To(Succeed())
		page := decode()
		Expect(page.Items).To(HaveLen(2))
		Expect(page.HasMore).To(BeTrue())
		Expect(page.NextCursor).NotTo(BeNil())
	})

	It("records session lines from a file", func() {
		logPath := filepath.Join(tmpDir, "session.log")
		Expect(os.WriteFile(logPath, []byte("ran tests\n\nall green\n"), 0o600)).To(Succeed())

		Expect(run("w1", "worker", "record", logPath)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Recorded"))
	})

	It("records session lines from stdin", func() {
		out = &bytes.Buffer{}
		root := &cobra.Command{Use: "mnemo", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(memorycmder.NewMemoryCmd())
		root.SetOut(out)
		root.SetIn(strings.NewReader("started\nfinished\n"))
		root.SetArgs([]string{"memory", "record", "--json",
			"--api-target", ts.URL, "--agent", "w1", "--config-dir", tmpDir})
		Expect(root.Execute()).To(Succeed())

		var result map[string]any
		Expect(json.Unmarshal(out.Bytes(), &result)).To(Succeed())
		Expect(result).To(HaveKey("entry"))
	})

	It("prunes expired entries", func() {
		Expect(run("w1", "worker", "prune", "--json")).To(Succeed())
		var resp api.PruneResponse
		Expect(json.Unmarshal(out.Bytes(), &resp)).To(Succeed())
		Expect(resp.Deleted).To(BeEmpty())
	})

	It("shows the server's operation counters", func() {
		Expect(run("w1", "worker", "add", "stats", "note")).To(Succeed())
		Expect(run("w1", "worker", "search", "stats")).To(Succeed())

		Expect(run("w1", "worker", "stats", "--json")).To(Succeed())
		var snap metrics.Snapshot
		Expect(json.Unmarshal(out.Bytes(), &snap)).To(Succeed())
		Expect(snap.Operations).To(HaveKeyWithValue("create:success", int64(1)))
		Expect(snap.Queries).To(Equal(int64(1)))

		Expect(run("w1", "worker", "stats")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("create:success"))
		Expect(out.String()).To(ContainSubstring("1 queries"))
	})

	It("imports entries from YAML in batches", func() {
		path := filepath.Join(tmpDir, "seed.yaml")
		Expect(os.WriteFile(path, []byte(`
scope: team
namespace: ops
items:
  - content: one
    layer: long_term
  - content: two
    layer: long_term
  - content: three
    layer: long_term
`), 0o600)).To(Succeed())

		Expect(run("lead", "control", "import", path, "--batch", "2")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("3 entries"))

		Expect(run("lead", "control", "list", "--scope", "team", "--namespace", "ops", "--json")).To(Succeed())
		listed := decode()
		Expect(listed.Items).To(HaveLen(3))
		for _, e := range listed.Items {
			Expect(string(e.Source)).To(Equal("import"))
		}
	})

	It("rejects a malformed import file", func() {
		path := filepath.Join(tmpDir, "bad.yaml")
		Expect(os.WriteFile(path, []byte("- tags: [x]\n"), 0o600)).To(Succeed())
		Expect(run("w1", "worker", "import", path)).To(MatchError(ContainSubstring("content is required")))
	})
})
