package logsink_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/audit"
	"github.com/papercomputeco/mnemo/pkg/audit/logsink"
)

var _ = Describe("Sink", func() {
	var (
		buf  *bytes.Buffer
		sink *logsink.Sink
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		sink = logsink.NewSink(logger)
	})

	decode := func() map[string]any {
		var line map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &line)).To(Succeed())
		return line
	}

	It("logs successful events at info", func() {
		e := audit.NewEvent(audit.ActionCreate, "agent-1", "team", "ops", "m1", true, nil)
		Expect(sink.Publish(context.Background(), e)).To(Succeed())

		line := decode()
		Expect(line).To(HaveKeyWithValue("level", "INFO"))
		Expect(line).To(HaveKeyWithValue("msg", "memory.create"))
		Expect(line).To(HaveKeyWithValue("component", "audit"))
		Expect(line).To(HaveKeyWithValue("resource_id", "m1"))
	})

	It("logs failed events at warn", func() {
		e := audit.NewEvent(audit.ActionDelete, "agent-1", "team", "ops", "m1", false, nil)
		Expect(sink.Publish(context.Background(), e)).To(Succeed())
		Expect(decode()).To(HaveKeyWithValue("level", "WARN"))
	})

	It("rejects nil events", func() {
		Expect(sink.Publish(context.Background(), nil)).To(MatchError(audit.ErrNilEvent))
		Expect(buf.Len()).To(BeZero())
	})
})
