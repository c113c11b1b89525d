package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/logger"
)

func decodeLine(buf *bytes.Buffer) map[string]any {
	var parsed map[string]any
	ExpectWithOffset(1, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed)).To(Succeed())
	return parsed
}

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("writes text records by default", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf)).Info("entry stored", "scope", "team")

			Expect(buf.String()).To(ContainSubstring("entry stored"))
			Expect(buf.String()).To(ContainSubstring("scope=team"))
		})

		It("filters debug records unless debug is enabled", func() {
			var quiet, loud bytes.Buffer
			logger.New(logger.WithWriter(&quiet)).Debug("hidden")
			logger.New(logger.WithWriter(&loud), logger.WithDebug(true)).Debug("shown")

			Expect(quiet.String()).To(BeEmpty())
			Expect(loud.String()).To(ContainSubstring("shown"))
		})

		It("honours an explicit level", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithLevel(slog.LevelWarn))
			l.Info("skipped")
			l.Warn("kept")

			Expect(buf.String()).NotTo(ContainSubstring("skipped"))
			Expect(buf.String()).To(ContainSubstring("kept"))
		})

		It("writes JSON records", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithJSON(true)).Info("search", "results", 3)

			parsed := decodeLine(&buf)
			Expect(parsed["msg"]).To(Equal("search"))
			Expect(parsed["results"]).To(BeNumerically("==", 3))
		})

		It("prefers JSON over pretty output", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithPretty(true)).Info("both")

			Expect(decodeLine(&buf)["msg"]).To(Equal("both"))
		})

		It("writes pretty records", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithPretty(true)).Info("pretty output")

			Expect(buf.String()).To(ContainSubstring("pretty output"))
		})

		It("copies records to every writer", func() {
			var a, b bytes.Buffer
			logger.New(logger.WithWriters(&a, &b)).Info("copied")

			Expect(a.String()).To(ContainSubstring("copied"))
			Expect(b.String()).To(ContainSubstring("copied"))
		})
	})

	Describe("redaction", func() {
		It("masks credential attributes by default", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithJSON(true)).
				Info("opening store", "postgres_dsn", "postgres://mnemo:secret@db/mnemo", "backend", "postgres")

			parsed := decodeLine(&buf)
			Expect(parsed["postgres_dsn"]).To(Equal(logger.Masked))
			Expect(parsed["backend"]).To(Equal("postgres"))
			Expect(buf.String()).NotTo(ContainSubstring("secret"))
		})

		It("masks attributes bound with With and nested in groups", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true)).With("API_KEY", "k-123")
			l.Info("qdrant", slog.Group("vector", slog.String("token", "t-456"), slog.String("host", "qdrant")))

			parsed := decodeLine(&buf)
			Expect(parsed["API_KEY"]).To(Equal(logger.Masked))
			group, ok := parsed["vector"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(group["token"]).To(Equal(logger.Masked))
			Expect(group["host"]).To(Equal("qdrant"))
		})

		It("masks extra keys", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithRedactKeys("brokers")).
				Info("audit sink", "brokers", "kafka:9092")

			Expect(decodeLine(&buf)["brokers"]).To(Equal(logger.Masked))
		})

		It("passes handlers through when no keys are given", func() {
			h := slog.NewTextHandler(&bytes.Buffer{}, nil)
			Expect(logger.Redacting(h)).To(BeIdenticalTo(h))
		})
	})

	Describe("Nop", func() {
		It("is disabled at every level", func() {
			l := logger.Nop()
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
			Expect(func() { l.With("k", "v").WithGroup("g").Info("msg") }).NotTo(Panic())
		})
	})

	Describe("Multi", func() {
		It("dispatches to every logger", func() {
			var text, js bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&text)),
				logger.New(logger.WithWriter(&js), logger.WithJSON(true)),
			)
			multi.Info("broadcast", "namespace", "ops")

			Expect(text.String()).To(ContainSubstring("broadcast"))
			Expect(decodeLine(&js)["namespace"]).To(Equal("ops"))
		})

		It("only hands records to enabled loggers", func() {
			var info, debug bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&info)),
				logger.New(logger.WithWriter(&debug), logger.WithDebug(true)),
			)
			multi.Debug("detail")

			Expect(info.String()).To(BeEmpty())
			Expect(debug.String()).To(ContainSubstring("detail"))
		})

		It("carries With and WithGroup to every logger", func() {
			var buf bytes.Buffer
			multi := logger.Multi(logger.New(logger.WithWriter(&buf), logger.WithJSON(true)), nil)
			multi.With("component", "pruner").WithGroup("result").Info("done", "deleted", 2)

			parsed := decodeLine(&buf)
			Expect(parsed["component"]).To(Equal("pruner"))
			group, ok := parsed["result"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(group["deleted"]).To(BeNumerically("==", 2))
		})
	})
})
