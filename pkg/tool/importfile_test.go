package tool_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/tool"
)

var _ = Describe("ParseImportFile", func() {
	It("reads a document with scope, namespace and items", func() {
		file, err := tool.ParseImportFile([]byte(`
scope: global
namespace: handbook
items:
  - content: releases are cut from main
    layer: long_term
    tags: [release]
    priority: high
  - content: reviews need two approvals
    layer: long_term
    source: manual
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(file.Scope).To(Equal("global"))
		Expect(file.Namespace).To(Equal("handbook"))
		Expect(file.Items).To(HaveLen(2))
		Expect(*file.Items[0].Content).To(Equal("releases are cut from main"))
		Expect(file.Items[0].Tags).To(Equal([]string{"release"}))
		Expect(file.Items[0].Source).To(Equal("import"))
		Expect(file.Items[1].Source).To(Equal("manual"))
		Expect(file.Items[1].Priority).To(Equal("medium"))
		Expect(*file.Items[1].Confidence).To(Equal(1.0))
	})

	It("reads a bare list of items", func() {
		file, err := tool.ParseImportFile([]byte(`
- content: one
- content: two
  confidence: 0.4
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(file.Scope).To(BeEmpty())
		Expect(file.Items).To(HaveLen(2))
		Expect(*file.Items[1].Confidence).To(Equal(0.4))
	})

	It("rejects unknown fields", func() {
		_, err := tool.ParseImportFile([]byte("items:\n  - content: x\n    colour: red\n"))
		Expect(err).To(HaveOccurred())
	})

	It("rejects items without content", func() {
		_, err := tool.ParseImportFile([]byte("- tags: [x]\n"))
		Expect(err).To(MatchError(ContainSubstring("content is required")))
	})

	It("rejects empty and scalar documents", func() {
		_, err := tool.ParseImportFile([]byte(""))
		Expect(err).To(HaveOccurred())

		_, err = tool.ParseImportFile([]byte("just text"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Batches", func() {
	items := func(n int) []tool.Item {
		out := make([]tool.Item, n)
		for i := range out {
			out[i] = item("x")
		}
		return out
	}

	It("splits into chunks of at most size", func() {
		batches := tool.Batches(items(5), 2)
		Expect(batches).To(HaveLen(3))
		Expect(batches[0]).To(HaveLen(2))
		Expect(batches[2]).To(HaveLen(1))
	})

	It("keeps everything in one batch when size is unset", func() {
		Expect(tool.Batches(items(3), 0)).To(HaveLen(1))
	})

	It("returns nothing for no items", func() {
		Expect(tool.Batches(nil, 10)).To(BeEmpty())
	})
})
