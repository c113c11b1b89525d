package cached_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/embeddings/cached"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
)

var _ = Describe("Embedder", func() {
	var (
		ctx   context.Context
		inner *testutils.MockEmbedder
		e     *cached.Embedder
	)

	BeforeEach(func() {
		ctx = context.Background()
		inner = testutils.NewMockEmbedder()
		inner.Embeddings["hello"] = []float32{1, 2, 3}

		var err error
		e, err = cached.NewEmbedder(inner, 16)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(e.Close()).To(Succeed())
	})

	It("requires an inner embedder", func() {
		_, err := cached.NewEmbedder(nil, 16)
		Expect(err).To(HaveOccurred())
	})

	It("serves repeated texts from the cache", func() {
		first, err := e.Embed(ctx, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal([]float32{1, 2, 3}))
		e.Wait()

		second, err := e.Embed(ctx, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal([]float32{1, 2, 3}))
		Expect(inner.Calls).To(Equal(1))
	})

	It("returns copies callers may mutate", func() {
		first, err := e.Embed(ctx, "hello")
		Expect(err).NotTo(HaveOccurred())
		e.Wait()
		first[0] = 99

		second, err := e.Embed(ctx, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(second[0]).To(Equal(float32(1)))
	})

	It("does not cache failures", func() {
		inner.FailOn = "bad"
		_, err := e.Embed(ctx, "bad")
		Expect(err).To(HaveOccurred())
		e.Wait()
		_, err = e.Embed(ctx, "bad")
		Expect(err).To(HaveOccurred())
		Expect(inner.Calls).To(Equal(2))
	})
})
