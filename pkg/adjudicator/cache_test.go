package adjudicator

import (
	"context"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/fleetward/remediator/pkg/types"
)

var _ = Describe("cachedBackend", func() {
	var (
		server *miniredis.Miniredis
		rdb    *redis.Client
		req    types.AdjudicateRequest
	)

	BeforeEach(func() {
		var err error
		server, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		rdb = redis.NewClient(&redis.Options{Addr: server.Addr()})
		req = types.AdjudicateRequest{
			RunbookID:    types.RBImagePull,
			ActionID:     "patch_image",
			ExpectedTool: "fix_imagepullbackoff",
			Alert:        types.Alert{AlertName: "PodImagePullBackOff", Fingerprint: "fp-1"},
		}
	})

	AfterEach(func() {
		server.Close()
	})

	It("caches the first call and skips the backend on repeat", func() {
		inner := &fakeBackend{call: types.ToolCall{Name: "fix_imagepullbackoff", Arguments: map[string]any{"fallback_image": "nginx:stable"}}}
		backend := NewCachedBackend(inner, rdb)

		first, err := backend.ChooseTool(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Name).To(Equal("fix_imagepullbackoff"))
		Expect(inner.callCount).To(Equal(1))

		second, err := backend.ChooseTool(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Arguments["fallback_image"]).To(Equal("nginx:stable"))
		Expect(inner.callCount).To(Equal(1))
	})

	It("falls through to a live call when Redis is unreachable", func() {
		server.Close()
		inner := &fakeBackend{call: types.ToolCall{Name: "fix_imagepullbackoff"}}
		backend := NewCachedBackend(inner, rdb)

		_, err := backend.ChooseTool(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		Expect(inner.callCount).To(Equal(1))
	})

	It("passes straight through when no Redis client is configured", func() {
		inner := &fakeBackend{call: types.ToolCall{Name: "fix_imagepullbackoff"}}
		backend := NewCachedBackend(inner, nil)

		_, err := backend.ChooseTool(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		_, err = backend.ChooseTool(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		Expect(inner.callCount).To(Equal(2))
	})
})
