package k8s

import (
	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/client-go/kubernetes/fake"
)

var _ = Describe("Client interface composition", func() {
	It("implements BasicClient, AdvancedClient and Client", func() {
		basic := &basicClient{clientset: fake.NewSimpleClientset(), namespace: "default", log: logr.Discard()}
		advanced := &advancedClient{basicClient: basic}
		full := &client{basicClient: basic, advancedClient: advanced}

		var asBasic BasicClient = full
		var asAdvanced AdvancedClient = full
		var asClient Client = full

		Expect(asBasic).NotTo(BeNil())
		Expect(asAdvanced).NotTo(BeNil())
		Expect(asClient).NotTo(BeNil())
	})
})
