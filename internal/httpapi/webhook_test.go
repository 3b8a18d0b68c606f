package httpapi

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fleetward/remediator/internal/cerrors"
	"github.com/fleetward/remediator/pkg/ingress"
)

var _ = Describe("POST /alertmanager", func() {
	It("decodes the batch, forwards it to the adapter, and reports processed count", func() {
		adapter := &fakeAdapter{processed: 2}
		server := newTestServer(adapter, newFakeStore(), &fakeComposer{}, 1)
		defer server.Close()

		payload := ingress.WebhookPayload{Alerts: []ingress.RawAlert{
			{Labels: map[string]string{"alertname": "KubePodOOMKilled"}, Status: "firing"},
			{Labels: map[string]string{"alertname": "KubeImagePullBackOff"}, Status: "firing"},
		}}

		resp, body := doJSON(server, http.MethodPost, "/alertmanager", payload)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(MatchJSON(`{"processed":2}`))
		Expect(adapter.received.Alerts).To(HaveLen(2))
	})

	It("answers 503 when the adapter fails with a storage error", func() {
		adapter := &fakeAdapter{err: cerrors.New(cerrors.KindDBError, "append event", nil)}
		server := newTestServer(adapter, newFakeStore(), &fakeComposer{}, 1)
		defer server.Close()

		resp, _ := doJSON(server, http.MethodPost, "/alertmanager", ingress.WebhookPayload{})
		Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
	})

	It("answers 400 on a malformed body", func() {
		server := newTestServer(&fakeAdapter{}, newFakeStore(), &fakeComposer{}, 1)
		defer server.Close()

		req, _ := http.NewRequest(http.MethodPost, server.URL+"/alertmanager", nil)
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})
})
