package adjudicator

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fleetward/remediator/pkg/types"
)

var _ = Describe("buildPrompt", func() {
	It("names the expected tool in both the constraint and the closing line", func() {
		req := types.AdjudicateRequest{
			Alert:        types.Alert{AlertName: "PodImagePullBackOff", Labels: map[string]string{"namespace": "default", "pod": "web-1"}},
			ExpectedTool: "fix_imagepullbackoff",
			ToolResults:  map[string]types.ResultRecord{"imagepull": {OK: true, Fields: map[string]any{"imagepull_detected": true}}},
		}
		prompt := buildPrompt(req)
		Expect(prompt).To(ContainSubstring(`"name": "fix_imagepullbackoff"`))
		Expect(prompt).To(ContainSubstring("Expected tool: fix_imagepullbackoff"))
		Expect(prompt).To(ContainSubstring("imagepull: ok=true"))
	})

	It("reports no diagnostics when none have run yet", func() {
		req := types.AdjudicateRequest{ExpectedTool: "check_oom"}
		Expect(buildPrompt(req)).To(ContainSubstring("(none yet)"))
	})
})

var _ = Describe("parseToolCall", func() {
	It("parses a clean JSON object", func() {
		call, err := parseToolCall(`{"name": "delete_pod", "arguments": {"namespace": "default", "pod": "web-1"}}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(call.Name).To(Equal("delete_pod"))
		Expect(call.Arguments["pod"]).To(Equal("web-1"))
	})

	It("tolerates surrounding prose and markdown fences", func() {
		call, err := parseToolCall("Sure, here you go:\n```json\n{\"name\": \"check_oom\", \"arguments\": {}}\n```")
		Expect(err).NotTo(HaveOccurred())
		Expect(call.Name).To(Equal("check_oom"))
	})

	It("rejects a completion with no JSON object", func() {
		_, err := parseToolCall("I am not sure what to do.")
		Expect(err).To(HaveOccurred())
	})

	It("rejects a JSON object with no name field", func() {
		_, err := parseToolCall(`{"arguments": {}}`)
		Expect(err).To(HaveOccurred())
	})
})
