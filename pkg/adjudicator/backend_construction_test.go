package adjudicator

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fleetward/remediator/internal/config"
)

var _ = Describe("backend construction", func() {
	It("rejects an openai backend with no API key", func() {
		_, err := NewOpenAIBackend(config.LLMConfig{})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("OPENAI_API_KEY"))
	})

	It("builds an openai backend given an API key", func() {
		backend, err := NewOpenAIBackend(config.LLMConfig{OpenAIAPIKey: "sk-test", OpenAIModel: "gpt-4o-mini"})
		Expect(err).NotTo(HaveOccurred())
		Expect(backend).NotTo(BeNil())
	})

	It("rejects an anthropic backend with no API key", func() {
		_, err := NewAnthropicBackend(config.LLMConfig{})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("ANTHROPIC_API_KEY"))
	})

	It("builds an anthropic backend given an API key", func() {
		backend, err := NewAnthropicBackend(config.LLMConfig{AnthropicAPIKey: "sk-ant-test"})
		Expect(err).NotTo(HaveOccurred())
		Expect(backend).NotTo(BeNil())
	})

	It("rejects a bedrock backend with no model id", func() {
		_, err := NewBedrockBackend(context.Background(), config.LLMConfig{})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("BEDROCK_MODEL_ID"))
	})
})
