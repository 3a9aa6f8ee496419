package factory

import (
	"fmt"

	"clarvis-be/pkg/llm"
	"clarvis-be/pkg/llm/huggingface"
	"clarvis-be/pkg/llm/ollama"
	"clarvis-be/pkg/llm/stub"
)

const (
	ProviderOllama      = "ollama"
	ProviderHuggingFace = "huggingface"
	ProviderMock        = "mock"
)

func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case ProviderOllama:
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case ProviderHuggingFace:
		return huggingface.NewHuggingFaceProvider(apiKey, "", modelName), nil
	case ProviderMock, "":
		return stub.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
