package data

import (
	"context"
	"fmt"
	"sort"

	"github.com/flatpee/flatpee-bot/internal/conf"
)

const (
	ProviderOpenAI = "open-ai"
	ProviderGemini = "gen-ai"
	ProviderOllama = "ollama"

	DefaultProvider = ProviderOllama
)

type backendConstructor func(ctx context.Context, cfg conf.ProviderConfig) (chatBackend, error)

type providerEntry struct {
	label string
	build backendConstructor
}

var providers = map[string]providerEntry{
	ProviderOpenAI: {
		label: "OpenAI",
		build: func(ctx context.Context, cfg conf.ProviderConfig) (chatBackend, error) {
			return newOpenAIBackend(cfg.OpenAI, cfg.Timeout), nil
		},
	},
	ProviderGemini: {
		label: "Gemini",
		build: func(ctx context.Context, cfg conf.ProviderConfig) (chatBackend, error) {
			return newGeminiBackend(ctx, cfg.Gemini, cfg.Timeout)
		},
	},
	ProviderOllama: {
		label: "Ollama",
		build: func(ctx context.Context, cfg conf.ProviderConfig) (chatBackend, error) {
			return newOllamaBackend(cfg.Ollama, cfg.Timeout)
		},
	},
}

// ProviderNames returns the supported provider names
func ProviderNames() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveProvider maps a configured name to a supported one, defaulting to ollama
func ResolveProvider(name string) string {
	if _, ok := providers[name]; ok {
		return name
	}
	if name != "" {
		fmt.Printf("[Provider] Unknown client %q, falling back to %s\n", name, DefaultProvider)
	}
	return DefaultProvider
}

// NewGenerationRepo builds the configured provider. The system instruction
// is composed once from the persona prompt and the knowledge corpus.
func NewGenerationRepo(ctx context.Context, cfg conf.ProviderConfig, prompts *conf.PromptsConfig, knowledge *Knowledge) (*GenerationRepo, error) {
	name := ResolveProvider(cfg.Client)
	entry := providers[name]

	backend, err := entry.build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", name, err)
	}

	fmt.Printf("[Provider] Using %s (knowledge files=%d)\n", name, knowledge.Len())
	return newGenerationRepo(name, entry.label, backend, BuildSystemInstruction(prompts, knowledge), prompts.GetApology(name)), nil
}
