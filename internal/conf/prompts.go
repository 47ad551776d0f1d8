package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptsConfig contains all prompt configurations loaded from YAML
type PromptsConfig struct {
	Persona    PersonaPrompts    `yaml:"persona"`
	Classifier ClassifierPrompts `yaml:"classifier"`
	Responses  ResponseTexts     `yaml:"responses"`
	History    HistoryConfig     `yaml:"history"`
}

// PersonaPrompts builds the system instruction sent with every generation
type PersonaPrompts struct {
	SystemPrompt          string `yaml:"system_prompt"`
	KnowledgeInstructions string `yaml:"knowledge_instructions"`
	KnowledgeEntry        string `yaml:"knowledge_entry"` // {{file}} and {{content}}
}

// ClassifierPrompts contains the reply classification prompts
type ClassifierPrompts struct {
	InstructionTemplate string `yaml:"instruction_template"` // {{bot_name}}
	DefaultInstruction  string `yaml:"default_instruction"`
}

// ResponseTexts contains fixed user-facing texts
type ResponseTexts struct {
	MediaNotSupported string            `yaml:"media_not_supported"`
	ErrorMessage      string            `yaml:"error_message"`
	Apologies         map[string]string `yaml:"apologies"` // provider name -> apology
}

// HistoryConfig contains context window settings
type HistoryConfig struct {
	Window int `yaml:"window"`
}

// LoadPromptsConfig loads prompts configuration from YAML file
func LoadPromptsConfig(configPath string) (*PromptsConfig, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"/etc/flatpee-bot/prompts.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	var data []byte
	var loadedPath string

	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data = b
			loadedPath = p
			break
		}
	}

	if data == nil {
		fmt.Println("[Config] No prompts.yaml found, using defaults")
		return DefaultPromptsConfig(), nil
	}

	fmt.Printf("[Config] Loading prompts from: %s\n", loadedPath)

	var config PromptsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse prompts.yaml: %w", err)
	}

	// Fill in defaults for empty values
	config.fillDefaults()

	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *PromptsConfig) fillDefaults() {
	defaults := DefaultPromptsConfig()

	if c.Persona.SystemPrompt == "" {
		c.Persona.SystemPrompt = defaults.Persona.SystemPrompt
	}
	if c.Persona.KnowledgeInstructions == "" {
		c.Persona.KnowledgeInstructions = defaults.Persona.KnowledgeInstructions
	}
	if c.Persona.KnowledgeEntry == "" {
		c.Persona.KnowledgeEntry = defaults.Persona.KnowledgeEntry
	}

	if c.Classifier.InstructionTemplate == "" {
		c.Classifier.InstructionTemplate = defaults.Classifier.InstructionTemplate
	}
	if c.Classifier.DefaultInstruction == "" {
		c.Classifier.DefaultInstruction = defaults.Classifier.DefaultInstruction
	}

	if c.Responses.MediaNotSupported == "" {
		c.Responses.MediaNotSupported = defaults.Responses.MediaNotSupported
	}
	if c.Responses.ErrorMessage == "" {
		c.Responses.ErrorMessage = defaults.Responses.ErrorMessage
	}
	if c.Responses.Apologies == nil {
		c.Responses.Apologies = map[string]string{}
	}
	for name, text := range defaults.Responses.Apologies {
		if c.Responses.Apologies[name] == "" {
			c.Responses.Apologies[name] = text
		}
	}

	if c.History.Window == 0 {
		c.History.Window = defaults.History.Window
	}
}

// GetClassifierInstruction returns the classification prompt for the given bot names
func (c *PromptsConfig) GetClassifierInstruction(botNames []string) string {
	if len(botNames) == 0 {
		return c.Classifier.DefaultInstruction
	}
	return strings.ReplaceAll(c.Classifier.InstructionTemplate, "{{bot_name}}", strings.Join(botNames, ", "))
}

// GetApology returns the apology for a provider, falling back to the generic error message
func (c *PromptsConfig) GetApology(provider string) string {
	if text, ok := c.Responses.Apologies[provider]; ok && text != "" {
		return text
	}
	return c.Responses.ErrorMessage
}

// FormatKnowledgeEntry formats one knowledge file for the system instruction
func (c *PromptsConfig) FormatKnowledgeEntry(file, content string) string {
	result := c.Persona.KnowledgeEntry
	result = strings.ReplaceAll(result, "{{file}}", file)
	result = strings.ReplaceAll(result, "{{content}}", content)
	return result
}

// DefaultPromptsConfig returns the default prompts configuration
func DefaultPromptsConfig() *PromptsConfig {
	return &PromptsConfig{
		Persona: PersonaPrompts{
			SystemPrompt: "Kamu adalah asisten AI yang membantu pengguna melalui chat. Jawab dengan bahasa Indonesia yang ramah, jelas, dan singkat.",
			KnowledgeInstructions: `PANDUAN MENJAWAB PERTANYAAN:

PRIORITAS KNOWLEDGE BASE:
1. Jika pertanyaan berkaitan dengan informasi di knowledge base, jawab berdasarkan pengetahuan yang ada
2. Gunakan informasi dari knowledge base sebagai sumber utama dan paling akurat
3. Kutip atau rujuk informasi spesifik dari knowledge base jika memungkinkan

PERTANYAAN UMUM:
1. Untuk pertanyaan umum yang tidak ada di knowledge base, jawab secara normal sebagai AI
2. Tetap ramah dan helpful untuk topik umum
3. Tidak perlu menghubungkan pertanyaan umum dengan knowledge base

KESEIMBANGAN:
- Prioritaskan knowledge base untuk topik spesifik.
- Bersifat fleksibel untuk pertanyaan umum
- Selalu jujur tentang sumber informasi

INGAT: Knowledge base untuk informasi spesifik, tapi tetap jadi asisten AI yang helpful untuk semua pertanyaan!`,
			KnowledgeEntry: "Dari {{file}}:\n{{content}}",
		},
		Classifier: ClassifierPrompts{
			InstructionTemplate: `You decide whether a group chat message is directed at the bot assistant "{{bot_name}}".

Answer YES when the message:
- mentions the bot by name ({{bot_name}}) or by role (bot, assistant, AI)
- asks the assistant a question or gives it a task

Answer NO when the message is ordinary conversation between the human members of the group.
If uncertain, answer NO.

Reply with exactly one word: YES or NO.`,
			DefaultInstruction: `You decide whether a group chat message is directed at the group's bot assistant.

Answer YES when the message addresses the bot by role (bot, assistant, AI) or asks it a question.
Answer NO when the message is ordinary conversation between the human members of the group.
If uncertain, answer NO.

Reply with exactly one word: YES or NO.`,
		},
		Responses: ResponseTexts{
			MediaNotSupported: "Bot ini tidak support media. Silakan kirim pesan teks saja.",
			ErrorMessage:      "Maaf, terjadi kesalahan saat memproses pesan Anda. Silakan coba lagi nanti.",
			Apologies: map[string]string{
				"open-ai": "Maaf, terjadi kesalahan saat menghubungi OpenAI. Pastikan API key valid dan koneksi internet stabil.",
				"gen-ai":  "Maaf, terjadi kesalahan saat menghubungi Google Gemini. Pastikan API key valid dan koneksi internet stabil.",
				"ollama":  "Maaf, terjadi kesalahan saat menghubungi server Ollama. Pastikan server Ollama sedang berjalan.",
			},
		},
		History: HistoryConfig{
			Window: 10,
		},
	}
}
