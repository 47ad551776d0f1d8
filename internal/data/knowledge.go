package data

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flatpee/flatpee-bot/internal/conf"
)

// KnowledgeFile is one loaded knowledge document
type KnowledgeFile struct {
	Name    string
	Content string
}

// Knowledge is the in-memory knowledge corpus, loaded once at startup
type Knowledge struct {
	files []KnowledgeFile
}

// LoadKnowledge reads every regular file directly under dir.
// A missing directory yields an empty corpus and a warning, not an error.
func LoadKnowledge(dir string) (*Knowledge, error) {
	k := &Knowledge{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Printf("[Knowledge] Warning: knowledge directory %s not found, using empty corpus\n", dir)
			return k, nil
		}
		return nil, fmt.Errorf("failed to read knowledge directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			fmt.Printf("[Knowledge] Warning: failed to read %s: %v\n", entry.Name(), err)
			continue
		}
		k.files = append(k.files, KnowledgeFile{Name: entry.Name(), Content: string(content)})
		fmt.Printf("[Knowledge] Loaded %s\n", entry.Name())
	}

	sort.Slice(k.files, func(i, j int) bool {
		return k.files[i].Name < k.files[j].Name
	})

	fmt.Printf("[Knowledge] Loaded %d knowledge files\n", len(k.files))
	return k, nil
}

// NewKnowledge builds a corpus from a filename -> content map
func NewKnowledge(files map[string]string) *Knowledge {
	k := &Knowledge{}
	for name, content := range files {
		k.files = append(k.files, KnowledgeFile{Name: name, Content: content})
	}
	sort.Slice(k.files, func(i, j int) bool {
		return k.files[i].Name < k.files[j].Name
	})
	return k
}

// Len returns the number of loaded files
func (k *Knowledge) Len() int {
	if k == nil {
		return 0
	}
	return len(k.files)
}

// Files returns the loaded files in name order
func (k *Knowledge) Files() []KnowledgeFile {
	if k == nil {
		return nil
	}
	return k.files
}

// BuildSystemInstruction composes persona, knowledge corpus and answering guidelines
func BuildSystemInstruction(prompts *conf.PromptsConfig, knowledge *Knowledge) string {
	var entries []string
	for _, f := range knowledge.Files() {
		entries = append(entries, prompts.FormatKnowledgeEntry(f.Name, f.Content))
	}

	parts := []string{prompts.Persona.SystemPrompt}
	if len(entries) > 0 {
		parts = append(parts, strings.Join(entries, "\n\n"))
	}
	parts = append(parts, prompts.Persona.KnowledgeInstructions)

	return strings.Join(parts, "\n\n")
}
