package file

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// promptExt is the file extension of prompt files.
const promptExt = ".txt"

// PromptStore loads LLM prompt templates from user-editable files on disk,
// falling back to embedded defaults. Parsed templates are cached until Reload.
//
// Initialisation is lazy: the directory and default files are written on
// the first access, not in the constructor.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]*template.Template
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts contains embedded default prompts.
// They seed new prompt files and are used when a file is missing.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptAnswer: `You are a clinical documentation assistant. Answer the question using only the source chunks below.

Question: {{.Question}}

Source chunks:
{{range .Chunks}}
[chunk_id: {{.ID}} | artifact_id: {{.ArtifactID}} | type: {{.ArtifactType}} | date: {{.OccurredAt.Format "2006-01-02"}}]
{{.Text}}
{{end}}
Most relevant sentences:
{{range .Sentences}}- ({{.ChunkID}}) {{.Text}}
{{end}}
Respond with a single JSON object of this form:
{"answer": "<answer text>", "extractions": [{"type": "<kind of fact>", "value": "<fact>", "provenance": {"artifact_id": "<artifact_id>", "chunk_id": "<chunk_id>", "char_offsets": [<start>, <end>], "supporting_text": "<exact text>"}}]}

Rules:
- Every fact stated in the answer must have an extraction.
- chunk_id must be one of the chunk ids listed above.
- supporting_text must be copied character for character from that chunk.
- char_offsets index into that chunk's text; end is exclusive.
- If the chunks do not contain the answer, say so and return an empty extractions list.`,
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.cliniq/prompts/.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".cliniq", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]*template.Template),
	}, nil
}

// Load returns the raw template text for name.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)
	return s.source(name)
}

// Render executes the named template with data.
func (s *PromptStore) Render(name string, data any) (string, error) {
	tmpl, err := s.template(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return buf.String(), nil
}

// Reload clears the template cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]*template.Template)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// template returns the parsed template for name, reading the user file
// when present. A user file that fails to parse is an error, not a silent
// fallback, so edits are never ignored.
func (s *PromptStore) template(name string) (*template.Template, error) {
	s.initOnce.Do(s.initialise)

	s.mu.RLock()
	tmpl, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	text, err := s.source(name)
	if err != nil {
		return nil, err
	}
	tmpl, err = template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %q: %w", name, err)
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		tmpl = cached
	} else {
		s.cache[name] = tmpl
	}
	s.mu.Unlock()

	return tmpl, nil
}

// source returns the prompt text from disk, or the embedded default.
func (s *PromptStore) source(name string) (string, error) {
	if s.initErr == nil {
		data, err := os.ReadFile(filepath.Join(s.promptDir, name+promptExt))
		if err == nil {
			return strings.TrimSpace(string(data)), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("read prompt %q: %w", name, err)
		}
	}

	if text, ok := defaultPrompts[name]; ok {
		return text, nil
	}
	if s.initErr != nil {
		return "", fmt.Errorf("load prompt %q: %w", name, s.initErr)
	}
	return "", fmt.Errorf("load prompt %q: %w", name, os.ErrNotExist)
}

// initialise creates the prompt directory, the default files and a README.
// Existing files are left untouched.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	for name, content := range defaultPrompts {
		if err := writeIfMissing(filepath.Join(s.promptDir, name+promptExt), content); err != nil {
			s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
			return
		}
	}

	content := `# cliniq Prompts

This directory contains customisable prompts used by cliniq's answer command.

## Files

- ` + "`answer.txt`" + ` - Asks the model for an answer with cited extractions

## Customisation

Edit any file to customise LLM behaviour. Changes take effect on the next
command.

## Template Fields

Prompts are Go text/template documents rendered with:
- ` + "`.Question`" + ` - The question text
- ` + "`.Chunks`" + ` - Candidate chunks (ID, ArtifactID, ArtifactType, OccurredAt, Text)
- ` + "`.Sentences`" + ` - Top-ranked sentences (SentenceID, ChunkID, Text, Score)

The model's reply must stay a JSON object with "answer" and "extractions";
answers whose citations cannot be verified are withheld.
`
	if err := writeIfMissing(filepath.Join(s.promptDir, "README.md"), content); err != nil {
		s.initErr = err
	}
}

func writeIfMissing(path, content string) error {
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return os.WriteFile(path, []byte(content), 0600)
}
