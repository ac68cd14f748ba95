package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Returns the prompt content and any error encountered.
	Load(name string) (string, error)

	// Render executes the named template with data.
	Render(name string, data any) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names.
const (
	// PromptAnswer asks the model for an answer with cited extractions.
	// It is a text/template rendered with the question, the candidate
	// chunks and the top-ranked sentences.
	PromptAnswer = "answer"
)
