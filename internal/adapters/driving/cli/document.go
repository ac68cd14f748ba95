package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

// documentExts are the file extensions read as artifact or citation documents.
var documentExts = map[string]bool{".yaml": true, ".yml": true, ".json": true}

func isDocument(path string) bool {
	return documentExts[strings.ToLower(filepath.Ext(path))]
}

// decodeDocument decodes YAML or JSON data into v. The document is parsed
// as YAML, then re-encoded as JSON so the domain types' JSON field names
// and codecs apply to both formats.
func decodeDocument(data []byte, v any) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if raw == nil {
		return fmt.Errorf("%w: empty document", domain.ErrInvalidInput)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := json.Unmarshal(encoded, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// readArtifacts reads one artifact or a list of artifacts from path.
// Artifacts without a source are attributed to the file name.
func readArtifacts(path string) ([]domain.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, domain.ErrInvalidInput, err)
	}

	var artifacts []domain.Artifact
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		err = decodeDocument(data, &artifacts)
	} else {
		var a domain.Artifact
		err = decodeDocument(data, &a)
		artifacts = []domain.Artifact{a}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	for i := range artifacts {
		if artifacts[i].Source == "" {
			artifacts[i].Source = filepath.Base(path)
		}
	}
	return artifacts, nil
}
