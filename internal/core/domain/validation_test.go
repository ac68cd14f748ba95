package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIssueType_IsWarning(t *testing.T) {
	for _, w := range []IssueType{IssueWhitespaceMismatch, IssueCaseMismatch} {
		assert.True(t, w.IsWarning(), w)
	}
	for _, e := range []IssueType{
		IssueMissingProvenance, IssueInvalidChunkReference, IssueInvalidOffsets,
		IssueTextMismatch, IssueArtifactMismatch,
	} {
		assert.False(t, e.IsWarning(), e)
	}
}
