package clierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDocumentUsesTaggedDocumentWhenAvailable(t *testing.T) {
	err := &ContainerNotFound{ID: "abc123"}
	doc := ToDocument(err)
	assert.Equal(t, "error", doc.Outcome)
	assert.Equal(t, "abc123", doc.ContainerID)
	assert.Contains(t, doc.Message, "abc123")
}

func TestToDocumentFallsBackForPlainErrors(t *testing.T) {
	err := errors.New("boom")
	doc := ToDocument(err)
	assert.Equal(t, "error", doc.Outcome)
	assert.Equal(t, "boom", doc.Message)
	assert.Empty(t, doc.ContainerID)
}

func TestToDocumentUnwrapsWrappedTaggedErrors(t *testing.T) {
	inner := &DisallowedFeature{ID: "ghcr.io/acme/repo/feature"}
	wrapped := fmt.Errorf("install failed: %w", inner)

	doc := ToDocument(wrapped)
	assert.Equal(t, "ghcr.io/acme/repo/feature", doc.DisallowedFeatureID)
}

func TestLifecycleCommandFailedDocumentCarriesPhaseAndContainer(t *testing.T) {
	err := &LifecycleCommandFailed{
		Phase:       "postCreateCommand",
		ContainerID: "deadbeef",
		Err:         errors.New("exit status 1"),
	}
	doc := ToDocument(err)
	assert.Equal(t, "deadbeef", doc.ContainerID)
	assert.Contains(t, doc.Description, "postCreateCommand")
	assert.ErrorIs(t, err, err.Err)
}

func TestParseErrorUnwrapsToUnderlyingError(t *testing.T) {
	inner := errors.New("unexpected token")
	err := &ParseError{Source: "devcontainer.json", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "devcontainer.json")
}

func TestInvalidFilenameRejectsNonStandardBasename(t *testing.T) {
	err := &InvalidFilename{Path: "/tmp/config.json"}
	assert.Contains(t, err.Error(), "config.json")
	doc := ToDocument(err)
	assert.Equal(t, "error", doc.Outcome)
}
