package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentChunk(t *testing.T) {
	t.Run("inherits bot scope from the document", func(t *testing.T) {
		doc := &Document{ID: "doc-1", BotID: "bot-1", Name: "guide.pdf"}
		ch, err := NewDocumentChunk(doc, 3, "chunk body", []float32{0.1})
		require.NoError(t, err)

		assert.NotEmpty(t, ch.ID)
		assert.Equal(t, "doc-1", ch.DocumentID)
		assert.Equal(t, "bot-1", ch.BotID)
		assert.Equal(t, 3, ch.Metadata.ChunkIndex)
		assert.Equal(t, "guide.pdf", ch.Metadata.DocumentName)
	})

	t.Run("rejects documents without bot scope", func(t *testing.T) {
		_, err := NewDocumentChunk(&Document{ID: "doc-1"}, 0, "x", nil)
		assert.ErrorIs(t, err, ErrChunkBotMismatch)

		_, err = NewDocumentChunk(nil, 0, "x", nil)
		assert.ErrorIs(t, err, ErrChunkBotMismatch)
	})
}
