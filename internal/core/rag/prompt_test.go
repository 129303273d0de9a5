package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatlas-ai/chatlas/internal/models"
)

func TestBuildContextPrompt(t *testing.T) {
	t.Run("no contexts returns base prompt unchanged", func(t *testing.T) {
		got := BuildContextPrompt("You are a helpful assistant.", nil)
		assert.Equal(t, "You are a helpful assistant.", got)
	})

	t.Run("contexts become numbered document blocks", func(t *testing.T) {
		contexts := []models.RetrievedContext{
			{Content: "Refunds take 5 days.", Similarity: 0.9},
			{Content: "Support is 24/7.", Similarity: 0.7},
		}
		got := BuildContextPrompt("Base prompt.", contexts)

		assert.Contains(t, got, "Base prompt.")
		assert.Contains(t, got, "[Document 1]\nRefunds take 5 days.")
		assert.Contains(t, got, "[Document 2]\nSupport is 24/7.")
		assert.Contains(t, got, "<context>")
		assert.Contains(t, got, "</context>")
		assert.Contains(t, got, contextInstruction)
	})

	t.Run("empty base prompt still carries contexts", func(t *testing.T) {
		got := BuildContextPrompt("", []models.RetrievedContext{{Content: "fact"}})
		assert.Contains(t, got, "[Document 1]\nfact")
	})
}
