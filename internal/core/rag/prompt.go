package rag

import (
	"fmt"
	"strings"

	"github.com/chatlas-ai/chatlas/internal/models"
)

// contextInstruction directs the model to ground its answers in the
// retrieved documents without quoting them as "the documents", and to
// admit uncertainty instead of fabricating.
const contextInstruction = `请优先根据以下参考文档来回答用户的问题。回答时不需要提及"根据文档"等字眼，用自然的语气回复即可。如果参考文档中确实没有相关信息，请坦诚告知用户你暂时没有这方面的信息，而不是自行编造答案。`

// BuildContextPrompt appends the retrieved contexts to the bot's system
// prompt as labeled blocks inside a <context> wrapper. With no contexts the
// base prompt is returned unchanged.
func BuildContextPrompt(systemPrompt string, contexts []models.RetrievedContext) string {
	if len(contexts) == 0 {
		return systemPrompt
	}

	blocks := make([]string, len(contexts))
	for i, ctx := range contexts {
		blocks[i] = fmt.Sprintf("[Document %d]\n%s", i+1, ctx.Content)
	}

	return fmt.Sprintf("%s\n\n%s\n\n<context>\n%s\n</context>",
		systemPrompt, contextInstruction, strings.Join(blocks, "\n\n"))
}
