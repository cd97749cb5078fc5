package answer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const systemPrompt = `You are an expert assistant. Answer ONLY from the CONTEXT when it is relevant.
- If the answer is not in the context, say so clearly.
- Cite document sources as [#i].
- Use [M] for relevant user memories.
- Be clear and concise.
`

const noResults = "(no relevant results)"

// Generator produces a completion for a prompt. Satisfied by the LLM
// transport client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Answerer turns a question into a grounded answer.
type Answerer struct {
	assembler *Assembler
	generator Generator
	logger    *zap.Logger
}

// NewAnswerer creates an Answerer.
func NewAnswerer(assembler *Assembler, generator Generator, logger *zap.Logger) *Answerer {
	return &Answerer{assembler: assembler, generator: generator, logger: logger}
}

// Answer retrieves context for query and asks the model. An empty retrieval
// still reaches the model with an explicit placeholder so it can say the
// answer is not in the corpus.
func (a *Answerer) Answer(ctx context.Context, query, userID string) (string, error) {
	block, err := a.assembler.BuildContext(ctx, query, userID)
	if err != nil {
		return "", fmt.Errorf("building context: %w", err)
	}
	if block == "" {
		block = noResults
	}

	prompt := fmt.Sprintf(`%s
QUESTION: %s
CONTEXT:
%s
Instructions:
1) If the context contains the answer, give it and cite the [#] sources.
2) If it does not, say so and suggest next steps.
`, systemPrompt, query, block)

	a.logger.Debug("asking model",
		zap.String("user_id", userID),
		zap.Int("prompt_chars", len(prompt)),
	)

	return a.generator.Generate(ctx, prompt)
}
