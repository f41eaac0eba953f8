package llm

import (
	"fmt"
	"strings"
)

// SystemPrompt frames every synthesis call.
const SystemPrompt = `You are a scientific research assistant who synthesizes information from trusted sources.

Goals:
- Provide concise, precise answers to scientific questions using the supplied context.
- Cite every factual claim with the provided source identifiers (for example, [W1] or [A2]).
- If the context is insufficient, state that clearly and suggest the next question to clarify.

Sources:
- Wikipedia snippets labeled as [W*]
- arXiv papers labeled as [A*]

Style:
- Favor short paragraphs or tight bullet points.
- Keep a "References" section listing the cited IDs and their URLs.
- Use the conversation history if provided; it may later include longer memory.

For example, a proper layout of the answer is (content is illustrative only):
<proper layout>
The Bla bla bla. Also, lorem ipsum dolor sit amet, consectetur adipiscing elit [W1].
The key points are:
- Point one with details [A2].
- Point two with more details.

The conclusion is that...

References:
[W1] https://en.wikipedia.org/wiki/Example
[A2] https://arxiv.org/abs/1234.56789
<proper layout>
`

// BuildSynthesisPrompt assembles the user-side content for one synthesis
// call: the question plus the tagged evidence block. Conversation history
// travels separately as role-tagged messages.
func BuildSynthesisPrompt(question, evidenceBlock string) string {
	if strings.TrimSpace(evidenceBlock) == "" {
		evidenceBlock = "No external context provided."
	}

	return fmt.Sprintf(`User question:
%s

Available context:
%s

Instructions:
- Synthesize a clear, concise answer using the provided sources.
- Cite each claim with the source identifiers (e.g., [W1], [A2]).
- Add a short References section listing the cited IDs with their URLs.
- If information is missing, say so explicitly and suggest a follow-up question.`,
		question, evidenceBlock)
}
