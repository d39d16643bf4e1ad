package ai

import (
	"crew-orchestrator/internal/domain/ports/adapter"

	"github.com/pkoukk/tiktoken-go"
)

// countMessageTokens estimates prompt tokens locally with tiktoken, keeping
// per-stage token logging off the provider's metered endpoints. Unknown
// models fall back to cl100k_base; the 4-token per-message overhead follows
// the OpenAI chat format accounting.
func countMessageTokens(model string, messages []adapter.Message) (int, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0, err
		}
	}
	total := 0
	for _, m := range messages {
		total += 4
		total += len(enc.Encode(m.Role, nil, nil))
		total += len(enc.Encode(m.Content, nil, nil))
	}
	return total, nil
}
