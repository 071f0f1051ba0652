package model

// Envelope is the incremental-generation payload carried on each
// `data:` line of a chat or content stream.
type Envelope struct {
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason,omitempty"`
}

type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

func NewDeltaEnvelope(content string) Envelope {
	return Envelope{Choices: []Choice{{Delta: Delta{Content: content}}}}
}

// DeltaContent returns choices[0].delta.content, or "" when absent.
func (e Envelope) DeltaContent() string {
	if len(e.Choices) == 0 {
		return ""
	}
	return e.Choices[0].Delta.Content
}
