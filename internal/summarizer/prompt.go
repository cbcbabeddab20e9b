package summarizer

import (
	"fmt"
	"time"
)

// loadCheckTimeout bounds the model lookup a hosted loader makes.
const loadCheckTimeout = 15 * time.Second

const systemPrompt = "You summarize news articles. Reply with the summary text only: " +
	"no title, no preamble, no bullet points. Keep the language of the article."

func userPrompt(req Request) string {
	return fmt.Sprintf("Summarize the following article in %d to %d words.\n\n%s",
		req.MinLength, req.MaxLength, req.Text)
}

// maxTokens leaves headroom over the word bound for tokenizer overhead.
func maxTokens(req Request) int64 {
	return int64(req.MaxLength*2 + 64)
}
