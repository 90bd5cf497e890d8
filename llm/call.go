package llm

import (
	"context"
	"strings"
)

// thinkingParamErrorSignals are substrings that identify a backend rejecting
// the request because of unsupported thinking parameters.
var thinkingParamErrorSignals = []string{
	"enable_thinking",
	"reasoning_effort",
	"unknown parameter",
	"unexpected keyword",
	"extra_forbidden",
	"not permitted",
}

// Call invokes the client once, retrying exactly once with thinking
// parameters stripped when the first attempt fails with an
// unsupported-parameter error. The retried result is tagged in its metadata
// so callers can observe that the fallback occurred.
func Call(ctx context.Context, client Client, req Request) (*CallResult, error) {
	result, err := client.Chat(ctx, req)
	if err == nil {
		return result, nil
	}

	if len(req.Thinking) == 0 || !looksLikeThinkingParamError(err) {
		return nil, err
	}

	retry := req
	retry.Thinking = nil
	result, retryErr := client.Chat(ctx, retry)
	if retryErr != nil {
		return nil, retryErr
	}
	result.Metadata.ThinkingStripped = true
	result.Metadata.ThinkingRetryError = err.Error()
	return result, nil
}

func looksLikeThinkingParamError(err error) bool {
	text := strings.ToLower(err.Error())
	for _, signal := range thinkingParamErrorSignals {
		if strings.Contains(text, signal) {
			return true
		}
	}
	return false
}
