package analysis

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// truncateContentByTokens truncates content so that its token count does not
// exceed tokenLimit for the given model. A limit of zero or less disables
// truncation. The cut point is found with a binary search on runes for the
// longest prefix within the limit.
func truncateContentByTokens(content, model string, tokenLimit int) (string, error) {
	if tokenLimit <= 0 {
		return content, nil
	}

	totalTokens := llms.CountTokens(model, content)
	if totalTokens <= tokenLimit {
		return content, nil
	}
	log.Debugf("OCR text uses %d tokens, truncating to %d", totalTokens, tokenLimit)

	runes := []rune(content)
	low := 0
	high := len(runes)
	validCut := 0

	for low <= high {
		mid := (low + high) / 2
		if llms.CountTokens(model, string(runes[:mid])) <= tokenLimit {
			validCut = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}

	truncated := string(runes[:validCut])
	if llms.CountTokens(model, truncated) > tokenLimit {
		return "", fmt.Errorf("truncated content still exceeds the token limit")
	}
	return truncated, nil
}
