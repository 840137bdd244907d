package ai

import "errors"

// ErrQuotaExceeded indicates the narration model answered HTTP 429 (quota or rate limit).
var ErrQuotaExceeded = errors.New("ai quota exceeded")
