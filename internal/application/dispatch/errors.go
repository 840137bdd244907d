package dispatch

import "errors"

// ErrNoRepository is returned by the query use cases when no database is configured.
var ErrNoRepository = errors.New("analysis persistence is not configured")
