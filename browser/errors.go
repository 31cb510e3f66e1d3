package browser

import "fmt"

// Fetch failure reasons.
const (
	ReasonNavigation  = "navigation"
	ReasonTimeout     = "timeout"
	ReasonSessionDead = "session_dead"
)

// FetchError reports that a page could not be brought to a stable state after
// all retries. The caller decides whether to skip the listing or abort the
// cycle.
type FetchError struct {
	URL    string
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed (%s): %v", e.URL, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
