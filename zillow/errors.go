package zillow

import "fmt"

// SearchError carries the upstream status and body verbatim. Status is 0 for
// transport failures, in which case Err holds the cause.
type SearchError struct {
	Status int
	Body   string
	Err    error
}

func (e *SearchError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("zillow error %d: %v", e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("zillow error %d: %s", e.Status, e.Body)
	case e.Err != nil:
		return e.Err.Error()
	}
	return "zillow error"
}

func (e *SearchError) Unwrap() error { return e.Err }
