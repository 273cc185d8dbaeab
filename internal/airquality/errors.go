package airquality

import "fmt"

// RemoteDataError reports a response that could not be turned into
// observations: transport failure, quota, or a malformed body.
type RemoteDataError struct {
	Reason string
	Err    error
}

func (e *RemoteDataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("air quality api: %s: %v", e.Reason, e.Err)
	}
	return "air quality api: " + e.Reason
}

func (e *RemoteDataError) Unwrap() error {
	return e.Err
}
