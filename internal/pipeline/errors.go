package pipeline

import "errors"

// Sentinel errors for the pipeline's failure domains. Stage errors wrap these
// so callers can branch with errors.Is.
var (
	ErrExtract = errors.New("api doc extraction failed")
	ErrRender  = errors.New("site render failed")
	ErrVerify  = errors.New("link verification failed")
	ErrPublish = errors.New("publish failed")
)
