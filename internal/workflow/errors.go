package workflow

import (
	"errors"
	"fmt"
)

// ErrRejected marks an intent refused by a precondition. The reason is also
// queued as a notice; callers render it rather than treat it as a failure.
var ErrRejected = errors.New("workflow: intent rejected")

func rejected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// rejectLocked queues an error notice and returns the matching rejection.
func (c *Controller) rejectLocked(format string, args ...any) error {
	c.noticeLocked(NoticeError, format, args...)
	return rejected(format, args...)
}
