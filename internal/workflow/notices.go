package workflow

import (
	"fmt"
	"time"
)

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-visible message produced by an intent or a background job.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

const maxPendingNotices = 200

// noticeLocked queues a notice; c.mu must be held.
func (c *Controller) noticeLocked(level NoticeLevel, format string, args ...any) {
	c.notices = append(c.notices, Notice{
		Level:   level,
		Message: fmt.Sprintf(format, args...),
		At:      c.clock.Now().UTC(),
	})
	if over := len(c.notices) - maxPendingNotices; over > 0 {
		c.notices = append([]Notice(nil), c.notices[over:]...)
	}
}

func (c *Controller) notice(level NoticeLevel, format string, args ...any) {
	c.mu.Lock()
	c.noticeLocked(level, format, args...)
	c.mu.Unlock()
}
