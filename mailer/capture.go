package mailer

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Capture is an in-memory Gateway for tests. It records every mail and
// can be told to fail.
type Capture struct {
	mu    sync.Mutex
	mails []Mail
	fail  bool
}

// NewCapture creates an empty Capture.
func NewCapture() *Capture {
	return &Capture{}
}

// Send records the mail, or fails if SetFail(true) was called.
func (c *Capture) Send(_ context.Context, mail Mail) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return "", errors.New("capture mailer: send disabled")
	}
	c.mails = append(c.mails, mail)
	return uuid.NewString(), nil
}

// SetFail makes subsequent Send calls fail (or succeed again).
func (c *Capture) SetFail(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = fail
}

// Sent returns a copy of everything recorded so far.
func (c *Capture) Sent() []Mail {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Mail, len(c.mails))
	copy(out, c.mails)
	return out
}

// Last returns the most recent mail, or false when none were sent.
func (c *Capture) Last() (Mail, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.mails) == 0 {
		return Mail{}, false
	}
	return c.mails[len(c.mails)-1], true
}

var _ Gateway = (*Capture)(nil)
