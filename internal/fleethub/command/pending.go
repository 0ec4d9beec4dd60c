package command

import (
	"context"
	"sync"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
)

// Pending is the caller's handle on an outbound command.
// It resolves exactly once, to Acknowledged, Failed, TimedOut or Cancelled.
type Pending struct {
	d      *Dispatcher
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	cmd model.Command
	err error
}

// Token returns the correlation token attached to every publish of this command.
func (p *Pending) Token() string {
	return p.cmd.Token
}

// Done is closed once the command reached a terminal status.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result returns a copy of the command and its error. Before Done is closed
// the status is Pending and the error nil.
func (p *Pending) Result() (model.Command, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd, p.err
}

// Wait blocks until the command resolves or ctx is done. Giving up on ctx
// does not cancel the command.
func (p *Pending) Wait(ctx context.Context) (model.Command, error) {
	select {
	case <-p.done:
		return p.Result()
	case <-ctx.Done():
		return p.Result()
	}
}

// Cancel abandons the command. A broker ack arriving afterwards has no effect
// on the registry. It reports whether the command was still pending.
func (p *Pending) Cancel() bool {
	return p.complete(model.CommandStatusCancelled, ErrCommandCancelled, nil)
}

func (p *Pending) attempt() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cmd.Attempts++
	return p.cmd.Attempts
}

// complete moves the command to a terminal status once. onResolve runs under
// the lock, so a concurrent Cancel either precedes it entirely or loses.
func (p *Pending) complete(status model.CommandStatus, err error, onResolve func(model.Command)) bool {
	p.mu.Lock()
	if p.cmd.Status.Terminal() {
		p.mu.Unlock()
		return false
	}
	p.cmd.Status = status
	p.err = err
	if onResolve != nil {
		onResolve(p.cmd)
	}
	cmd := p.cmd
	p.mu.Unlock()

	p.cancel()
	close(p.done)
	p.d.finish(cmd)
	return true
}
