package orchestrator

import "github.com/jivedev/jivecore/internal/model"

// sessionActor serializes all read-modify-write traffic against one
// ExecutionSession through a single goroutine draining a buffered channel,
// per §5's "single serialized apply-update queue" and the teacher's own
// channel-based worker idiom.
type sessionActor struct {
	state   *model.ExecutionSession
	updates chan func(*model.ExecutionSession)
	done    chan struct{}
}

func newSessionActor(state *model.ExecutionSession) *sessionActor {
	a := &sessionActor{
		state:   state,
		updates: make(chan func(*model.ExecutionSession), 64),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *sessionActor) run() {
	for {
		select {
		case fn := <-a.updates:
			fn(a.state)
		case <-a.done:
			for {
				select {
				case fn := <-a.updates:
					fn(a.state)
				default:
					return
				}
			}
		}
	}
}

// apply runs fn against the session's state on its owning goroutine and
// blocks until it has run, giving callers synchronous read-modify-write
// semantics without needing their own lock.
func (a *sessionActor) apply(fn func(*model.ExecutionSession)) {
	ack := make(chan struct{})
	a.updates <- func(st *model.ExecutionSession) {
		fn(st)
		close(ack)
	}
	<-ack
}

// snapshot returns a defensive copy of the session's current state.
func (a *sessionActor) snapshot() model.ExecutionSession {
	var out model.ExecutionSession
	a.apply(func(st *model.ExecutionSession) {
		out = *st
		out.Plan = append([]model.TaskSlot(nil), st.Plan...)
		out.Updates = append([]model.ProgressUpdate(nil), st.Updates...)
		out.AffectedPaths = append([]string(nil), st.AffectedPaths...)
	})
	return out
}

func (a *sessionActor) stop() {
	close(a.done)
}
