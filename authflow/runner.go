package authflow

import (
	"context"
	"fmt"
)

// CommandKind selects the flow step a Command runs.
type CommandKind int

const (
	CmdSubmitConsumerCredentials CommandKind = iota + 1
	CmdSubmitVerifierPin
	CmdLoadPersisted
	CmdDeauthorize
)

func (k CommandKind) String() string {
	switch k {
	case CmdSubmitConsumerCredentials:
		return "SubmitConsumerCredentials"
	case CmdSubmitVerifierPin:
		return "SubmitVerifierPin"
	case CmdLoadPersisted:
		return "LoadPersisted"
	case CmdDeauthorize:
		return "Deauthorize"
	}
	return "Unknown"
}

// Command asks the Runner to execute one step.
type Command struct {
	Kind        CommandKind
	ConsumerKey string
	Secret      string
	PIN         string
}

func SubmitConsumerCredentials(key, secret string) Command {
	return Command{Kind: CmdSubmitConsumerCredentials, ConsumerKey: key, Secret: secret}
}

func SubmitVerifierPin(pin string) Command {
	return Command{Kind: CmdSubmitVerifierPin, PIN: pin}
}

func LoadPersisted() Command { return Command{Kind: CmdLoadPersisted} }

func Deauthorize() Command { return Command{Kind: CmdDeauthorize} }

// Event reports the outcome of a Command.
type Event struct {
	Command  Command
	Snapshot Snapshot
	Err      error
}

// Runner executes Commands against a Flow one at a time from a single
// goroutine and publishes an Event per Command.
type Runner struct {
	flow     *Flow
	commands chan Command
	events   chan Event
}

// NewRunner returns a Runner with the given channel buffer size.
func NewRunner(flow *Flow, buffer int) *Runner {
	return &Runner{
		flow:     flow,
		commands: make(chan Command, buffer),
		events:   make(chan Event, buffer),
	}
}

func (r *Runner) Events() <-chan Event { return r.events }

// Submit queues cmd, blocking until there is room or ctx is done.
func (r *Runner) Submit(ctx context.Context, cmd Command) error {
	select {
	case r.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes commands until ctx is cancelled, then closes Events.
// Cancellation also aborts the step in progress through its context.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.events)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-r.commands:
			snap, err := r.execute(ctx, cmd)
			select {
			case r.events <- Event{Command: cmd, Snapshot: snap, Err: err}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (r *Runner) execute(ctx context.Context, cmd Command) (Snapshot, error) {
	switch cmd.Kind {
	case CmdSubmitConsumerCredentials:
		return r.flow.SubmitConsumerCredentials(ctx, cmd.ConsumerKey, cmd.Secret)
	case CmdSubmitVerifierPin:
		return r.flow.SubmitVerifierPin(ctx, cmd.PIN)
	case CmdLoadPersisted:
		return r.flow.LoadPersisted(ctx)
	case CmdDeauthorize:
		return r.flow.Deauthorize(ctx)
	}
	return r.flow.Snapshot(), fmt.Errorf("authflow: unknown command %d", cmd.Kind)
}
