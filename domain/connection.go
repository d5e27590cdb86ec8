package domain

import (
	"chat-relay/errors"
	"fmt"
	"sync"
)

// Handle identifies one live transport connection. It is generated by the transport.
type Handle string

// NoHandle is used where a handle is optional, e.g. a broadcast with no exclusion.
const NoHandle Handle = ""

type State int

const (
	Unauthenticated State = iota
	Authenticated
	Joined
	Closed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case Joined:
		return "joined"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions lists the legal moves out of each state. Closed has none.
var transitions = map[State][]State{
	Unauthenticated: {Authenticated, Closed},
	Authenticated:   {Authenticated, Joined, Closed},
	Joined:          {Joined, Authenticated, Closed},
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Connection is the per-connection state machine driven by the lifecycle controller.
// The user id is set once by Authenticate and never changes afterwards.
type Connection struct {
	mu     sync.Mutex
	handle Handle
	userID UserID
	state  State
}

func NewConnection(handle Handle) *Connection {
	return &Connection{handle: handle, state: Unauthenticated}
}

func (c *Connection) Handle() Handle {
	return c.handle
}

func (c *Connection) UserID() UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Authenticate binds the user id and moves the connection to Authenticated.
func (c *Connection) Authenticate(userID UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Unauthenticated {
		return fmt.Errorf("%w: handle %s is %s", errors.ErrAlreadyRegistered, c.handle, c.state)
	}
	c.userID = userID
	c.state = Authenticated
	return nil
}

// Transition moves the connection to next, or returns ErrInvalidTransition.
// Entering Authenticated must go through Authenticate when coming from Unauthenticated.
func (c *Connection) Transition(next State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Unauthenticated && next == Authenticated {
		return fmt.Errorf("%w: use Authenticate", errors.ErrInvalidTransition)
	}
	if !c.state.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", errors.ErrInvalidTransition, c.state, next)
	}
	c.state = next
	return nil
}

// Close moves the connection to Closed. It returns false if it was already closed.
func (c *Connection) Close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return false
	}
	c.state = Closed
	return true
}
