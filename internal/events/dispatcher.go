package events

import (
	"fmt"
	"sync"

	"github.com/giantswarm/multibranch/pkg/logging"
)

// Listener is told about the children a project owns after each change.
type Listener interface {
	TopologyChanged(project string, children []string)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(project string, children []string)

// TopologyChanged implements Listener.
func (f ListenerFunc) TopologyChanged(project string, children []string) {
	f(project, children)
}

// Dispatcher fans topology notifications out to its listeners without
// making the caller wait. A panicking listener is logged and otherwise
// ignored.
//
// Every listener has its own mailbox. Notifications for one listener are
// delivered one at a time in the order they were posted; a notification
// that is still waiting is replaced by a newer one for the same project.
type Dispatcher struct {
	mu        sync.RWMutex
	mailboxes []*mailbox

	// wg counts notifications waiting in or being handled by a mailbox.
	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given listeners.
func NewDispatcher(listeners ...Listener) *Dispatcher {
	d := &Dispatcher{}
	for _, l := range listeners {
		d.mailboxes = append(d.mailboxes, newMailbox(l))
	}
	return d
}

// Subscribe adds a listener.
func (d *Dispatcher) Subscribe(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mailboxes = append(d.mailboxes, newMailbox(l))
}

// TopologyChanged posts the notification to every listener's mailbox.
func (d *Dispatcher) TopologyChanged(project string, children []string) {
	d.mu.RLock()
	mailboxes := append([]*mailbox(nil), d.mailboxes...)
	d.mu.RUnlock()

	for _, m := range mailboxes {
		m.post(d, project, append([]string(nil), children...))
	}
}

// Wait blocks until every notification posted so far has been handled or
// replaced.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

type mailbox struct {
	listener Listener

	mu sync.Mutex
	// order lists projects with a waiting notification, oldest first.
	order   []string
	pending map[string][]string
	// draining is set while a goroutine delivers from this mailbox.
	draining bool
}

func newMailbox(l Listener) *mailbox {
	return &mailbox{listener: l, pending: make(map[string][]string)}
}

func (m *mailbox) post(d *Dispatcher, project string, children []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, waiting := m.pending[project]; waiting {
		logging.Debug("events", "Replacing waiting topology of %s", project)
	} else {
		m.order = append(m.order, project)
		d.wg.Add(1)
	}
	m.pending[project] = children

	if !m.draining {
		m.draining = true
		go m.drain(d)
	}
}

func (m *mailbox) drain(d *Dispatcher) {
	for {
		m.mu.Lock()
		if len(m.order) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		project := m.order[0]
		m.order = m.order[1:]
		children := m.pending[project]
		delete(m.pending, project)
		m.mu.Unlock()

		m.deliver(project, children)
		d.wg.Done()
	}
}

func (m *mailbox) deliver(project string, children []string) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("events", fmt.Errorf("%v", r), "Topology listener panicked for project %s", project)
		}
	}()
	m.listener.TopologyChanged(project, children)
}
