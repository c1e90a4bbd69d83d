package chat

import (
	"sync"
)

// ConnManager is the table of live connections, double-indexed the same way
// the rest of the gateway thinks: by connection id for room fan-out, by
// user id for user-scoped delivery. The transport layer owns entry/exit;
// everyone else only reads.
type ConnManager struct {
	mu     sync.RWMutex
	byConn map[string]*Client
	byUser map[string]map[string]*Client
}

func NewConnManager() *ConnManager {
	return &ConnManager{
		byConn: make(map[string]*Client),
		byUser: make(map[string]map[string]*Client),
	}
}

func (m *ConnManager) Add(c *Client) {
	if c == nil || c.ConnID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byConn[c.ConnID] = c
	mm := m.byUser[c.UserID]
	if mm == nil {
		mm = make(map[string]*Client)
		m.byUser[c.UserID] = mm
	}
	mm[c.ConnID] = c
}

func (m *ConnManager) Remove(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byConn[connID]
	if !ok {
		return
	}
	delete(m.byConn, connID)
	if mm := m.byUser[c.UserID]; mm != nil {
		delete(mm, connID)
		if len(mm) == 0 {
			delete(m.byUser, c.UserID)
		}
	}
}

func (m *ConnManager) Get(connID string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byConn[connID]
	return c, ok
}

// ListUser returns all live connections of one user.
func (m *ConnManager) ListUser(userID string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mm := m.byUser[userID]
	if len(mm) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(mm))
	for _, c := range mm {
		out = append(out, c)
	}
	return out
}

// ListAll returns every open connection; used for global fan-out
// (presence changes, online list).
func (m *ConnManager) ListAll() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Client, 0, len(m.byConn))
	for _, c := range m.byConn {
		out = append(out, c)
	}
	return out
}

func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byConn)
}

// Close closes every connection; process shutdown only.
func (m *ConnManager) Close() {
	for _, c := range m.ListAll() {
		c.Close()
	}
}
