package notifications

import "sync"

// PresenceTracker maintains the ephemeral room -> identity-set mapping fed by
// hub join/leave/disconnect signals. State lives only for the process
// lifetime and is rebuilt entirely from currently open connections; nothing
// here is persisted or restored.
type PresenceTracker struct {
	mu    sync.RWMutex
	rooms map[string]map[uint]struct{}
}

// NewPresenceTracker creates an empty PresenceTracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{rooms: make(map[string]map[uint]struct{})}
}

// Join records userID as present in room.
func (p *PresenceTracker) Join(room string, userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rooms[room] == nil {
		p.rooms[room] = make(map[uint]struct{})
	}
	p.rooms[room][userID] = struct{}{}
}

// Leave removes userID from room.
func (p *PresenceTracker) Leave(room string, userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if members, ok := p.rooms[room]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(p.rooms, room)
		}
	}
}

// Members returns the identities currently present in room.
func (p *PresenceTracker) Members(room string) []uint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	members, ok := p.rooms[room]
	if !ok {
		return []uint{}
	}
	result := make([]uint, 0, len(members))
	for userID := range members {
		result = append(result, userID)
	}
	return result
}

// Count returns how many identities are currently present in room.
func (p *PresenceTracker) Count(room string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rooms[room])
}

// IsPresent reports whether userID is currently present in room.
func (p *PresenceTracker) IsPresent(room string, userID uint) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if members, ok := p.rooms[room]; ok {
		_, present := members[userID]
		return present
	}
	return false
}
