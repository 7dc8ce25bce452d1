package services

import "sync"

// ChatSession marks an owner as engaged in one live chat.
type ChatSession struct {
	RoomID      string
	OwnerConnID string
}

// activeSessions is the busy tracker: owner username -> live chat session.
// The invariant is at most one entry per username; an entry exists exactly
// while the owner is paired in a live chat.
type activeSessions struct {
	mtx      sync.Mutex
	sessions map[string]ChatSession
}

func newActiveSessions() *activeSessions {
	return &activeSessions{
		sessions: make(map[string]ChatSession),
	}
}

// Mark records the owner as busy. It returns false when the owner already
// has a live session, in which case nothing is overwritten.
func (a *activeSessions) Mark(owner, roomID, connID string) bool {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	if _, ok := a.sessions[owner]; ok {
		return false
	}
	a.sessions[owner] = ChatSession{RoomID: roomID, OwnerConnID: connID}
	return true
}

// IsBusy reports whether the owner has a live chat session.
func (a *activeSessions) IsBusy(owner string) bool {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	_, ok := a.sessions[owner]
	return ok
}

// Release removes the owner's session, if any.
func (a *activeSessions) Release(owner string) {
	a.mtx.Lock()
	delete(a.sessions, owner)
	a.mtx.Unlock()
}

// ReleaseRoom removes the first session matching the roomID. Each accept
// creates a unique room token, so in practice at most one entry matches.
func (a *activeSessions) ReleaseRoom(roomID string) (string, bool) {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	for owner, cs := range a.sessions {
		if cs.RoomID == roomID {
			delete(a.sessions, owner)
			return owner, true
		}
	}
	return "", false
}

// ReleaseConn removes every session owned by the connection and returns the
// removed records. Used on disconnect - the owner vanished mid-chat.
func (a *activeSessions) ReleaseConn(connID string) []ChatSession {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	var removed []ChatSession
	for owner, cs := range a.sessions {
		if cs.OwnerConnID == connID {
			removed = append(removed, cs)
			delete(a.sessions, owner)
		}
	}
	return removed
}

// Len returns the number of owners currently in a live chat.
func (a *activeSessions) Len() int {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return len(a.sessions)
}
