package session

import "sync"

// State is the cross-component UI state a connected session shares: the
// active conversation and whether the sidebar is open. Injected where
// needed, never a package global.
type State struct {
	mu                   sync.RWMutex
	activeConversationID string
	sidebarOpen          bool
}

// NewState creates session state with the sidebar open
func NewState() *State {
	return &State{sidebarOpen: true}
}

// ActiveConversation returns the active conversation id, or "" when none
func (s *State) ActiveConversation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeConversationID
}

// SetActiveConversation switches the active conversation
func (s *State) SetActiveConversation(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeConversationID = conversationID
}

// SidebarOpen reports whether the sidebar is open
func (s *State) SidebarOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sidebarOpen
}

// ToggleSidebar flips the sidebar state
func (s *State) ToggleSidebar() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sidebarOpen = !s.sidebarOpen
}
