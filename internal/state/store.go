// Package state holds the shared UI state of the shell: connection status,
// agent state, conversation threads, browser tabs, and the transient terminal
// and file-manager buffers. All mutation goes through named mutators on Store;
// each mutator replaces its slice of state atomically under one lock.
package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// AgentState is the coarse activity state of the agent, driving the halo color.
type AgentState string

const (
	StateIdle      AgentState = "idle"
	StatePlanning  AgentState = "planning"
	StateActing    AgentState = "acting"
	StateListening AgentState = "listening"
	StateError     AgentState = "error"
)

// ThoughtType classifies a chat-log entry.
type ThoughtType string

const (
	ThoughtUser     ThoughtType = "user"
	ThoughtSystem   ThoughtType = "system"
	ThoughtAction   ThoughtType = "action"
	ThoughtError    ThoughtType = "error"
	ThoughtPlanning ThoughtType = "planning"
	ThoughtVoice    ThoughtType = "voice"
)

// MainThreadID is the protected default conversation thread. It always exists
// and cannot be removed.
const MainThreadID = "main"

const (
	maxThoughtsPerThread = 50
	maxHistoryItems      = 50
)

// Thread is an independent conversation channel.
type Thread struct {
	ID   string
	Name string
}

// Thought is one chat-log entry within a thread.
type Thought struct {
	ID        string
	Text      string
	Type      ThoughtType
	Timestamp time.Time
	ThreadID  string
}

// Tab is one browser tab. Exactly one tab is active at any time.
type Tab struct {
	ID     string
	Title  string
	URL    string
	Active bool
}

// HistoryItem is one visited page, newest first.
type HistoryItem struct {
	ID        string
	URL       string
	Title     string
	Timestamp time.Time
}

// FileEntry mirrors one directory entry from the backend.
type FileEntry struct {
	Name  string
	IsDir bool
	Size  int64
}

// FileListing is the most recent directory listing from the backend.
type FileListing struct {
	Path    string
	Entries []FileEntry
}

// FileContent is the most recently read file.
type FileContent struct {
	Path    string
	Content string
}

// Gesture is the last recognized hand gesture, overwritten per classifier tick.
type Gesture struct {
	Type      string
	Timestamp time.Time
}

// Store is the single shared mutable structure behind the shell UI. The
// dispatcher goroutine and the UI goroutine both touch it, so every access
// holds the lock; mutators never expose a partially updated view.
type Store struct {
	mu sync.RWMutex

	connected  bool
	agentState AgentState

	threads      []Thread
	activeThread string
	thoughts     map[string][]Thought

	tabs       []Tab
	currentURL string
	history    []HistoryItem

	terminal    []string
	fileListing FileListing
	fileContent FileContent

	lastGesture Gesture
	glitch      bool
	voiceOn     bool
	zenMode     bool

	// fallbackURL is where the surviving tab navigates when the active tab is
	// closed. Product policy, configurable rather than hard-coded.
	fallbackURL string

	onChange func()
}

// New creates a store seeded with the main thread and one tab pointing at the
// fallback URL.
func New(fallbackURL string) *Store {
	s := &Store{
		agentState:   StateIdle,
		threads:      []Thread{{ID: MainThreadID, Name: "Main"}},
		activeThread: MainThreadID,
		thoughts:     make(map[string][]Thought),
		fallbackURL:  fallbackURL,
		currentURL:   fallbackURL,
	}
	s.tabs = []Tab{{ID: uuid.NewString(), Title: "New Tab", URL: fallbackURL, Active: true}}
	return s
}

// SetChangeHandler registers a callback invoked after every mutation. The
// handler runs outside the lock.
func (s *Store) SetChangeHandler(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// notify must be called without the lock held.
func (s *Store) notify() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// --- Connection and agent state ---

// SetConnected records backend connectivity.
func (s *Store) SetConnected(up bool) {
	s.mu.Lock()
	s.connected = up
	s.mu.Unlock()
	s.notify()
}

// Connected reports whether the backend channel is up.
func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// SetAgentState transitions the agent activity state.
func (s *Store) SetAgentState(st AgentState) {
	s.mu.Lock()
	s.agentState = st
	s.mu.Unlock()
	s.notify()
}

// AgentStateNow returns the current agent state.
func (s *Store) AgentStateNow() AgentState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agentState
}

// --- Threads and thoughts ---

// AddThread creates a new conversation thread and makes it active.
func (s *Store) AddThread(name string) Thread {
	t := Thread{ID: uuid.NewString(), Name: name}
	s.mu.Lock()
	s.threads = append(s.threads, t)
	s.activeThread = t.ID
	s.mu.Unlock()
	s.notify()
	return t
}

// RemoveThread deletes a thread and its thought log. Removing the main thread
// is a silent no-op returning false, as is removing an unknown thread.
func (s *Store) RemoveThread(id string) bool {
	if id == MainThreadID {
		return false
	}
	s.mu.Lock()
	idx := -1
	for i, t := range s.threads {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.threads = append(s.threads[:idx], s.threads[idx+1:]...)
	delete(s.thoughts, id)
	if s.activeThread == id {
		s.activeThread = MainThreadID
	}
	s.mu.Unlock()
	s.notify()
	return true
}

// SetActiveThread switches the focused thread. Unknown ids are ignored.
func (s *Store) SetActiveThread(id string) {
	s.mu.Lock()
	for _, t := range s.threads {
		if t.ID == id {
			s.activeThread = id
			break
		}
	}
	s.mu.Unlock()
	s.notify()
}

// ActiveThread returns the id of the focused thread.
func (s *Store) ActiveThread() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeThread
}

// Threads returns a copy of the thread list.
func (s *Store) Threads() []Thread {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Thread, len(s.threads))
	copy(out, s.threads)
	return out
}

// AppendThought appends a thought to its thread, evicting the oldest entries
// beyond the per-thread cap. An empty ThreadID targets the main thread; a
// missing ID gets a generated one.
func (s *Store) AppendThought(t Thought) Thought {
	if t.ThreadID == "" {
		t.ThreadID = MainThreadID
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	s.mu.Lock()
	log := append(s.thoughts[t.ThreadID], t)
	if len(log) > maxThoughtsPerThread {
		log = log[len(log)-maxThoughtsPerThread:]
	}
	s.thoughts[t.ThreadID] = log
	s.mu.Unlock()
	s.notify()
	return t
}

// FinalizeThought replaces the text and type of the thought with the given
// id, or appends it when the id is unknown. The final sync of a streamed
// response arrives this way after its chunks.
func (s *Store) FinalizeThought(t Thought) {
	if t.ThreadID == "" {
		t.ThreadID = MainThreadID
	}
	if t.ID == "" {
		s.AppendThought(t)
		return
	}
	s.mu.Lock()
	log := s.thoughts[t.ThreadID]
	for i := range log {
		if log[i].ID == t.ID {
			log[i].Text = t.Text
			log[i].Type = t.Type
			s.mu.Unlock()
			s.notify()
			return
		}
	}
	s.mu.Unlock()
	s.AppendThought(t)
}

// AppendThoughtChunk concatenates streamed text onto the thought with the
// given id in the thread. When no such thought exists yet the chunk creates
// it, which covers a chunk arriving before its opening thought event.
func (s *Store) AppendThoughtChunk(id, chunk string, typ ThoughtType, threadID string) {
	if threadID == "" {
		threadID = MainThreadID
	}
	s.mu.Lock()
	log := s.thoughts[threadID]
	found := false
	for i := range log {
		if log[i].ID == id {
			log[i].Text += chunk
			found = true
			break
		}
	}
	if !found {
		log = append(log, Thought{
			ID:        id,
			Text:      chunk,
			Type:      typ,
			Timestamp: time.Now(),
			ThreadID:  threadID,
		})
		if len(log) > maxThoughtsPerThread {
			log = log[len(log)-maxThoughtsPerThread:]
		}
	}
	s.thoughts[threadID] = log
	s.mu.Unlock()
	s.notify()
}

// Thoughts returns a copy of a thread's thought log, oldest first.
func (s *Store) Thoughts(threadID string) []Thought {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.thoughts[threadID]
	out := make([]Thought, len(log))
	copy(out, log)
	return out
}

// --- Tabs and history ---

// AddTab opens a new tab, activates it, and records the visit.
func (s *Store) AddTab(url, title string) Tab {
	if title == "" {
		title = "New Tab"
	}
	t := Tab{ID: uuid.NewString(), Title: title, URL: url, Active: true}
	s.mu.Lock()
	for i := range s.tabs {
		s.tabs[i].Active = false
	}
	s.tabs = append(s.tabs, t)
	s.currentURL = url
	s.appendHistoryLocked(url, title)
	s.mu.Unlock()
	s.notify()
	return t
}

// CloseTab removes a tab. Closing the last remaining tab is refused. When the
// active tab closes, activity falls to the first remaining tab and the
// current URL follows it in the same mutation, so no observer ever sees zero
// active tabs or a stale URL.
func (s *Store) CloseTab(id string) bool {
	s.mu.Lock()
	if len(s.tabs) <= 1 {
		s.mu.Unlock()
		return false
	}
	idx := -1
	for i, t := range s.tabs {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	wasActive := s.tabs[idx].Active
	s.tabs = append(s.tabs[:idx], s.tabs[idx+1:]...)
	if wasActive {
		s.tabs[0].Active = true
		if s.tabs[0].URL == "" {
			s.tabs[0].URL = s.fallbackURL
		}
		s.currentURL = s.tabs[0].URL
	}
	s.mu.Unlock()
	s.notify()
	return true
}

// ActivateTab makes one tab active and deactivates all others in the same
// update. Unknown ids leave the state untouched.
func (s *Store) ActivateTab(id string) {
	s.mu.Lock()
	idx := -1
	for i, t := range s.tabs {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	for i := range s.tabs {
		s.tabs[i].Active = i == idx
	}
	s.currentURL = s.tabs[idx].URL
	s.mu.Unlock()
	s.notify()
}

// NavigateActiveTab points the active tab at a URL and records the visit.
func (s *Store) NavigateActiveTab(url string) {
	s.mu.Lock()
	for i := range s.tabs {
		if s.tabs[i].Active {
			s.tabs[i].URL = url
			s.tabs[i].Title = url
			break
		}
	}
	s.currentURL = url
	s.appendHistoryLocked(url, url)
	s.mu.Unlock()
	s.notify()
}

// appendHistoryLocked prepends a history item, trimming to the ring cap.
// Caller holds s.mu.
func (s *Store) appendHistoryLocked(url, title string) {
	item := HistoryItem{ID: uuid.NewString(), URL: url, Title: title, Timestamp: time.Now()}
	s.history = append([]HistoryItem{item}, s.history...)
	if len(s.history) > maxHistoryItems {
		s.history = s.history[:maxHistoryItems]
	}
}

// Tabs returns a copy of the tab list.
func (s *Store) Tabs() []Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tab, len(s.tabs))
	copy(out, s.tabs)
	return out
}

// ActiveTab returns the active tab. The tab invariants guarantee one exists.
func (s *Store) ActiveTab() Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tabs {
		if t.Active {
			return t
		}
	}
	return Tab{}
}

// CurrentURL returns the URL of the active tab.
func (s *Store) CurrentURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentURL
}

// History returns a copy of the visit history, newest first.
func (s *Store) History() []HistoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HistoryItem, len(s.history))
	copy(out, s.history)
	return out
}

// --- Transient panel buffers ---

// SetTerminalOutput replaces the terminal buffer wholesale.
func (s *Store) SetTerminalOutput(lines []string) {
	s.mu.Lock()
	s.terminal = lines
	s.mu.Unlock()
	s.notify()
}

// TerminalOutput returns the current terminal buffer.
func (s *Store) TerminalOutput() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.terminal))
	copy(out, s.terminal)
	return out
}

// SetFileListing replaces the file-manager listing wholesale.
func (s *Store) SetFileListing(l FileListing) {
	s.mu.Lock()
	s.fileListing = l
	s.mu.Unlock()
	s.notify()
}

// FileListingNow returns the current directory listing.
func (s *Store) FileListingNow() FileListing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fileListing
}

// SetFileContent replaces the file-viewer buffer wholesale.
func (s *Store) SetFileContent(c FileContent) {
	s.mu.Lock()
	s.fileContent = c
	s.mu.Unlock()
	s.notify()
}

// FileContentNow returns the currently viewed file.
func (s *Store) FileContentNow() FileContent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fileContent
}

// --- Gesture, glitch, toggles ---

// SetGesture records the last recognized gesture.
func (s *Store) SetGesture(kind string) {
	s.mu.Lock()
	s.lastGesture = Gesture{Type: kind, Timestamp: time.Now()}
	s.mu.Unlock()
	s.notify()
}

// LastGesture returns the most recent gesture.
func (s *Store) LastGesture() Gesture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastGesture
}

// TriggerGlitch raises the glitch flag and clears it after the given
// duration. The deliberate side effect behind the visual glitch transition.
func (s *Store) TriggerGlitch(d time.Duration) {
	s.mu.Lock()
	s.glitch = true
	s.mu.Unlock()
	s.notify()
	time.AfterFunc(d, func() {
		s.mu.Lock()
		s.glitch = false
		s.mu.Unlock()
		s.notify()
	})
}

// Glitching reports whether the glitch flag is raised.
func (s *Store) Glitching() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.glitch
}

// SetVoice toggles voice capture; listening flips the agent state so the halo
// follows.
func (s *Store) SetVoice(on bool) {
	s.mu.Lock()
	s.voiceOn = on
	if on {
		s.agentState = StateListening
	} else if s.agentState == StateListening {
		s.agentState = StateIdle
	}
	s.mu.Unlock()
	s.notify()
}

// VoiceOn reports whether voice capture is enabled.
func (s *Store) VoiceOn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voiceOn
}

// SetZenMode toggles the zen presentation mode.
func (s *Store) SetZenMode(on bool) {
	s.mu.Lock()
	s.zenMode = on
	s.mu.Unlock()
	s.notify()
}

// ZenMode reports whether zen mode is active.
func (s *Store) ZenMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zenMode
}
