package conversation

import (
	"sync"
	"time"

	"github.com/geocoder89/mealplanner/internal/domain/menu"
	"github.com/geocoder89/mealplanner/internal/domain/user"
)

// Flow names a multi-step conversation.
type Flow string

const (
	FlowNone           Flow = ""
	FlowLogin          Flow = "login"
	FlowAddUser        Flow = "add_user"
	FlowEditCatalog    Flow = "edit_catalog"
	FlowAssign         Flow = "assign"
	FlowChangePassword Flow = "change_password"
	FlowBroadcast      Flow = "broadcast"
)

type State string

const (
	StateIdle State = ""

	StateLoginUsername State = "login.username"
	StateLoginPassword State = "login.password"

	StateAddUsername State = "add_user.username"
	StateAddFullName State = "add_user.full_name"
	StateAddPassword State = "add_user.password"

	StateCatalogWeek     State = "catalog.week"
	StateCatalogDay      State = "catalog.day"
	StateCatalogDayMenu  State = "catalog.day_menu"
	StateCatalogDeletion State = "catalog.deletion"

	StateAssignUser    State = "assign.user"
	StateAssignWeek    State = "assign.week"
	StateAssignDay     State = "assign.day"
	StateAssignChoices State = "assign.choices"

	StatePasswordCurrent State = "password.current"
	StatePasswordNew     State = "password.new"
	StatePasswordConfirm State = "password.confirm"

	StateBroadcastMessage State = "broadcast.message"
	StateBroadcastConfirm State = "broadcast.confirm"
)

// AwaitingInput reports whether free text is data in s rather than a trigger.
func (s State) AwaitingInput() bool {
	switch s {
	case StateLoginUsername, StateLoginPassword,
		StateAddUsername, StateAddFullName, StateAddPassword,
		StatePasswordCurrent, StatePasswordNew, StatePasswordConfirm,
		StateBroadcastMessage:
		return true
	}
	return false
}

// Secret reports whether input in s is a password.
func (s State) Secret() bool {
	switch s {
	case StateLoginPassword, StateAddPassword,
		StatePasswordCurrent, StatePasswordNew, StatePasswordConfirm:
		return true
	}
	return false
}

// Principal is the logged-in user of a chat.
type Principal struct {
	Username string
	FullName string
	Role     user.Role
}

func (p *Principal) IsAdmin() bool { return p != nil && p.Role == user.RoleAdmin }

// Session is the per-chat conversation state. It is only touched while the
// chat's lock is held.
type Session struct {
	ChatID    int64
	Principal *Principal

	Flow  Flow
	State State

	// Target is the username whose assignments the assign flow edits.
	Target string
	Slot   menu.Slot
	Kind   menu.Kind
	Fields map[string]string
}

func (s *Session) start(f Flow, st State) {
	s.Flow = f
	s.State = st
	s.Target = ""
	s.Slot = menu.Slot{}
	s.Kind = ""
	s.Fields = map[string]string{}
}

// end drops the flow and everything it accumulated; the login stays.
func (s *Session) end() {
	s.Flow = FlowNone
	s.State = StateIdle
	s.Target = ""
	s.Slot = menu.Slot{}
	s.Kind = ""
	s.Fields = nil
}

func (s *Session) inFlow() bool { return s != nil && s.Flow != FlowNone }

type chatEntry struct {
	mu   sync.Mutex
	sess *Session
	seen time.Time
}

// Sessions owns every chat's session. A zero ttl keeps sessions until logout.
type Sessions struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[int64]*chatEntry
	now func() time.Time
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		ttl: ttl,
		m:   make(map[int64]*chatEntry),
		now: time.Now,
	}
}

// Handle is exclusive access to one chat's session until Release.
type Handle struct {
	s    *Sessions
	e    *chatEntry
	chat int64
}

// Acquire blocks until no other event of chatID is being handled.
func (s *Sessions) Acquire(chatID int64) *Handle {
	for {
		s.mu.Lock()
		e, ok := s.m[chatID]
		if !ok {
			e = &chatEntry{}
			s.m[chatID] = e
		}
		s.mu.Unlock()

		e.mu.Lock()

		// Sweep or Release may have dropped the entry between the lookup and the lock.
		s.mu.Lock()
		current := s.m[chatID] == e
		s.mu.Unlock()
		if !current {
			e.mu.Unlock()
			continue
		}

		if e.sess != nil && s.expired(e) {
			e.sess = nil
		}
		return &Handle{s: s, e: e, chat: chatID}
	}
}

func (s *Sessions) expired(e *chatEntry) bool {
	return s.ttl > 0 && s.now().Sub(e.seen) > s.ttl
}

// Session returns the current session or nil.
func (h *Handle) Session() *Session { return h.e.sess }

// Create returns the current session, creating an empty one if needed.
func (h *Handle) Create() *Session {
	if h.e.sess == nil {
		h.e.sess = &Session{ChatID: h.chat}
	}
	return h.e.sess
}

func (h *Handle) Evict() { h.e.sess = nil }

// Release ends exclusive access. A chat left without a session is forgotten.
func (h *Handle) Release() {
	if h.e.sess != nil {
		h.e.seen = h.s.now()
	} else {
		h.s.mu.Lock()
		if h.s.m[h.chat] == h.e {
			delete(h.s.m, h.chat)
		}
		h.s.mu.Unlock()
	}
	h.e.mu.Unlock()
}

// Sweep drops expired sessions and idle entries. It never waits on a chat
// that is being handled.
func (s *Sessions) Sweep() (evicted int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.m {
		if !e.mu.TryLock() {
			continue
		}
		if e.sess != nil && s.expired(e) {
			e.sess = nil
			evicted++
		}
		if e.sess == nil {
			delete(s.m, id)
		}
		e.mu.Unlock()
	}
	return evicted
}

// Len counts live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.m {
		if e.mu.TryLock() {
			if e.sess != nil {
				n++
			}
			e.mu.Unlock()
		} else {
			n++
		}
	}
	return n
}
