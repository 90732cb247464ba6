package session

import (
	"sync"

	"go.uber.org/zap"
)

// Session holds the caller's bearer token and tells the session-scoped
// caches when the user logs out.
type Session struct {
	logger *zap.SugaredLogger

	mtx           sync.Mutex
	token         string
	subscriberSeq uint64
	subscribers   []subscriber
}

type subscriber struct {
	id       uint64
	callback func()
}

type Option func(*Session)

func WithToken(token string) Option {
	return func(session *Session) {
		session.token = token
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(session *Session) {
		session.logger = logger
	}
}

func New(opts ...Option) *Session {
	session := &Session{}

	// Apply options
	for _, opt := range opts {
		opt(session)
	}

	// Apply defaults
	if session.logger == nil {
		session.logger = zap.NewNop().Sugar()
	}

	return session
}

func (session *Session) Token() string {
	session.mtx.Lock()
	defer session.mtx.Unlock()

	return session.token
}

func (session *Session) SetToken(token string) {
	session.mtx.Lock()
	defer session.mtx.Unlock()

	session.token = token
}

// OnLogout registers a callback that runs on each Logout, after the ones
// registered before it.
func (session *Session) OnLogout(callback func()) (unsubscribe func()) {
	session.mtx.Lock()
	defer session.mtx.Unlock()

	session.subscriberSeq++
	id := session.subscriberSeq

	session.subscribers = append(session.subscribers, subscriber{id: id, callback: callback})

	return func() {
		session.mtx.Lock()
		defer session.mtx.Unlock()

		for i, subscriber := range session.subscribers {
			if subscriber.id == id {
				session.subscribers = append(session.subscribers[:i:i], session.subscribers[i+1:]...)

				break
			}
		}
	}
}

// Logout forgets the token and runs the OnLogout callbacks synchronously.
func (session *Session) Logout() {
	session.mtx.Lock()

	session.token = ""
	subscribers := append([]subscriber{}, session.subscribers...)

	session.mtx.Unlock()

	session.logger.Infof("logging out, notifying %d subscribers", len(subscribers))

	for _, subscriber := range subscribers {
		subscriber.callback()
	}
}
