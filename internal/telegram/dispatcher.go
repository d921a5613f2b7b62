package telegram

import "sync"

// Dispatcher serializes work per user: two actions from the same user never
// run concurrently, while distinct users proceed in parallel.
type Dispatcher struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{locks: make(map[int64]*userLock)}
}

// Do runs fn holding the user's lock.
func (d *Dispatcher) Do(userID int64, fn func()) {
	l := d.acquire(userID)
	l.mu.Lock()
	defer func() {
		l.mu.Unlock()
		d.release(userID, l)
	}()
	fn()
}

func (d *Dispatcher) acquire(userID int64) *userLock {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[userID]
	if !ok {
		l = &userLock{}
		d.locks[userID] = l
	}
	l.refs++
	return l
}

func (d *Dispatcher) release(userID int64, l *userLock) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(d.locks, userID)
	}
}
