// Package lock serializes attempt creation for one student on one
// application, within a process or across instances through Redis.
package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrNotAcquired = errors.New("lock: not acquired")

// Locker hands out exclusive locks by key. Acquire blocks until the lock is
// held or ctx is done; the returned func releases it.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// PairKey is the lock key of a (company, application, student) pair.
func PairKey(companyID, applicationID, studentID string) string {
	return strings.Join([]string{"attempt", companyID, applicationID, studentID}, ":")
}

// LocalLocker is an in-process keyed mutex.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{} // capacity 1; holding a token means holding the lock
	refs int
}

func NewLocal() *LocalLocker {
	return &LocalLocker{slots: map[string]*slot{}}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, s)
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.drop(key, s)
		})
	}, nil
}

func (l *LocalLocker) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
