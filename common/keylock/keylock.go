package keylock

import (
	"context"
	"sync"
	"time"

	"emperror.dev/errors"
)

var ErrLockTimeout = errors.NewPlain("timed out waiting for lock")

type bucket struct {
	expires time.Time
	handle  int64
	// closed when the lock is released
	released chan struct{}
}

// KeyLock is a key based lock with ttl's on the held locks, so a forgotten unlock
// doesn't block the key forever
type KeyLock[K comparable] struct {
	locks map[K]*bucket
	mu    sync.Mutex
	c     int64
}

func NewKeyLock[K comparable]() *KeyLock[K] {
	return &KeyLock[K]{
		locks: make(map[K]*bucket),
	}
}

// Lock blocks until the key is locked, the context is done or the held lock's ttl expires.
// The returned handle has to be passed to Unlock, it guards against unlocking
// a key that expired and has since been locked by someone else.
func (kl *KeyLock[K]) Lock(ctx context.Context, key K, ttl time.Duration) (int64, error) {
	for {
		handle, wait, expires := kl.tryLock(key, ttl)
		if handle != -1 {
			return handle, nil
		}

		timer := time.NewTimer(time.Until(expires))
		select {
		case <-wait:
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return -1, ErrLockTimeout
		}
		timer.Stop()
	}
}

// TryLock returns -1 if the key is currently held
func (kl *KeyLock[K]) TryLock(key K, ttl time.Duration) int64 {
	handle, _, _ := kl.tryLock(key, ttl)
	return handle
}

func (kl *KeyLock[K]) tryLock(key K, ttl time.Duration) (int64, <-chan struct{}, time.Time) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	now := time.Now()
	if b, ok := kl.locks[key]; ok && now.Before(b.expires) {
		return -1, b.released, b.expires
	} else if ok {
		// expired, wake up anyone waiting on it
		close(b.released)
	}

	kl.c++
	kl.locks[key] = &bucket{
		handle:   kl.c,
		expires:  now.Add(ttl),
		released: make(chan struct{}),
	}

	return kl.c, nil, time.Time{}
}

func (kl *KeyLock[K]) Unlock(key K, handle int64) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	// only release if the caller is the one holding the lock
	if b, ok := kl.locks[key]; ok && b.handle == handle {
		delete(kl.locks, key)
		close(b.released)
	}
}

// Do runs fn while holding the lock for key
func (kl *KeyLock[K]) Do(ctx context.Context, key K, ttl time.Duration, fn func() error) error {
	h, err := kl.Lock(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer kl.Unlock(key, h)

	return fn()
}
