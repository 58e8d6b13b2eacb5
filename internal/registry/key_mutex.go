package registry

import (
	"sync"

	"github.com/aleister1102/postwatch/internal/models"
	"github.com/rs/zerolog"
)

type keyMutex struct {
	mu   sync.Mutex
	refs int
}

// KeyMutexManager hands out one mutex per monitor key. Entries are reference
// counted and dropped when the last holder unlocks, so removed keys do not leak.
type KeyMutexManager struct {
	logger   zerolog.Logger
	mutexes  map[models.MonitorKey]*keyMutex
	mapMutex sync.Mutex
}

// NewKeyMutexManager creates a new KeyMutexManager
func NewKeyMutexManager(logger zerolog.Logger) *KeyMutexManager {
	return &KeyMutexManager{
		logger:  logger.With().Str("component", "KeyMutexManager").Logger(),
		mutexes: make(map[models.MonitorKey]*keyMutex),
	}
}

// Lock blocks until the key is free and returns the matching unlock function.
func (kmm *KeyMutexManager) Lock(key models.MonitorKey) func() {
	km := kmm.acquire(key)
	km.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			km.mu.Unlock()
			kmm.release(key, km)
		})
	}
}

// Count returns the number of keys currently held or awaited.
func (kmm *KeyMutexManager) Count() int {
	kmm.mapMutex.Lock()
	defer kmm.mapMutex.Unlock()

	return len(kmm.mutexes)
}

func (kmm *KeyMutexManager) acquire(key models.MonitorKey) *keyMutex {
	kmm.mapMutex.Lock()
	defer kmm.mapMutex.Unlock()

	km, exists := kmm.mutexes[key]
	if !exists {
		km = &keyMutex{}
		kmm.mutexes[key] = km
	}
	km.refs++
	return km
}

func (kmm *KeyMutexManager) release(key models.MonitorKey, km *keyMutex) {
	kmm.mapMutex.Lock()
	defer kmm.mapMutex.Unlock()

	km.refs--
	if km.refs == 0 {
		delete(kmm.mutexes, key)
		kmm.logger.Trace().Str("key", key.String()).Msg("Released key mutex")
	}
}
