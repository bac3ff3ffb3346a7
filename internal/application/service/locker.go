package service

import "sync"

// documentLocks serializes mutating operations per document. Each document id
// maps to one mutex held for the duration of a single operation; operations
// on different documents never contend and no operation ever holds two locks,
// so there is no lock-ordering hazard.
type documentLocks struct {
	locks sync.Map // int64 -> *sync.Mutex
}

// acquire locks the mutex for the given document and returns the unlock func
func (l *documentLocks) acquire(documentID int64) func() {
	v, _ := l.locks.LoadOrStore(documentID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
