package lfs

// LockOwner names the holder of a lock
type LockOwner struct {
	Name string `json:"name"`
}

// Lock is the Git LFS API projection of a lock record
type Lock struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	LockedAt string    `json:"locked_at"`
	Owner    LockOwner `json:"owner"`
}

// LockList is the body of GET /locks
type LockList struct {
	Locks []Lock `json:"locks"`
}

// VerifyList is the body of POST /locks/verify
type VerifyList struct {
	Ours   []Lock `json:"ours"`
	Theirs []Lock `json:"theirs"`
}

// CreateLockRequest is the body of POST /locks
type CreateLockRequest struct {
	Path string `json:"path"`
}

// UnlockRequest is the body of POST /locks/{id}/unlock
type UnlockRequest struct {
	Force bool `json:"force,omitempty"`
}

// LockResponse wraps a single lock, optionally with a message (409 conflicts)
type LockResponse struct {
	Lock    *Lock  `json:"lock,omitempty"`
	Message string `json:"message,omitempty"`
}
