package objstore

import "errors"

// Common errors returned by object store operations.
//
// Check them with errors.Is():
//
//	if errors.Is(err, objstore.ErrRefNotFound) {
//	    // store is empty, no task has ever been committed
//	}
var (
	// ErrNotRepository is returned when the path is not inside a git
	// repository, as opposed to the task ref merely not existing yet.
	ErrNotRepository = errors.New("not a git repository")

	// ErrRefNotFound is returned when the task reference has never been
	// created (no task was ever committed).
	ErrRefNotFound = errors.New("task reference not found")

	// ErrNoIdentity is returned when no commit identity (user.name and
	// user.email) is configured for the repository.
	ErrNoIdentity = errors.New("no commit identity configured")

	// ErrStaleRef is returned when the reference moved between reading
	// the current tree and advancing the ref (a concurrent writer won).
	ErrStaleRef = errors.New("task reference changed concurrently")
)
