package connector

import "errors"

// Sentinel errors shared by the registry and the providers. Callers
// branch with errors.Is; the wrapped form carries the detail.
var (
	// ErrNoToken indicates the provider matched a remote but has no
	// credential configured. Distinct from a request failure so the CLI
	// can tell the user which variable to set.
	ErrNoToken = errors.New("no access token configured")

	// ErrNoMatch indicates no registered connector recognizes any of
	// the repository's remotes.
	ErrNoMatch = errors.New("no matching remote found")

	// ErrAmbiguous indicates more than one connector matched and the
	// caller must disambiguate with a type filter.
	ErrAmbiguous = errors.New("more than one matching remote found")

	// ErrUnsupported indicates the provider cannot perform the
	// requested operation (e.g. GitHub comment deletion on issues the
	// token cannot administer).
	ErrUnsupported = errors.New("operation not supported by this connector")
)
