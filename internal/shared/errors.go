package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and store errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrCatalogUnavailable = fmt.Errorf("catalog client unavailable")
	ErrStoreUnavailable   = fmt.Errorf("store unavailable")

	// Sync and enrichment errors
	ErrSnapshotNotFound = fmt.Errorf("collection snapshot not found")
	ErrSyncInProgress   = fmt.Errorf("sync already in progress")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
