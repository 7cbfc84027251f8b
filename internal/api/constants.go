package api

// Request headers.
const (
	// SessionTokenHeader carries the PASETO session token on contributor and dashboard routes.
	SessionTokenHeader = "X-Session-Token"
	// StaffTokenHeader carries a staff grant when creating a dashboard session.
	StaffTokenHeader = "X-Staff-Token"
)

// CacheNoStore is the Cache-Control value of session-scoped responses.
const CacheNoStore = "no-store"

// apiPrefix maps client routes onto gateway routes.
const apiPrefix = "/api/v1"
