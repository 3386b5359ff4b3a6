package common

// SessionTokenHeaderName is the gRPC metadata key carrying the session token
// on protected calls.
const SessionTokenHeaderName = "session_token"

// Upload metadata keys sent alongside the blob on Upload.
const (
	ExtensionHeaderName  = "x-extension"
	VisibilityHeaderName = "x-visibility"
)
