// Package response defines the flat JSON error payloads of the API.
// Every failure is a small object with a single error string; the HTTP
// status communicates the class.
package response

// Error is the body of every failed API call.
type Error struct {
	Error string `json:"error"`
}

var (
	MissingURLResponse      = Error{Error: "URL is required"}
	InvalidURLResponse      = Error{Error: "Invalid URL"}
	MissingQueryResponse    = Error{Error: "Search query is required"}
	MissingCodeResponse     = Error{Error: "Short code is required"}
	MissingLockFlagResponse = Error{Error: "Locked flag is required"}
	BadRequestResponse      = Error{Error: "Invalid request body"}
	NotFoundResponse        = Error{Error: "Short URL not found"}
	ExpiredResponse         = Error{Error: "Short URL has expired"}
	LockedResponse          = Error{Error: "URL is locked and cannot be deleted"}
	ServerErrorResponse     = Error{Error: "Internal server error"}
)
