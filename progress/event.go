// Package progress fans upload progress out to any number of listeners and
// serves it to browsers as server-sent events.
package progress

// Event is one progress notification. Complete marks the terminal event of
// an upload; Error carries a machine-readable failure code when the upload
// did not succeed.
type Event struct {
	Progress int    `json:"progress"`
	Complete bool   `json:"complete,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Finished is the terminal event of a successful upload.
func Finished() Event {
	return Event{Progress: 100, Complete: true}
}

// Failed is the terminal event of an upload that stopped at progress.
func Failed(progress int, code string) Event {
	return Event{Progress: progress, Complete: true, Error: code}
}
