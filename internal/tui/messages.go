package tui

// sessionUpdateMsg signals that the controller's state changed; the model
// re-reads the snapshot and history.
type sessionUpdateMsg struct{}

// toggleFailedMsg carries a toggle error (e.g. capability unavailable).
type toggleFailedMsg struct {
	Err error
}
