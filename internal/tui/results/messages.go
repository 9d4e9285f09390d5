package results

// StatusNotifyMsg reports the outcome of a background action such as an
// export.
type StatusNotifyMsg struct {
	Message string
}
