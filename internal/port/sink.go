package port

// Sink receives the output of a fetch session. The engine delivers
// chunks strictly in byte-offset order, with no gaps or overlaps, and
// calls exactly one of End or Error at most once per session. After an
// abort neither is called.
//
// Callbacks are invoked from the session's pump goroutine; a slow Sink
// therefore applies backpressure to the fetch. The chunk slice is only
// valid for the duration of the call.
type Sink interface {
	// Data delivers the next chunk of the resource
	Data(p []byte)

	// End signals successful, verified completion
	End()

	// Error signals terminal failure
	Error(err error)
}
