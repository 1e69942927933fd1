package transport

// Transport is the byte stream a host supplies to the wallet core.
//
// Every method is polled: when it cannot make progress without blocking it
// returns errs.ErrWouldBlock (and n == 0 for Send/Receive), and the core calls
// it again later. Any other error is treated as a transport failure.
type Transport interface {
	// Connect opens the stream to address ("ip:port").
	Connect(address string) error

	// Send writes a prefix of p and reports how many bytes were accepted.
	Send(p []byte) (int, error)

	// Receive reads into p and reports how many bytes were stored.
	Receive(p []byte) (int, error)

	// Close releases the stream. Closing a closed transport is not an error.
	Close() error
}
