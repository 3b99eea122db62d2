package peer

import "errors"

var (
	// ErrMalformed indicates a received frame violates the wire format.
	ErrMalformed = errors.New("peer: malformed message")

	// ErrUnknownMessageType indicates a frame's message type byte does not
	// name any operation this protocol version understands.
	ErrUnknownMessageType = errors.New("peer: unknown message type")

	// ErrPeerUnreachable indicates an outbound RPC could not be completed
	// before its deadline; transient, never retried within the same flow.
	ErrPeerUnreachable = errors.New("peer: unreachable")

	// ErrUnexpectedResponse indicates a response frame's message type did
	// not match the request that was sent.
	ErrUnexpectedResponse = errors.New("peer: unexpected response type")

	// ErrHandshakeFailed indicates the identity handshake that precedes
	// Serve on an accepted or dialed connection did not authenticate.
	ErrHandshakeFailed = errors.New("peer: handshake failed")

	// ErrUnknownAddress indicates a Dialer has no known network address
	// for the requested peer identity.
	ErrUnknownAddress = errors.New("peer: no known address for peer")
)
