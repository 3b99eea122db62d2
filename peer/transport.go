package peer

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bucketmesh/bucketd/bucket"
	"github.com/bucketmesh/bucketd/codec"
	"github.com/bucketmesh/bucketd/identity"
)

// maxFrameLen bounds a single message's payload so a hostile or confused
// peer cannot make Serve or Client allocate without limit.
const maxFrameLen = 1 << 24 // 16 MiB

// Conn is one authenticated, message-framed stream to a peer. Exactly one
// message is written and, for request types, exactly one is read back per
// call; the connection is otherwise opaque transport.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer

	// RemotePeer identifies who is on the other end. The transport is
	// expected to have authenticated this identity before Conn is handed
	// to this package.
	RemotePeer() identity.PublicKey
}

// Dialer opens a new Conn to peer. Implementations are responsible for
// authenticating peer's identity as part of the handshake.
type Dialer interface {
	Dial(ctx context.Context, peer identity.PublicKey) (Conn, error)
}

// writeFrame writes one message as msgType(1) || uvarint-length || payload.
func writeFrame(w io.Writer, msgType MessageType, payload []byte) error {
	var head [1 + binary.MaxVarintLen64]byte
	head[0] = byte(msgType)
	n := binary.PutUvarint(head[1:], uint64(len(payload)))
	if _, err := w.Write(head[:1+n]); err != nil {
		return fmt.Errorf("peer: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("peer: write frame payload: %w", err)
	}
	return nil
}

// readFrame reads one message previously written by writeFrame.
func readFrame(r *bufio.Reader) (MessageType, []byte, error) {
	typeByte, err := r.ReadByte()
	if err != nil {
		return 0, nil, fmt.Errorf("peer: read frame type: %w", err)
	}

	length, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read frame length: %v", ErrMalformed, err)
	}
	if length > maxFrameLen {
		return 0, nil, fmt.Errorf("%w: frame length %d exceeds maximum", ErrMalformed, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("%w: read frame payload: %v", ErrMalformed, err)
	}

	return MessageType(typeByte), payload, nil
}

// Client issues the three peer RPCs over connections opened by a Dialer.
type Client struct {
	Dialer Dialer
}

// NewClient returns a Client that dials peers through d.
func NewClient(d Dialer) *Client {
	return &Client{Dialer: d}
}

func (c *Client) roundTrip(ctx context.Context, peer identity.PublicKey, reqType MessageType, payload []byte) (MessageType, []byte, error) {
	if deadline, ok := ctx.Deadline(); ok && !deadline.IsZero() {
		if err := ctx.Err(); err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
		}
	}

	conn, err := c.Dialer.Dial(ctx, peer)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: dial: %v", ErrPeerUnreachable, err)
	}
	defer conn.Close()

	if err := writeFrame(conn, reqType, payload); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}

	respType, respPayload, err := readFrame(bufio.NewReader(conn))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}
	return respType, respPayload, nil
}

// Ping asks peer to compare its own current link for bucketID against
// currentLink (the zero Link for "I have nothing").
func (c *Client) Ping(ctx context.Context, peer identity.PublicKey, bucketID bucket.ID, currentLink codec.Link) (Status, error) {
	req := PingRequest{BucketID: bucketID, CurrentLink: currentLink}
	respType, payload, err := c.roundTrip(ctx, peer, MsgPingRequest, encodePingRequest(req))
	if err != nil {
		return 0, err
	}
	if respType != MsgPingResponse {
		return 0, fmt.Errorf("%w: expected ping response, got type %d", ErrUnexpectedResponse, respType)
	}
	resp, err := decodePingResponse(payload)
	if err != nil {
		return 0, err
	}
	return resp.Status, nil
}

// FetchBucket asks peer for its authoritative current link for bucketID.
// The zero Link means peer does not know the bucket.
func (c *Client) FetchBucket(ctx context.Context, peer identity.PublicKey, bucketID bucket.ID) (codec.Link, error) {
	req := FetchBucketRequest{BucketID: bucketID}
	respType, payload, err := c.roundTrip(ctx, peer, MsgFetchBucketRequest, encodeFetchBucketRequest(req))
	if err != nil {
		return codec.Link{}, err
	}
	if respType != MsgFetchBucketResponse {
		return codec.Link{}, fmt.Errorf("%w: expected fetch bucket response, got type %d", ErrUnexpectedResponse, respType)
	}
	resp, err := decodeFetchBucketResponse(payload)
	if err != nil {
		return codec.Link{}, err
	}
	return resp.CurrentLink, nil
}

// Announce tells peer that bucketID advanced to newLink from previousLink
// (the zero Link for a genesis manifest). It is fire-and-forget: the
// message is written and the connection closed without waiting for or
// expecting a response.
func (c *Client) Announce(ctx context.Context, peer identity.PublicKey, bucketID bucket.ID, newLink, previousLink codec.Link) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}

	conn, err := c.Dialer.Dial(ctx, peer)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", ErrPeerUnreachable, err)
	}
	defer conn.Close()

	msg := Announce{BucketID: bucketID, NewLink: newLink, PreviousLink: previousLink}
	if err := writeFrame(conn, MsgAnnounce, encodeAnnounce(msg)); err != nil {
		return fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}
	return nil
}

// Handler responds to inbound peer RPCs. Ping and FetchBucket answer with
// a value; HandleAnnounce has no response to give since Announce is
// fire-and-forget.
type Handler interface {
	// Ping reports this node's position relative to req.CurrentLink for
	// req.BucketID.
	Ping(remote identity.PublicKey, req PingRequest) (PingResponse, error)

	// FetchBucket returns the current link this node holds for
	// req.BucketID, or the zero Link if it is unknown.
	FetchBucket(remote identity.PublicKey, req FetchBucketRequest) (FetchBucketResponse, error)

	// HandleAnnounce records a peer-advertised bucket advance. Errors are
	// not reported back to remote; implementations log or ignore them.
	HandleAnnounce(remote identity.PublicKey, msg Announce)
}

// Serve reads exactly one message from conn, dispatches it to handler, and
// for request message types writes back the encoded response. It returns
// after handling that single message, matching the one-message-per-stream
// framing rule; callers loop over accepted connections themselves.
func Serve(conn Conn, handler Handler) error {
	msgType, payload, err := readFrame(bufio.NewReader(conn))
	if err != nil {
		return err
	}

	remote := conn.RemotePeer()

	switch msgType {
	case MsgPingRequest:
		req, err := decodePingRequest(payload)
		if err != nil {
			return err
		}
		resp, err := handler.Ping(remote, req)
		if err != nil {
			return fmt.Errorf("peer: ping handler: %w", err)
		}
		return writeFrame(conn, MsgPingResponse, encodePingResponse(resp))

	case MsgFetchBucketRequest:
		req, err := decodeFetchBucketRequest(payload)
		if err != nil {
			return err
		}
		resp, err := handler.FetchBucket(remote, req)
		if err != nil {
			return fmt.Errorf("peer: fetch bucket handler: %w", err)
		}
		return writeFrame(conn, MsgFetchBucketResponse, encodeFetchBucketResponse(resp))

	case MsgAnnounce:
		msg, err := decodeAnnounce(payload)
		if err != nil {
			return err
		}
		handler.HandleAnnounce(remote, msg)
		return nil

	default:
		return fmt.Errorf("%w: 0x%02x", ErrUnknownMessageType, msgType)
	}
}
