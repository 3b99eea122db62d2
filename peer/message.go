// Package peer implements the three-message protocol peers use to
// synchronize buckets: Ping and FetchBucket (request/response) and
// Announce (fire-and-forget). Every message is framed as one canonically
// encoded structured-binary payload per stream; the transport is expected
// to have already authenticated the remote's public key before handing a
// connection to this package.
package peer

import (
	"fmt"

	"github.com/bucketmesh/bucketd/bucket"
	"github.com/bucketmesh/bucketd/codec"
)

// MessageType identifies which of the protocol's five frames a payload
// carries.
type MessageType byte

const (
	MsgPingRequest         MessageType = 1
	MsgPingResponse        MessageType = 2
	MsgFetchBucketRequest  MessageType = 3
	MsgFetchBucketResponse MessageType = 4
	MsgAnnounce            MessageType = 5
)

// Status is a Ping responder's position, as seen from its own current
// link for a bucket, relative to the caller's link: Ahead means the
// responder's chain already contains the caller's link.
type Status byte

const (
	StatusNotFound Status = 0
	StatusBehind   Status = 1
	StatusInSync   Status = 2
	StatusAhead    Status = 3
)

// String returns a human-readable name for s.
func (s Status) String() string {
	switch s {
	case StatusNotFound:
		return "not_found"
	case StatusBehind:
		return "behind"
	case StatusInSync:
		return "in_sync"
	case StatusAhead:
		return "ahead"
	default:
		return "unknown"
	}
}

// PingRequest asks the responder to compare its current link for
// BucketID against CurrentLink (the zero Link stands for "I have
// nothing").
type PingRequest struct {
	BucketID    bucket.ID
	CurrentLink codec.Link
}

// PingResponse carries the responder's verdict.
type PingResponse struct {
	Status Status
}

// FetchBucketRequest asks for the responder's authoritative current link
// for a bucket.
type FetchBucketRequest struct {
	BucketID bucket.ID
}

// FetchBucketResponse carries the responder's current link for the
// requested bucket, or the zero Link if the bucket is unknown to it.
type FetchBucketResponse struct {
	CurrentLink codec.Link
}

// Announce is a fire-and-forget notification that a bucket advanced to
// NewLink from PreviousLink (the zero Link for a genesis manifest).
type Announce struct {
	BucketID     bucket.ID
	NewLink      codec.Link
	PreviousLink codec.Link
}

const (
	tagBucketID     byte = 0x01
	tagCurrentLink  byte = 0x02
	tagStatus       byte = 0x03
	tagNewLink      byte = 0x04
	tagPreviousLink byte = 0x05
)

func encodePingRequest(m PingRequest) []byte {
	w := codec.NewWriter()
	w.WriteBytes(tagBucketID, m.BucketID[:])
	w.WriteLink(tagCurrentLink, m.CurrentLink)
	return w.Bytes()
}

func decodePingRequest(data []byte) (PingRequest, error) {
	var m PingRequest
	var haveID bool
	r := codec.NewReader(data)
	for {
		f, ok, err := r.Next()
		if err != nil {
			return PingRequest{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if !ok {
			break
		}
		switch f.Tag {
		case tagBucketID:
			if len(f.Value) != bucket.IDSize {
				return PingRequest{}, fmt.Errorf("%w: bucket id must be %d bytes", ErrMalformed, bucket.IDSize)
			}
			copy(m.BucketID[:], f.Value)
			haveID = true
		case tagCurrentLink:
			l, err := codec.ReadLink(f.Value)
			if err != nil {
				return PingRequest{}, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			m.CurrentLink = l
		default:
			return PingRequest{}, fmt.Errorf("%w: unknown ping request field 0x%02x", ErrMalformed, f.Tag)
		}
	}
	if !haveID {
		return PingRequest{}, fmt.Errorf("%w: ping request missing bucket id", ErrMalformed)
	}
	return m, nil
}

func encodePingResponse(m PingResponse) []byte {
	w := codec.NewWriter()
	w.WriteByte(tagStatus, byte(m.Status))
	return w.Bytes()
}

func decodePingResponse(data []byte) (PingResponse, error) {
	var m PingResponse
	var haveStatus bool
	r := codec.NewReader(data)
	for {
		f, ok, err := r.Next()
		if err != nil {
			return PingResponse{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if !ok {
			break
		}
		switch f.Tag {
		case tagStatus:
			b, err := codec.ByteVal(f.Value)
			if err != nil {
				return PingResponse{}, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			m.Status = Status(b)
			haveStatus = true
		default:
			return PingResponse{}, fmt.Errorf("%w: unknown ping response field 0x%02x", ErrMalformed, f.Tag)
		}
	}
	if !haveStatus {
		return PingResponse{}, fmt.Errorf("%w: ping response missing status", ErrMalformed)
	}
	return m, nil
}

func encodeFetchBucketRequest(m FetchBucketRequest) []byte {
	w := codec.NewWriter()
	w.WriteBytes(tagBucketID, m.BucketID[:])
	return w.Bytes()
}

func decodeFetchBucketRequest(data []byte) (FetchBucketRequest, error) {
	var m FetchBucketRequest
	var haveID bool
	r := codec.NewReader(data)
	for {
		f, ok, err := r.Next()
		if err != nil {
			return FetchBucketRequest{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if !ok {
			break
		}
		switch f.Tag {
		case tagBucketID:
			if len(f.Value) != bucket.IDSize {
				return FetchBucketRequest{}, fmt.Errorf("%w: bucket id must be %d bytes", ErrMalformed, bucket.IDSize)
			}
			copy(m.BucketID[:], f.Value)
			haveID = true
		default:
			return FetchBucketRequest{}, fmt.Errorf("%w: unknown fetch request field 0x%02x", ErrMalformed, f.Tag)
		}
	}
	if !haveID {
		return FetchBucketRequest{}, fmt.Errorf("%w: fetch request missing bucket id", ErrMalformed)
	}
	return m, nil
}

func encodeFetchBucketResponse(m FetchBucketResponse) []byte {
	w := codec.NewWriter()
	w.WriteLink(tagCurrentLink, m.CurrentLink)
	return w.Bytes()
}

func decodeFetchBucketResponse(data []byte) (FetchBucketResponse, error) {
	var m FetchBucketResponse
	r := codec.NewReader(data)
	for {
		f, ok, err := r.Next()
		if err != nil {
			return FetchBucketResponse{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if !ok {
			break
		}
		switch f.Tag {
		case tagCurrentLink:
			l, err := codec.ReadLink(f.Value)
			if err != nil {
				return FetchBucketResponse{}, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			m.CurrentLink = l
		default:
			return FetchBucketResponse{}, fmt.Errorf("%w: unknown fetch response field 0x%02x", ErrMalformed, f.Tag)
		}
	}
	return m, nil
}

func encodeAnnounce(m Announce) []byte {
	w := codec.NewWriter()
	w.WriteBytes(tagBucketID, m.BucketID[:])
	w.WriteLink(tagNewLink, m.NewLink)
	w.WriteLink(tagPreviousLink, m.PreviousLink)
	return w.Bytes()
}

func decodeAnnounce(data []byte) (Announce, error) {
	var m Announce
	var haveID, haveNew bool
	r := codec.NewReader(data)
	for {
		f, ok, err := r.Next()
		if err != nil {
			return Announce{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if !ok {
			break
		}
		switch f.Tag {
		case tagBucketID:
			if len(f.Value) != bucket.IDSize {
				return Announce{}, fmt.Errorf("%w: bucket id must be %d bytes", ErrMalformed, bucket.IDSize)
			}
			copy(m.BucketID[:], f.Value)
			haveID = true
		case tagNewLink:
			l, err := codec.ReadLink(f.Value)
			if err != nil {
				return Announce{}, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			m.NewLink = l
			haveNew = true
		case tagPreviousLink:
			l, err := codec.ReadLink(f.Value)
			if err != nil {
				return Announce{}, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			m.PreviousLink = l
		default:
			return Announce{}, fmt.Errorf("%w: unknown announce field 0x%02x", ErrMalformed, f.Tag)
		}
	}
	if !haveID || !haveNew {
		return Announce{}, fmt.Errorf("%w: announce missing required field", ErrMalformed)
	}
	return m, nil
}
