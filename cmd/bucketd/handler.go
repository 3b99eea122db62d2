package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bucketmesh/bucketd/identity"
	"github.com/bucketmesh/bucketd/metastore"
	"github.com/bucketmesh/bucketd/peer"
	"github.com/bucketmesh/bucketd/sync"
)

// requestTimeout bounds the work peer.Handler does on behalf of one
// inbound request; peer.Handler's methods carry no context of their own.
const requestTimeout = 30 * time.Second

// bucketdHandler adapts sync.Manager to peer.Handler. It lives in
// cmd/bucketd rather than package peer because sync already imports peer
// for peer.Client and peer.Status; peer importing sync back to reuse
// ComputeStatus would cycle.
type bucketdHandler struct {
	Mgr *sync.Manager
	Log *slog.Logger
}

var _ peer.Handler = (*bucketdHandler)(nil)

func (h *bucketdHandler) Ping(remote identity.PublicKey, req peer.PingRequest) (peer.PingResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	status, err := h.Mgr.ComputeStatus(ctx, remote, req.BucketID, req.CurrentLink)
	if err != nil {
		return peer.PingResponse{}, err
	}
	return peer.PingResponse{Status: status}, nil
}

func (h *bucketdHandler) FetchBucket(remote identity.PublicKey, req peer.FetchBucketRequest) (peer.FetchBucketResponse, error) {
	rec, err := h.Mgr.Meta.GetBucket(req.BucketID)
	if err != nil {
		if errors.Is(err, metastore.ErrNotFound) {
			return peer.FetchBucketResponse{}, nil
		}
		return peer.FetchBucketResponse{}, err
	}
	return peer.FetchBucketResponse{CurrentLink: rec.CurrentLink}, nil
}

func (h *bucketdHandler) HandleAnnounce(remote identity.PublicKey, msg peer.Announce) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := h.Mgr.HandleAnnounce(ctx, remote, msg.BucketID, msg.NewLink); err != nil {
		h.Log.Warn("announce rejected", "peer", remote.String(), "bucket", msg.BucketID, "error", err)
	}
}
