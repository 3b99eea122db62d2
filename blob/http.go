package blob

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bucketmesh/bucketd/codec"
	"github.com/bucketmesh/bucketd/identity"
)

// MaxBlobResponseSize bounds a single remote fetch at 1 GiB, so a
// misbehaving or hostile peer cannot make a fetch allocate without limit.
const MaxBlobResponseSize = 1 << 30

const blobPathPrefix = "/_bucketmesh/blob/"

// AddressBook resolves a peer's public key to the base URL of its blob
// HTTP endpoint, e.g. "http://10.0.0.4:8081".
type AddressBook interface {
	BlobAddrFor(peer identity.PublicKey) (string, bool)
}

// HTTPFetcher implements PeerFetcher by issuing a single GET request for a
// content-addressed blob against a peer's HTTP endpoint.
type HTTPFetcher struct {
	Book   AddressBook
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher resolving peers through book.
func NewHTTPFetcher(book AddressBook) *HTTPFetcher {
	return &HTTPFetcher{Book: book, Client: &http.Client{Timeout: 30 * time.Second}}
}

var _ PeerFetcher = (*HTTPFetcher)(nil)

// FetchBlob retrieves the content addressed by hash from peer's blob
// endpoint. The caller (Resolver) is responsible for verifying the
// returned bytes hash to what was requested.
func (f *HTTPFetcher) FetchBlob(ctx context.Context, peer identity.PublicKey, hash codec.Hash) ([]byte, error) {
	base, ok := f.Book.BlobAddrFor(peer)
	if !ok {
		return nil, fmt.Errorf("%w: no known blob address for peer", ErrTransportFailure)
	}

	url := strings.TrimRight(base, "/") + blobPathPrefix + hex.EncodeToString(hash[:])
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTransportFailure, err)
	}

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrTransportFailure, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBlobResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTransportFailure, err)
	}
	return data, nil
}

// HTTPHandler serves a Store's contents by hash. Blobs are content
// addressed and self-verifying, so serving is unauthenticated: anyone who
// already knows a hash may retrieve it.
type HTTPHandler struct {
	Store Store
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	hexHash := strings.TrimPrefix(r.URL.Path, blobPathPrefix)
	raw, err := hex.DecodeString(hexHash)
	if err != nil || len(raw) != codec.HashSize {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var hash codec.Hash
	copy(hash[:], raw)

	data, err := h.Store.Get(hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	_, _ = w.Write(data)
}
