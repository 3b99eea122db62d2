package peer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bucketmesh/bucketd/identity"
)

// mapAddressBook is a fixed identity.PublicKey -> address lookup for tests.
type mapAddressBook map[identity.PublicKey]string

func (m mapAddressBook) AddrFor(peer identity.PublicKey) (string, bool) {
	addr, ok := m[peer]
	return addr, ok
}

func newTestIdentity(t *testing.T) (identity.SecretKey, identity.PublicKey) {
	t.Helper()
	sk, pub, err := identity.Generate()
	require.NoError(t, err)
	return sk, pub
}

func TestTCP_DialAndServe_AuthenticatesBothSides(t *testing.T) {
	serverSK, serverPub := newTestIdentity(t)
	clientSK, clientPub := newTestIdentity(t)

	handler := newStubHandler()
	handler.pingResp = PingResponse{Status: StatusInSync}

	ln, err := ListenTCP("127.0.0.1:0", serverSK, serverPub, handler)
	require.NoError(t, err)
	defer ln.Close()
	go ln.Serve()

	dialer := &TCPDialer{Self: clientSK, SelfPub: clientPub, Book: mapAddressBook{serverPub: ln.Addr().String()}}
	client := NewClient(dialer)

	status, err := client.Ping(context.Background(), serverPub, sampleBucketID(), sampleLink())
	require.NoError(t, err)
	assert.Equal(t, StatusInSync, status)
	assert.Equal(t, sampleBucketID(), handler.lastPing.BucketID)
}

func TestTCP_Dial_UnknownAddressRejected(t *testing.T) {
	clientSK, clientPub := newTestIdentity(t)
	dialer := &TCPDialer{Self: clientSK, SelfPub: clientPub, Book: mapAddressBook{}}

	_, err := dialer.Dial(context.Background(), identity.PublicKey{})
	assert.ErrorIs(t, err, ErrUnknownAddress)
}

func TestTCP_Dial_RejectsWrongAuthenticatedIdentity(t *testing.T) {
	serverSK, serverPub := newTestIdentity(t)
	clientSK, clientPub := newTestIdentity(t)
	_, impostorExpected := newTestIdentity(t)

	handler := newStubHandler()
	ln, err := ListenTCP("127.0.0.1:0", serverSK, serverPub, handler)
	require.NoError(t, err)
	defer ln.Close()
	go ln.Serve()

	// Address book claims the server is impostorExpected, but the server
	// actually authenticates as serverPub: the dial must be rejected.
	dialer := &TCPDialer{Self: clientSK, SelfPub: clientPub, Book: mapAddressBook{impostorExpected: ln.Addr().String()}}

	_, err = dialer.Dial(context.Background(), impostorExpected)
	assert.ErrorIs(t, err, ErrHandshakeFailed)
}

func TestTCP_Listener_CloseStopsServe(t *testing.T) {
	serverSK, serverPub := newTestIdentity(t)
	ln, err := ListenTCP("127.0.0.1:0", serverSK, serverPub, newStubHandler())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- ln.Serve() }()

	require.NoError(t, ln.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
}
