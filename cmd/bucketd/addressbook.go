package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/bucketmesh/bucketd/identity"
)

// addressBook is a static, file-loaded mapping from peer identity to its
// peer-protocol address and blob-transport base URL. Peer discovery is out
// of scope; operators maintain this file directly, one line per known peer:
//
//	<hex pubkey> <peer host:port> <blob http://host:port>
type addressBook struct {
	peerAddrs map[identity.PublicKey]string
	blobAddrs map[identity.PublicKey]string
}

func newAddressBook() *addressBook {
	return &addressBook{
		peerAddrs: make(map[identity.PublicKey]string),
		blobAddrs: make(map[identity.PublicKey]string),
	}
}

// AddrFor implements peer.AddressBook.
func (b *addressBook) AddrFor(peer identity.PublicKey) (string, bool) {
	addr, ok := b.peerAddrs[peer]
	return addr, ok
}

// BlobAddrFor implements blob.AddressBook.
func (b *addressBook) BlobAddrFor(peer identity.PublicKey) (string, bool) {
	addr, ok := b.blobAddrs[peer]
	return addr, ok
}

// loadAddressBook reads the peers file at path. A missing file yields an
// empty, usable book: a fresh node has no known peers until an operator
// populates one.
func loadAddressBook(path string) (*addressBook, error) {
	book := newAddressBook()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return book, nil
		}
		return nil, fmt.Errorf("bucketd: open peers file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("bucketd: peers file line %d: want 3 fields, got %d", lineNo, len(fields))
		}

		raw, err := hex.DecodeString(fields[0])
		if err != nil || len(raw) != identity.KeySize {
			return nil, fmt.Errorf("bucketd: peers file line %d: invalid public key", lineNo)
		}
		pub, err := identity.PublicKeyFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("bucketd: peers file line %d: %w", lineNo, err)
		}

		book.peerAddrs[pub] = fields[1]
		book.blobAddrs[pub] = fields[2]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("bucketd: read peers file: %w", err)
	}
	return book, nil
}
