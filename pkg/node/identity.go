// Package node holds the identity of the local mesh node.
package node

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	// DefaultNodeID is reported until an identifier is explicitly set
	DefaultNodeID = "unknown"

	// GeneratedIDPrefix prefixes identifiers produced by GenerateID
	GeneratedIDPrefix = "user_"
)

// Identity is the mutable identifier stamped as src on built messages.
// The zero value is ready to use and reports DefaultNodeID.
type Identity struct {
	mu  sync.RWMutex
	id  string
	set bool
}

// NewIdentity creates an identity holding id
func NewIdentity(id string) *Identity {
	ident := &Identity{}
	ident.Set(id)
	return ident
}

// Set replaces the node identifier. No validation is performed; the
// empty string is a legal identifier once set.
func (i *Identity) Set(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.id = id
	i.set = true
}

// ID returns the current node identifier
func (i *Identity) ID() string {
	if i == nil {
		return DefaultNodeID
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if !i.set {
		return DefaultNodeID
	}
	return i.id
}

// IsSet reports whether Set has been called
func (i *Identity) IsSet() bool {
	if i == nil {
		return false
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.set
}

// GenerateID returns a fresh identifier of the form user_xxxxxxxx
func GenerateID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return GeneratedIDPrefix + raw[:8]
}
