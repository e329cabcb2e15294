package stub

import (
	"context"
	"sync"

	"github.com/YaTut1901/liquid-ip-sub001/internal/venue"
)

// Oracle is a scriptable decryption oracle. Requests are recorded;
// resolution happens only when the test calls Resolve.
type Oracle struct {
	mu sync.Mutex

	// Requested counts decryption requests per handle.
	Requested map[string]int

	resolved map[string][]byte
}

// NewOracle creates an oracle with nothing requested or resolved.
func NewOracle() *Oracle {
	return &Oracle{
		Requested: make(map[string]int),
		resolved:  make(map[string][]byte),
	}
}

// Compile-time interface check.
var _ venue.DecryptionOracle = (*Oracle)(nil)

// RequestDecryption records the request. Fire-and-forget.
func (o *Oracle) RequestDecryption(_ context.Context, handle string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Requested[handle]++
	return nil
}

// Resolve makes a handle readable, as if the external oracle completed.
func (o *Oracle) Resolve(handle string, plaintext []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resolved[handle] = append([]byte(nil), plaintext...)
}

// IsResolved reports whether the handle has been resolved.
func (o *Oracle) IsResolved(_ context.Context, handle string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.resolved[handle]
	return ok, nil
}

// ReadResolved returns the plaintext, or ErrNotResolved before Resolve.
func (o *Oracle) ReadResolved(_ context.Context, handle string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	pt, ok := o.resolved[handle]
	if !ok {
		return nil, venue.ErrNotResolved
	}
	return append([]byte(nil), pt...), nil
}
