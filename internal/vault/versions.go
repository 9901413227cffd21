package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/singleflight"

	"vaultFees/internal/version"
)

// APIVersionReader queries the release string of a vault.
type APIVersionReader interface {
	APIVersion(ctx context.Context, vault common.Address) (string, error)
}

// Versions resolves vault releases from a static map, falling back to apiVersion().
type Versions struct {
	reader APIVersionReader

	mu    sync.RWMutex
	known map[common.Address]version.Variant
	group singleflight.Group
}

// NewVersions builds a resolver. Static entries must name supported releases.
func NewVersions(static map[common.Address]string, reader APIVersionReader) (*Versions, error) {
	known := make(map[common.Address]version.Variant, len(static))
	for addr, name := range static {
		v, err := version.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("vault %s: %w", addr.Hex(), err)
		}
		known[addr] = v
	}
	return &Versions{reader: reader, known: known}, nil
}

// Variant returns the release of a vault.
func (v *Versions) Variant(ctx context.Context, vault common.Address) (version.Variant, error) {
	v.mu.RLock()
	variant, ok := v.known[vault]
	v.mu.RUnlock()
	if ok {
		return variant, nil
	}
	if v.reader == nil {
		return version.Variant{}, fmt.Errorf("no version for vault %s", vault.Hex())
	}

	res, err, _ := v.group.Do(vault.Hex(), func() (interface{}, error) {
		name, err := v.reader.APIVersion(ctx, vault)
		if err != nil {
			return nil, fmt.Errorf("api version of %s: %w", vault.Hex(), err)
		}
		variant, err := version.Lookup(name)
		if err != nil {
			return nil, err
		}
		v.mu.Lock()
		v.known[vault] = variant
		v.mu.Unlock()
		return variant, nil
	})
	if err != nil {
		return version.Variant{}, err
	}
	return res.(version.Variant), nil
}
