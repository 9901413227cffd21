package vault

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultFees/internal/model"
)

type countingAPIVersion struct {
	name  string
	calls int32
}

func (c *countingAPIVersion) APIVersion(context.Context, common.Address) (string, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.name, nil
}

func TestVersionsStaticMap(t *testing.T) {
	reader := &countingAPIVersion{name: "0.4.3"}
	versions, err := NewVersions(map[common.Address]string{testVault: "0.3.5"}, reader)
	require.NoError(t, err)

	v, err := versions.Variant(context.Background(), testVault)
	require.NoError(t, err)
	assert.Equal(t, "0.3.5", v.Name)
	assert.Zero(t, reader.calls)
}

func TestVersionsQueriesOnce(t *testing.T) {
	reader := &countingAPIVersion{name: "0.4.2"}
	versions, err := NewVersions(nil, reader)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := versions.Variant(context.Background(), otherStrat)
			assert.NoError(t, err)
			assert.Equal(t, "0.4.2", v.Name)
		}()
	}
	wg.Wait()

	_, err = versions.Variant(context.Background(), otherStrat)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&reader.calls), int32(8))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&reader.calls), int32(1))
}

func TestVersionsRejectUnsupported(t *testing.T) {
	_, err := NewVersions(map[common.Address]string{testVault: "0.2.2"}, nil)
	require.ErrorIs(t, err, model.ErrUnsupportedVersion)

	versions, err := NewVersions(nil, &countingAPIVersion{name: "0.2.2"})
	require.NoError(t, err)
	_, err = versions.Variant(context.Background(), testVault)
	require.ErrorIs(t, err, model.ErrUnsupportedVersion)
}
