package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTripOnDisk(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, 1)
	require.NoError(t, err)
	defer c.Close()

	payload := bytes.Repeat([]byte(`{"pc":20250,"op":"JUMPDEST"}`), 1000)
	require.NoError(t, c.Set(Key("trace", "0xabc"), payload))

	// a fresh cache only sees the disk copy
	fresh, err := Open(dir, 1)
	require.NoError(t, err)
	defer fresh.Close()

	got, ok, err := fresh.Get(Key("trace", "0xabc"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, got)

	info, err := os.Stat(fresh.path(Key("trace", "0xabc")))
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(payload)))
	assert.Equal(t, ".zst", filepath.Ext(info.Name()))
}

func TestGetMiss(t *testing.T) {
	c, err := Open(t.TempDir(), 4)
	require.NoError(t, err)
	defer c.Close()

	_, ok, err := c.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBlobFetchesOnce(t *testing.T) {
	c, err := Open("", 4)
	require.NoError(t, err)
	defer c.Close()

	var calls int32
	fetch := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("trace"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := c.Blob(context.Background(), "k", fetch)
			assert.NoError(t, err)
			assert.Equal(t, "trace", string(data))
		}()
	}
	wg.Wait()

	_, err = c.Blob(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(10))

	before := atomic.LoadInt32(&calls)
	_, err = c.Blob(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func TestBlobDoesNotCacheErrors(t *testing.T) {
	c, err := Open(t.TempDir(), 4)
	require.NoError(t, err)
	defer c.Close()

	boom := errors.New("node timeout")
	_, err = c.Blob(context.Background(), "k", func(context.Context) ([]byte, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	_, ok, err := c.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoize(t *testing.T) {
	c, err := Open(t.TempDir(), 4)
	require.NoError(t, err)
	defer c.Close()

	type decimals struct {
		Vault    string `json:"vault"`
		Decimals uint8  `json:"decimals"`
	}
	calls := 0
	fetch := func(context.Context) (decimals, error) {
		calls++
		return decimals{Vault: "0x1", Decimals: 6}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Memoize(context.Background(), c, Key("decimals", "0x1"), fetch)
		require.NoError(t, err)
		assert.Equal(t, uint8(6), got.Decimals)
	}
	assert.Equal(t, 1, calls)
}
