package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostSimAllocFree(t *testing.T) {
	sim := NewHostSim(HostSimConfig{MaxBytes: 100})

	a, err := sim.Alloc(60)
	require.NoError(t, err)
	assert.Equal(t, 60, a.Size())

	_, err = sim.Alloc(41)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	_, err = sim.Alloc(-1)
	assert.Error(t, err)

	require.NoError(t, sim.Free(a))
	assert.Error(t, sim.Free(a), "double free")
	assert.Zero(t, sim.Stats().LiveBytes)

	other := NewHostSim(DefaultHostSimConfig())
	b, err := other.Alloc(4)
	require.NoError(t, err)
	assert.ErrorIs(t, sim.Free(b), ErrForeignMemory)
}

func TestHostSimTransfers(t *testing.T) {
	ctx := context.Background()
	sim := NewHostSim(DefaultHostSimConfig())
	mem, err := sim.Alloc(4)
	require.NoError(t, err)

	require.NoError(t, sim.Upload(ctx, mem, []byte{1, 2, 3, 4}))
	out := make([]byte, 4)
	require.NoError(t, sim.Download(ctx, out, mem))
	assert.Equal(t, []byte{1, 2, 3, 4}, out)

	assert.Error(t, sim.Upload(ctx, mem, []byte{1}), "size mismatch")

	require.NoError(t, sim.Free(mem))
	assert.Error(t, sim.Download(ctx, out, mem), "freed memory")
}

func TestHostSimFaultInjection(t *testing.T) {
	ctx := context.Background()
	sim := NewHostSim(DefaultHostSimConfig())
	mem, err := sim.Alloc(1)
	require.NoError(t, err)

	sim.FailNext(2)
	assert.ErrorIs(t, sim.Upload(ctx, mem, []byte{1}), ErrInjectedFault)
	assert.ErrorIs(t, sim.Download(ctx, []byte{0}, mem), ErrInjectedFault)
	assert.NoError(t, sim.Upload(ctx, mem, []byte{1}))
	assert.Equal(t, int64(1), sim.Stats().Uploads)
}

func TestHostSimStartTransfers(t *testing.T) {
	for _, async := range []bool{false, true} {
		sim := NewHostSim(HostSimConfig{Async: async})
		mem, err := sim.Alloc(2)
		require.NoError(t, err)

		require.NoError(t, sim.StartUpload(mem, []byte{9, 8}).Wait(context.Background()))
		out := make([]byte, 2)
		require.NoError(t, sim.StartDownload(out, mem).Wait(context.Background()))
		assert.Equal(t, []byte{9, 8}, out)
	}
}

func TestTransferCompleteOnce(t *testing.T) {
	tr := NewTransfer("upload")
	tr.Complete(nil)
	tr.Complete(ErrInjectedFault)
	assert.NoError(t, tr.Wait(context.Background()))
}
