package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stockpile/internal/handle"
	"github.com/roach88/stockpile/internal/subsystem"
	"github.com/roach88/stockpile/internal/testutil"
)

func threeRecords() []subsystem.RawItem {
	return []subsystem.RawItem{
		{ItemID: 100, Definition: 5, Quantity: 2, Flags: 0},
		{ItemID: 101, Definition: 5, Quantity: 1, Flags: 0},
		{ItemID: 102, Definition: 6, Quantity: 4, Flags: 1},
	}
}

func TestGetAllItems_EndToEnd(t *testing.T) {
	fake := testutil.NewFakeInventory()
	fake.Handles = []handle.Handle{7}
	fake.Statuses = []subsystem.Result{subsystem.ResultPending, subsystem.ResultOK}
	fake.Items = threeRecords()
	te := setupEngine(t, fake)

	items, err := te.GetAllItems(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Item{
		{InstanceID: 100, Definition: 5, Quantity: 2, Flags: 0},
		{InstanceID: 101, Definition: 5, Quantity: 1, Flags: 0},
		{InstanceID: 102, Definition: 6, Quantity: 4, Flags: 1},
	}, items)

	assert.Equal(t, []testutil.Call{
		{Op: testutil.OpGetAllItems, Handle: 7},
		{Op: testutil.OpResultStatus, Handle: 7, Detail: "Pending"},
		{Op: testutil.OpResultStatus, Handle: 7, Detail: "OK"},
		{Op: testutil.OpSizeItems, Handle: 7, Detail: "count=3"},
		{Op: testutil.OpFillItems, Handle: 7, Detail: "capacity=3 count=3"},
		{Op: testutil.OpDestroyResult, Handle: 7},
	}, fake.Calls())

	assert.Equal(t, 1, fake.DestroyCount(7))
	assert.Empty(t, te.PendingHandles())
	assert.Equal(t, 1, te.sleeper.Calls(), "one sleep after the pending poll")
}

func TestGetAllItems_StartFails(t *testing.T) {
	fake := testutil.NewFakeInventory()
	fake.StartFails = true
	te := setupEngine(t, fake)

	items, err := te.GetAllItems(context.Background())
	assert.Nil(t, items)
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.True(t, IsOperationFailed(err))
	assert.Equal(t, 0, fake.CallCount(testutil.OpResultStatus))
	assert.Equal(t, 0, fake.CallCount(testutil.OpDestroyResult))
}

func TestGetAllItems_StartReturnsInvalidHandle(t *testing.T) {
	fake := testutil.NewFakeInventory()
	fake.StartInvalid = true
	te := setupEngine(t, fake)

	_, err := te.GetAllItems(context.Background())
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.Equal(t, 0, fake.CallCount(testutil.OpResultStatus), "invalid handle must never be polled")
	assert.Equal(t, 0, fake.CallCount(testutil.OpDestroyResult), "invalid handle must never be released")
	assert.Empty(t, te.PendingHandles())
}

func TestGetAllItems_Timeout_LeavesHandlePending(t *testing.T) {
	fake := testutil.NewFakeInventory()
	fake.FinalStatus = subsystem.ResultPending
	te := setupEngine(t, fake)

	items, err := te.GetAllItems(context.Background())
	assert.Nil(t, items)
	require.ErrorIs(t, err, ErrTimeout)

	var ierr *Error
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, handle.Handle(1), ierr.Handle)

	assert.Equal(t, DefaultPollAttempts, fake.CallCount(testutil.OpResultStatus))
	assert.Equal(t, 10*time.Second, te.sleeper.Elapsed())
	assert.Equal(t, 0, fake.CallCount(testutil.OpSizeItems), "fetch never attempted after timeout")
	assert.Equal(t, 0, fake.CallCount(testutil.OpDestroyResult))
	assert.Equal(t, []handle.Handle{1}, te.PendingHandles())

	assert.Equal(t, 1, te.Close())
	assert.Equal(t, 1, fake.DestroyCount(1))
}

func TestGetAllItems_Timeout_RealClock(t *testing.T) {
	if testing.Short() {
		t.Skip("takes ten seconds of real time")
	}

	fake := testutil.NewFakeInventory()
	fake.FinalStatus = subsystem.ResultPending
	e, err := New(fake, newQuietDispatcher(), WithLogger(quietLogger()))
	require.NoError(t, err)
	defer e.Close()

	start := time.Now()
	_, err = e.GetAllItems(context.Background())
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 10*time.Second)
	assert.Less(t, elapsed, 11*time.Second)
}

func TestGetAllItems_ErrorStatusKeepsPolling(t *testing.T) {
	fake := testutil.NewFakeInventory()
	fake.Statuses = []subsystem.Result{subsystem.ResultBusy, subsystem.ResultPending, subsystem.ResultOK}
	fake.Items = threeRecords()[:1]
	te := setupEngine(t, fake)

	items, err := te.GetAllItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 3, fake.CallCount(testutil.OpResultStatus))
}

func TestGetAllItems_ContextCancelled(t *testing.T) {
	fake := testutil.NewFakeInventory()
	fake.FinalStatus = subsystem.ResultPending
	te := setupEngine(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := te.GetAllItems(ctx)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fake.CallCount(testutil.OpResultStatus))
	assert.Equal(t, []handle.Handle{1}, te.PendingHandles())
}

func TestGetAllItems_SizeFails_ReleasesHandle(t *testing.T) {
	fake := testutil.NewFakeInventory()
	fake.SizeFails = true
	te := setupEngine(t, fake)

	items, err := te.GetAllItems(context.Background())
	assert.Nil(t, items)
	assert.ErrorIs(t, err, ErrGetResultItemsFailed)
	assert.Equal(t, 1, fake.DestroyCount(1))
	assert.Empty(t, te.PendingHandles())
	assert.Empty(t, fake.Outstanding())
}

func TestGetAllItems_FillFails_ReleasesHandle(t *testing.T) {
	fake := testutil.NewFakeInventory()
	fake.Items = threeRecords()
	fake.FillFails = true
	te := setupEngine(t, fake)

	items, err := te.GetAllItems(context.Background())
	assert.Nil(t, items, "no partial list on failure")
	assert.ErrorIs(t, err, ErrGetResultItemsFailed)
	assert.Equal(t, 1, fake.DestroyCount(1))
	assert.Empty(t, te.PendingHandles())
}

func TestGetAllItems_ZeroItems(t *testing.T) {
	te := setupEngine(t, nil)

	items, err := te.GetAllItems(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Equal(t, 0, te.fake.CallCount(testutil.OpFillItems), "phase 2 skipped for zero count")
	assert.Equal(t, 1, te.fake.DestroyCount(1))
}

func TestGetAllItems_FillReportsFewer(t *testing.T) {
	fake := testutil.NewFakeInventory()
	fake.Items = threeRecords()
	fake.FillItems = threeRecords()[:2]
	te := setupEngine(t, fake)

	items, err := te.GetAllItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2, "phase 2 count is authoritative")
	assert.Equal(t, ItemInstanceID(100), items[0].InstanceID)
	assert.Equal(t, ItemInstanceID(101), items[1].InstanceID)
}

func TestGetAllItems_FillOverReportsIsClamped(t *testing.T) {
	fake := testutil.NewFakeInventory()
	fake.Items = threeRecords()
	over := uint32(10)
	fake.FillCount = &over
	te := setupEngine(t, fake)

	items, err := te.GetAllItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestGetAllItems_LengthMatchesFillCount(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3} {
		fake := testutil.NewFakeInventory()
		fake.Items = threeRecords()
		fill := uint32(n)
		fake.FillCount = &fill
		te := setupEngine(t, fake)

		items, err := te.GetAllItems(context.Background())
		require.NoError(t, err)
		assert.Len(t, items, n)
	}
}

func TestGetAllItems_Concurrent(t *testing.T) {
	fake := testutil.NewFakeInventory()
	fake.Statuses = []subsystem.Result{subsystem.ResultPending}
	fake.Items = threeRecords()
	te := setupEngine(t, fake)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			items, err := te.GetAllItems(context.Background())
			if err == nil && len(items) != 3 {
				err = errors.New("wrong item count")
			}
			errs[idx] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "worker %d", i)
	}
	assert.Equal(t, workers, fake.CallCount(testutil.OpDestroyResult))
	for h := handle.Handle(1); h <= workers; h++ {
		assert.Equal(t, 1, fake.DestroyCount(h), "handle %d", h)
	}
	assert.Empty(t, fake.Outstanding())
	assert.Empty(t, te.PendingHandles())
}
