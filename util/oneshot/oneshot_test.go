package oneshot_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lambda-feedback/tether/util/oneshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_Resolve_OnlyFirstWins(t *testing.T) {
	f := oneshot.New[int]()

	assert.True(t, f.Resolve(1))
	assert.False(t, f.Resolve(2))
	assert.False(t, f.Abandon())

	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFuture_Then_FiresOnce(t *testing.T) {
	f := oneshot.New[string]()

	var calls []string
	f.Then(func(v string) { calls = append(calls, v) })

	f.Resolve("a")
	f.Resolve("b")

	assert.Equal(t, []string{"a"}, calls)
}

func TestFuture_Then_AfterResolve_RunsImmediately(t *testing.T) {
	f := oneshot.Resolved(42)

	var got int
	f.Then(func(v int) { got = v })

	assert.Equal(t, 42, got)
}

func TestFuture_Abandon_SkipsCallbacks(t *testing.T) {
	f := oneshot.New[int]()

	called := false
	f.Then(func(int) { called = true })

	assert.True(t, f.Abandon())
	assert.False(t, called)

	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, oneshot.ErrAbandoned)

	f.Then(func(int) { called = true })
	assert.False(t, called)
}

func TestFuture_Get_Pending(t *testing.T) {
	f := oneshot.New[int]()

	_, err := f.Get()
	assert.ErrorIs(t, err, oneshot.ErrNotSettled)
	assert.False(t, f.Settled())
}

func TestFuture_Wait_ContextCancelled(t *testing.T) {
	f := oneshot.New[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFuture_ConcurrentResolve(t *testing.T) {
	f := oneshot.New[int]()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if f.Resolve(i) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 1, wins)
	<-f.Done()
}
