package dispatch

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/model"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestDispatcher(registry map[string]model.Model) *Dispatcher {
	return New(registry, func(o *Options) {
		o.Sleep = noSleep
		o.Rand = rand.New(rand.NewSource(1))
	})
}

func TestCallSuccessFirstModel(t *testing.T) {
	primary := model.NewMockModel("primary")
	primary.AddResponse("hi", "hello")

	d := newTestDispatcher(map[string]model.Model{"primary": primary})

	resp, err := d.Call(context.Background(), "story", []string{"primary"}, model.Request{UserText: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, "primary", resp.ModelUsed)
	assert.Equal(t, 1, primary.Calls())
}

func TestCallRetriesTransientThenSucceeds(t *testing.T) {
	flaky := model.NewMockModel("flaky")
	flaky.Err = model.NewError(model.KindOverloaded, "flaky", errors.New("503 overloaded"))
	flaky.FailCount = 2
	flaky.AddResponse("hi", "recovered")

	d := newTestDispatcher(map[string]model.Model{"flaky": flaky})

	resp, err := d.Call(context.Background(), "story", []string{"flaky"}, model.Request{UserText: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text)
	assert.Equal(t, 3, flaky.Calls())
}

func TestCallExhaustsRetriesThenFallsBack(t *testing.T) {
	broken := model.NewMockModel("broken")
	broken.Err = model.NewError(model.KindOverloaded, "broken", errors.New("overloaded"))

	backup := model.NewMockModel("backup")
	backup.AddResponse("hi", "from backup")

	d := newTestDispatcher(map[string]model.Model{"broken": broken, "backup": backup})

	resp, err := d.Call(context.Background(), "story", []string{"broken", "backup"}, model.Request{UserText: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "from backup", resp.Text)
	assert.Equal(t, "backup", resp.ModelUsed)
	assert.Equal(t, 3, broken.Calls(), "default is 2 retries, 3 attempts total")
	assert.Equal(t, 1, backup.Calls())
}

func TestCallFatalRequestNoRetryNoFallback(t *testing.T) {
	bad := model.NewMockModel("bad")
	bad.Err = model.NewError(model.KindMalformed, "bad", errors.New("400 invalid request"))

	backup := model.NewMockModel("backup")
	backup.AddResponse("hi", "never used")

	d := newTestDispatcher(map[string]model.Model{"bad": bad, "backup": backup})

	_, err := d.Call(context.Background(), "story", []string{"bad", "backup"}, model.Request{UserText: "hi"})
	require.Error(t, err)
	assert.True(t, model.IsFatalRequest(err))
	assert.Equal(t, 1, bad.Calls(), "malformed requests must not be retried")
	assert.Equal(t, 0, backup.Calls(), "malformed requests must not fall back")
}

func TestCallAllModelsFail(t *testing.T) {
	a := model.NewMockModel("a")
	a.Err = model.NewError(model.KindOverloaded, "a", errors.New("down"))
	b := model.NewMockModel("b")
	b.Err = model.NewError(model.KindTimeout, "b", errors.New("timeout"))

	d := newTestDispatcher(map[string]model.Model{"a": a, "b": b})

	resp, err := d.Call(context.Background(), "story", []string{"a", "b"}, model.Request{UserText: "hi"})
	require.Error(t, err)
	assert.Nil(t, resp, "no partial output when every model fails")

	var me *model.Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, model.KindTimeout, me.Kind, "last error wins")
}

func TestCallStripsMismatchedCacheBinding(t *testing.T) {
	m := model.NewMockModel("fallback-model")
	m.AddResponse("hi", "ok")

	d := newTestDispatcher(map[string]model.Model{"fallback-model": m})

	req := model.Request{
		UserText:   "hi",
		CacheRef:   "cachedContents/abc",
		CacheModel: "primary-model",
	}
	_, err := d.Call(context.Background(), "story", []string{"fallback-model"}, req)
	require.NoError(t, err)

	got := m.Requests()[0]
	assert.Empty(t, got.CacheRef, "binding prepared for another model must be stripped")
	assert.Empty(t, got.CacheModel)
}

func TestCallKeepsMatchingCacheBinding(t *testing.T) {
	m := model.NewMockModel("primary-model")
	m.AddResponse("hi", "ok")

	d := newTestDispatcher(map[string]model.Model{"primary-model": m})

	req := model.Request{
		UserText:   "hi",
		CacheRef:   "cachedContents/abc",
		CacheModel: "primary-model",
	}
	_, err := d.Call(context.Background(), "story", []string{"primary-model"}, req)
	require.NoError(t, err)

	got := m.Requests()[0]
	assert.Equal(t, "cachedContents/abc", got.CacheRef)
}

func TestCallUnregisteredModelSkipped(t *testing.T) {
	m := model.NewMockModel("real")
	m.AddResponse("hi", "ok")

	d := newTestDispatcher(map[string]model.Model{"real": m})

	resp, err := d.Call(context.Background(), "story", []string{"ghost", "real"}, model.Request{UserText: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "real", resp.ModelUsed)
}

func TestCallNoModels(t *testing.T) {
	d := newTestDispatcher(nil)
	_, err := d.Call(context.Background(), "story", nil, model.Request{})
	require.Error(t, err)
}

func TestCallContextCanceled(t *testing.T) {
	slow := model.NewMockModel("slow")
	slow.Err = model.NewError(model.KindOverloaded, "slow", errors.New("down"))

	d := newTestDispatcher(map[string]model.Model{"slow": slow})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Call(ctx, "story", []string{"slow"}, model.Request{})
	require.Error(t, err)
}

func TestBackoffJitterBounds(t *testing.T) {
	d := New(nil, func(o *Options) {
		o.InitialBackoff = time.Second
		o.Rand = rand.New(rand.NewSource(42))
	})
	for attempt := 0; attempt < 3; attempt++ {
		base := time.Duration(1<<uint(attempt)) * time.Second
		for i := 0; i < 100; i++ {
			got := d.backoff(attempt)
			assert.GreaterOrEqual(t, got, time.Duration(float64(base)*0.75))
			assert.LessOrEqual(t, got, time.Duration(float64(base)*1.25))
		}
	}
}
