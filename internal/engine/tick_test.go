package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineRunsModelToCompletion(t *testing.T) {
	p := smallParams()
	p.MaxSteps = 5
	e := NewEngine(newModel(t, p))
	e.SetInterval(time.Millisecond)

	records, cancel := e.Subscribe(16)
	defer cancel()

	require.NoError(t, e.Run(context.Background()))

	var steps []int
	for i := 0; i < 5; i++ {
		select {
		case rec := <-records:
			steps = append(steps, rec.Step)
		case <-time.After(time.Second):
			t.Fatal("missing record")
		}
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, steps)

	e.View(func(m *CityModel) {
		assert.Equal(t, 5, m.Timestep())
		assert.False(t, m.Running())
	})
}

func TestEngineStopWhilePaused(t *testing.T) {
	e := NewEngine(newModel(t, smallParams()))
	e.SetSpeed(0)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	e.Stop()
	e.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
	e.View(func(m *CityModel) {
		assert.Equal(t, 0, m.Timestep())
	})
}

func TestEngineContextCancel(t *testing.T) {
	e := NewEngine(newModel(t, smallParams()))
	e.SetInterval(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := e.Run(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	e.View(func(m *CityModel) {
		assert.Equal(t, 1, m.Timestep())
	})
}

func TestEngineUnsubscribeClosesChannel(t *testing.T) {
	e := NewEngine(newModel(t, smallParams()))
	records, cancel := e.Subscribe(1)
	cancel()
	cancel()

	_, open := <-records
	assert.False(t, open)

	ok, err := e.Step()
	require.NoError(t, err)
	assert.True(t, ok)

	e.SetSpeed(2)
	assert.Equal(t, 2.0, e.Speed())
}
