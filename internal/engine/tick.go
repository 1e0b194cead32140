// Engine paces a CityModel in real time for live observation.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// pausePoll is how often a paused engine checks for a speed change.
const pausePoll = 100 * time.Millisecond

// Engine drives a model forward at a configurable pace. All access to the
// model goes through the engine's lock, so observers always see whole steps.
type Engine struct {
	mu    sync.RWMutex
	model *CityModel

	speed    float64       // Multiplier: 1.0 = one step per Interval, 0 = paused
	interval time.Duration // Base step interval

	stop chan struct{}
	once sync.Once

	subMu  sync.Mutex
	subs   map[int]chan Record
	nextID int
}

// NewEngine wraps m with default pacing of one step per second.
func NewEngine(m *CityModel) *Engine {
	e := &Engine{
		model:    m,
		speed:    1.0,
		interval: time.Second,
		stop:     make(chan struct{}),
		subs:     make(map[int]chan Record),
	}
	m.OnStep(e.publish)
	return e
}

// SetInterval sets the base step interval.
func (e *Engine) SetInterval(d time.Duration) {
	e.mu.Lock()
	e.interval = d
	e.mu.Unlock()
}

// SetSpeed sets the pace multiplier. Zero or less pauses the engine.
func (e *Engine) SetSpeed(s float64) {
	e.mu.Lock()
	e.speed = s
	e.mu.Unlock()
	slog.Info("engine speed changed", "speed", s)
}

// Speed returns the pace multiplier.
func (e *Engine) Speed() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.speed
}

// Run steps the model until it stops, ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("simulation engine started", "step", e.timestep(), "speed", e.Speed())
	defer func() {
		slog.Info("simulation engine stopped", "step", e.timestep())
	}()

	for {
		e.mu.RLock()
		speed, interval := e.speed, e.interval
		e.mu.RUnlock()

		wait := pausePoll
		if speed > 0 {
			start := time.Now()
			ok, err := e.Step()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			wait = time.Duration(float64(interval)/speed) - time.Since(start)
		}

		if wait <= 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.stop:
				return nil
			default:
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-e.stop:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Stop halts Run. It is safe to call more than once.
func (e *Engine) Stop() {
	e.once.Do(func() { close(e.stop) })
}

// Step advances the model once under the write lock.
func (e *Engine) Step() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.Step()
}

// View runs fn with read access to the model. fn must not step it.
func (e *Engine) View(fn func(m *CityModel)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.model)
}

// Subscribe returns a channel receiving every new record and a function
// that cancels the subscription. Slow subscribers miss records.
func (e *Engine) Subscribe(buffer int) (<-chan Record, func()) {
	ch := make(chan Record, buffer)
	e.subMu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = ch
	e.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
			close(ch)
		})
	}
}

func (e *Engine) publish(rec Record) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}

func (e *Engine) timestep() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model.Timestep()
}
