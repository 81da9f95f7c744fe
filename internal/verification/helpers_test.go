package verification_test

import (
	"context"
	"sync"
	"time"

	"agegate/internal/cart"
	"agegate/internal/document"
	"agegate/internal/estimation"
	"agegate/internal/policy"
)

// fakeSampler lets tests place a sample in the latest slot and push ticks.
type fakeSampler struct {
	mu       sync.Mutex
	startErr error
	latest   *estimation.AgeSample
	ticks    chan estimation.Tick
	starts   int
	stops    int
}

func newFakeSampler() *fakeSampler {
	return &fakeSampler{ticks: make(chan estimation.Tick, 1)}
}

func (f *fakeSampler) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeSampler) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.latest = nil
}

func (f *fakeSampler) Latest() (estimation.AgeSample, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return estimation.AgeSample{}, false
	}
	return *f.latest, true
}

func (f *fakeSampler) Ticks() <-chan estimation.Tick {
	return f.ticks
}

func (f *fakeSampler) see(sample estimation.AgeSample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = &sample
}

func (f *fakeSampler) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func sampleFor(p policy.Policy, bracket int) estimation.AgeSample {
	s, err := estimation.SampleFor(p, estimation.AgeBracket(bracket), time.Time{})
	if err != nil {
		panic(err)
	}
	return s
}

var (
	restrictedCart = []cart.Line{
		{Name: "Beer", Price: 298, Restricted: true},
		{Name: "Onigiri", Price: 150},
	}
	plainCart = []cart.Line{
		{Name: "Bread", Price: 200},
	}
)

// unusedLookup fails any test path that reaches the document step.
type unusedLookup struct{}

func (unusedLookup) Lookup(context.Context, string) (document.Result, error) {
	panic("document lookup not expected")
}
