// Package lifecycle exposes note change events as a lifecycle.Source.
package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/pinboard/pkg/core"
)

// DefaultBuffer is the number of events held before Publish starts dropping.
const DefaultBuffer = 100

// ErrBufferFull is returned by Publish when the consumer falls behind.
var ErrBufferFull = errors.New("event buffer full")

// Source is a core.Publisher whose events are consumed as a lifecycle.Source.
type Source struct {
	in      chan core.Event
	out     chan lifecycle.Event
	dropped atomic.Int64
}

// NewSource creates a Source buffering up to size events. Zero means DefaultBuffer.
func NewSource(size int) *Source {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &Source{
		in:  make(chan core.Event, size),
		out: make(chan lifecycle.Event),
	}
}

// Publish queues e without blocking the mutation that produced it.
func (s *Source) Publish(_ context.Context, e core.Event) error {
	select {
	case s.in <- e:
		return nil
	default:
		s.dropped.Add(1)
		return ErrBufferFull
	}
}

// Dropped reports how many events were discarded.
func (s *Source) Dropped() int64 {
	return s.dropped.Load()
}

// Events implements lifecycle.Source. The channel closes when the Start context ends.
func (s *Source) Events() <-chan lifecycle.Event {
	return s.out
}

// Start forwards queued events until ctx is done.
func (s *Source) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e := <-s.in:
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}

var (
	_ core.Publisher   = (*Source)(nil)
	_ lifecycle.Source = (*Source)(nil)
)
