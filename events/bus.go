package events

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	// ErrDuplicateConsumer is returned when consumer with the same name is registered twice
	ErrDuplicateConsumer = errors.New("consumer already registered")
)

// Bus provides asynchronous event processing with non-blocking publishing
type Bus struct {
	eventChan chan Event

	wg      sync.WaitGroup
	running atomic.Bool
	closed  atomic.Bool
	mu      sync.RWMutex

	consumers []Consumer

	received  atomic.Uint64
	processed atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64

	logger zerolog.Logger
}

// NewBus creates bus with given buffer size
func NewBus(bufferSize int, logger zerolog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Bus{
		eventChan: make(chan Event, bufferSize),
		consumers: make([]Consumer, 0),
		logger:    logger.With().Str("component", "events").Logger(),
	}
}

// NewBusDefault creates bus with buffer of 1024 events and disabled logging
func NewBusDefault() *Bus {
	return NewBus(1024, zerolog.Nop())
}

// Register adds new consumer. Worker starts along with the first consumer.
func (bus *Bus) Register(consumer Consumer) error {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for _, existing := range bus.consumers {
		if existing.Name() == consumer.Name() {
			return errors.Wrapf(ErrDuplicateConsumer, "Can't register '%s'", consumer.Name())
		}
	}
	bus.consumers = append(bus.consumers, consumer)
	bus.logger.Debug().Str("consumer", consumer.Name()).Msg("registered event consumer")
	if !bus.closed.Load() && !bus.running.Swap(true) {
		bus.wg.Add(1)
		go bus.worker()
	}
	return nil
}

// TryPublish attempts to publish event without blocking.
// Returns true if event was accepted, false if dropped.
func (bus *Bus) TryPublish(event Event) bool {
	if bus == nil || !bus.running.Load() || bus.closed.Load() {
		return false
	}
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	if bus.closed.Load() {
		return false
	}
	select {
	case bus.eventChan <- event:
		bus.received.Add(1)
		return true
	default:
		bus.dropped.Add(1)
		bus.logger.Debug().Str("kind", string(event.Kind)).Msg("event dropped due to full buffer")
		return false
	}
}

// Close stops accepting events and waits until buffered ones are processed
func (bus *Bus) Close() {
	bus.mu.Lock()
	if bus.closed.Swap(true) {
		bus.mu.Unlock()
		return
	}
	close(bus.eventChan)
	bus.mu.Unlock()
	bus.wg.Wait()
}

// Stats returns copy of runtime statistics
func (bus *Bus) Stats() Stats {
	return Stats{
		EventsReceived:  bus.received.Load(),
		EventsProcessed: bus.processed.Load(),
		EventsDropped:   bus.dropped.Load(),
		ConsumerErrors:  bus.failed.Load(),
	}
}

func (bus *Bus) worker() {
	defer bus.wg.Done()
	for event := range bus.eventChan {
		bus.mu.RLock()
		consumers := make([]Consumer, len(bus.consumers))
		copy(consumers, bus.consumers)
		bus.mu.RUnlock()
		for _, consumer := range consumers {
			if err := bus.process(consumer, event); err != nil {
				bus.failed.Add(1)
				bus.logger.Warn().Err(err).Str("consumer", consumer.Name()).Str("kind", string(event.Kind)).Msg("consumer failed")
			}
		}
		bus.processed.Add(1)
	}
}

func (bus *Bus) process(consumer Consumer, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("consumer panic: %v", r)
		}
	}()
	return consumer.ProcessEvent(event)
}
