package walletsync

import (
	"context"
	"sync"
	"time"
)

const subscriberBuffer = 16

// Subscribe returns a channel receiving every state change. When a subscriber
// falls behind the oldest pending state is dropped. cancel closes the channel.
func (s *Sync) Subscribe() (<-chan State, func()) {
	ch := make(chan State, subscriberBuffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.state
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
		})
	}
}

func (s *Sync) publishLocked() {
	snapshot := s.state
	for _, ch := range s.subs {
		select {
		case ch <- snapshot:
		default:
			// only publishLocked sends, so draining one slot guarantees room
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

// Mount registers a surface. While at least one surface is mounted the balance
// is refreshed immediately and then every refresh interval.
func (s *Sync) Mount() (unmount func()) {
	s.mu.Lock()
	s.mounted++
	if s.mounted == 1 && !s.closed {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopLoop = cancel
		s.bg.Add(1)
		go s.refreshLoop(ctx)
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.mounted--
			if s.mounted == 0 && s.stopLoop != nil {
				s.stopLoop()
				s.stopLoop = nil
			}
		})
	}
}

// Mounted reports how many surfaces are mounted.
func (s *Sync) Mounted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

func (s *Sync) refreshLoop(ctx context.Context) {
	defer s.bg.Done()

	_ = s.Refresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Refresh(ctx)
		}
	}
}

// reconcileLocked schedules the follow-up refresh after a settled operation.
func (s *Sync) reconcileLocked() {
	if s.closed {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		_ = s.Refresh(context.Background())
	}()
}

// Follow refreshes s whenever events delivers a value, until ctx ends or the
// channel closes. It is meant for balance-change feeds; the event payload is
// never written to the cache.
func Follow[T any](ctx context.Context, s *Sync, events <-chan T) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			_ = s.Refresh(ctx)
		}
	}
}

// Close stops periodic refreshes, closes subscriber channels and waits for
// background refreshes to finish.
func (s *Sync) Close() {
	s.mu.Lock()
	s.closed = true
	if s.stopLoop != nil {
		s.stopLoop()
		s.stopLoop = nil
	}
	s.mu.Unlock()

	s.bg.Wait()

	s.mu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()
}
