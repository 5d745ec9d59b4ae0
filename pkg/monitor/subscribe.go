package monitor

// DefaultSubscriptionBuffer is the channel capacity used when Subscribe is
// given a non-positive buffer.
const DefaultSubscriptionBuffer = 1

type subscriber struct {
	ch chan Snapshot
}

// offer never blocks: when the buffer is full the oldest queued snapshot is
// dropped so the consumer always catches up to the newest one.
func (sub *subscriber) offer(snap Snapshot) {
	for {
		select {
		case sub.ch <- snap:
			return
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
	}
}

// Subscribe registers a consumer of published snapshots. One snapshot is
// published after every tick, and a final one carrying the terminal state when
// the loop exits. Subscriptions outlive individual sessions. The returned
// function unsubscribes and closes the channel.
func (s *Session) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	sub := &subscriber{ch: make(chan Snapshot, buffer)}
	s.subs[id] = sub

	var closed bool
	return sub.ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if closed {
			return
		}
		closed = true
		delete(s.subs, id)
		close(sub.ch)
	}
}

func (s *Session) publish(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		sub.offer(snap)
	}
}
