package event

// MultiSink fans every event out to each sink in order.
func MultiSink(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) Notify(e Event) {
	for _, s := range m {
		notifyMember(s, e)
	}
}

// notifyMember contains a panicking member so the remaining sinks still
// receive the event.
func notifyMember(s Sink, e Event) {
	defer func() {
		_ = recover()
	}()
	s.Notify(e)
}

// ChannelSink forwards events to a channel for UI consumption. When the
// receiver lags, the oldest buffered event is shed so the feed stays
// current instead of stalling the producer.
type ChannelSink struct {
	ch chan Event
}

// NewChannelSink creates a sink buffering up to size events.
func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = 64
	}
	return &ChannelSink{ch: make(chan Event, size)}
}

func (s *ChannelSink) Notify(e Event) {
	for {
		select {
		case s.ch <- e:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}
