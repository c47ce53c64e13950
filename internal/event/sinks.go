package event

// NopSink discards every envelope.
type NopSink struct{}

func (NopSink) Emit(Envelope) {}

// ChannelSink bridges envelopes onto a channel drained by a downstream
// worker (outbound publisher, audit writer). Sends are non-blocking: a full
// channel drops the envelope rather than stalling the engine — downstream
// consumers rebuild from the audit log if they fall behind.
type ChannelSink struct {
	ch      chan<- Envelope
	dropped func()
}

// NewChannelSink wraps ch. onDrop is invoked for every dropped envelope;
// it may be nil.
func NewChannelSink(ch chan<- Envelope, onDrop func()) *ChannelSink {
	return &ChannelSink{ch: ch, dropped: onDrop}
}

func (s *ChannelSink) Emit(e Envelope) {
	select {
	case s.ch <- e:
	default:
		if s.dropped != nil {
			s.dropped()
		}
	}
}

// FanOut delivers every envelope to each of its sinks in order.
type FanOut []Sink

func (f FanOut) Emit(e Envelope) {
	for _, s := range f {
		s.Emit(e)
	}
}
