package ingestion

import (
	"context"
)

// FrameSource provides waveform frames from an acquisition bridge.
type FrameSource interface {
	// Subscribe returns a channel of decoded frames. The channel is closed
	// when ctx is cancelled or the source gives up.
	Subscribe(ctx context.Context) (<-chan *Frame, error)
}

// SliceSource replays a fixed list of frames. Used by tests and the CSV import path.
type SliceSource struct {
	Frames []*Frame
}

// Subscribe emits every frame in order and closes the channel.
func (s *SliceSource) Subscribe(ctx context.Context) (<-chan *Frame, error) {
	out := make(chan *Frame)
	go func() {
		defer close(out)
		for _, f := range s.Frames {
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
