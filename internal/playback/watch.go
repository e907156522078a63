package playback

import "context"

// Watch returns a channel receiving a fresh Snapshot whenever any mirror
// field changes. Only the latest snapshot is kept for a slow reader. The
// channel is closed when ctx ends.
func (s *Synchronizer) Watch(ctx context.Context) <-chan State {
	out := make(chan State, 1)

	playing := s.isPlaying.Subscribe()
	position := s.currentTime.Subscribe()
	length := s.duration.Subscribe()
	volume := s.volume.Subscribe()

	publish := func() {
		snap := s.Snapshot()
		select {
		case out <- snap:
		default:
			select {
			case <-out:
			default:
			}
			out <- snap
		}
	}

	go func() {
		defer close(out)
		defer s.isPlaying.Unsubscribe(playing)
		defer s.currentTime.Unsubscribe(position)
		defer s.duration.Unsubscribe(length)
		defer s.volume.Unsubscribe(volume)

		for {
			select {
			case <-ctx.Done():
				return
			case <-playing:
			case <-position:
			case <-length:
			case <-volume:
			}
			publish()
		}
	}()

	return out
}
