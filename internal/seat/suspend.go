package seat

import "fmt"

// ReleaseDevices gives up device access, for example on a VT switch. The
// removal events the backend produces are processed before returning.
// Releasing twice without ReclaimDevices is a misuse and changes nothing.
func (s *Seat) ReleaseDevices() error {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return ErrClosed
	}
	if s.released {
		s.log.Warn("ReleaseDevices called twice without ReclaimDevices")
		return ErrAlreadyReleased
	}

	if err := s.backend.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend backend: %w", err)
	}
	s.processEventsLocked()
	s.clearRepeatTimerLocked()

	s.released = true
	return nil
}

// ReclaimDevices reopens devices after ReleaseDevices and restores the
// lock LEDs before normal dispatch resumes.
func (s *Seat) ReclaimDevices() error {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.released {
		s.log.Warn("ReclaimDevices called without ReleaseDevices")
		return ErrNotReleased
	}

	if err := s.backend.Resume(); err != nil {
		return fmt.Errorf("failed to resume backend: %w", err)
	}
	s.updateXkbStateLocked()
	s.processEventsLocked()
	// devices re-added by the resume need the lock state as well
	s.syncLEDsLocked()

	s.released = false
	return nil
}
