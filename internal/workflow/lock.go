package workflow

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"

	"vxextract/internal/services"
)

// ErrLocked reports that another run holds the output-root lock.
var ErrLocked = errors.New("another vxextract run holds the output root lock")

type outputLock struct {
	fl *flock.Flock
}

func acquireLock(path string) (*outputLock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "acquire lock", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
	}
	return &outputLock{fl: fl}, nil
}

func (l *outputLock) release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
