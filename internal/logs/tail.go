package logs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// TailOptions controls Tail.
type TailOptions struct {
	// Lines is the number of trailing lines emitted first. Zero emits none.
	Lines int
	// Follow keeps polling for appended lines until the context ends.
	Follow bool
	// Poll is the follow interval. Zero uses 250ms.
	Poll time.Duration
}

const defaultPoll = 250 * time.Millisecond

// Tail emits the last opts.Lines lines of path and, when following, every line
// appended afterwards. A cancelled context ends a follow without error.
func Tail(ctx context.Context, path string, opts TailOptions, emit func(string)) error {
	lines, offset, err := lastLines(path, opts.Lines)
	if err != nil {
		return err
	}
	for _, line := range lines {
		emit(line)
	}
	if !opts.Follow {
		return nil
	}

	poll := opts.Poll
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if offset, err = readFrom(path, offset, emit); err != nil {
			return err
		}
	}
}

// lastLines returns up to limit trailing lines of path and the offset after them.
func lastLines(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		offset, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, offset, nil
	}

	ring := make([]string, limit)
	count, idx := 0, 0
	var offset int64
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			offset += int64(len(line))
			ring[idx] = trimNewline(line)
			idx = (idx + 1) % limit
			if count < limit {
				count++
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
	}

	lines := make([]string, count)
	for i := range count {
		lines[i] = ring[(idx-count+i+limit)%limit]
	}
	return lines, offset, nil
}

// readFrom emits complete lines after offset and returns the new offset. A
// trailing partial line is left for the next poll. A truncated file restarts
// from the beginning.
func readFrom(path string, offset int64, emit func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			offset += int64(len(line))
			emit(trimNewline(line))
		}
		if err == io.EOF {
			return offset, nil
		}
		if err != nil {
			return offset, fmt.Errorf("read log file: %w", err)
		}
	}
}

func trimNewline(line string) string {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
