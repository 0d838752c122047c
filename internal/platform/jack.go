package platform

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"audioroute/internal/audio"
	applog "audioroute/internal/log"
)

// jackSettle coalesces the bursts of events a single state write produces.
const jackSettle = 20 * time.Millisecond

// JackDetector reports the wired headset state from a file that holds "1"
// while a headset is plugged. A udev rule or the codec's jack-sense script
// keeps the file current; a missing file means unplugged.
type JackDetector struct {
	path string
}

var _ audio.HeadsetDetector = (*JackDetector)(nil)

func NewJackDetector(path string) *JackDetector {
	return &JackDetector{path: path}
}

func (j *JackDetector) HeadsetPlugged() bool {
	data, err := os.ReadFile(j.path)
	if err != nil {
		return false
	}
	return parseJackState(data)
}

func parseJackState(data []byte) bool {
	switch string(bytes.TrimSpace(data)) {
	case "1", "plugged", "on":
		return true
	}
	return false
}

// WatchHeadset watches the state file's directory, since writers usually
// replace the file rather than rewrite it. onChange runs on the watcher's
// goroutine after every settled change, even if the state is unchanged.
func (j *JackDetector) WatchHeadset(onChange func(bool)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("unable to start filesystem watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(j.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("unable to watch %s: %w", filepath.Dir(j.path), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		j.run(ctx, watcher, onChange)
	}()

	return func() {
		cancel()
		<-done
		watcher.Close()
	}, nil
}

func (j *JackDetector) run(ctx context.Context, watcher *fsnotify.Watcher, onChange func(bool)) {
	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return

		case <-settle:
			settle = nil
			plugged := j.HeadsetPlugged()
			applog.WithFields(applog.Fields{
				"function": "JackDetector.run",
				"plugged":  plugged,
			}).Debug("Headset jack changed")
			onChange(plugged)

		case event, ok := <-watcher.Events:
			if !ok {
				applog.Warnf("jack: watcher events closed")
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(j.path) {
				continue
			}
			settle = time.After(jackSettle)

		case err, ok := <-watcher.Errors:
			if !ok {
				applog.Warnf("jack: watcher errors closed")
				return
			}
			applog.Debugf("jack: watcher error: %v", err)
		}
	}
}
