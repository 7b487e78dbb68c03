// Package input turns user actions into interrupt predicates for a listening session.
package input

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.design/x/hotkey"
)

// Latch is a one-way interrupt flag; Fired is the predicate handed to the listener
type Latch struct {
	fired atomic.Bool
}

// Trigger sets the latch
func (l *Latch) Trigger() { l.fired.Store(true) }

// Fired reports whether the latch was triggered since the last Reset
func (l *Latch) Fired() bool { return l.fired.Load() }

// Reset clears the latch before the next session
func (l *Latch) Reset() { l.fired.Store(false) }

// HotkeyInterrupt triggers its latch whenever a global hotkey is pressed
type HotkeyInterrupt struct {
	Latch

	hk     *hotkey.Hotkey
	cancel context.CancelFunc
	done   chan struct{}
}

// WatchHotkey registers a hotkey such as "ctrl+shift+space" and watches it
// until ctx is done or Close is called
func WatchHotkey(ctx context.Context, spec string) (*HotkeyInterrupt, error) {
	mods, key, err := parseHotkey(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid hotkey: %w", err)
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return nil, fmt.Errorf("failed to register hotkey: %w", err)
	}

	h := &HotkeyInterrupt{hk: hk, done: make(chan struct{})}
	ctx, h.cancel = context.WithCancel(ctx)

	go func() {
		defer close(h.done)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-hk.Keydown():
				if !ok {
					return
				}
				h.Trigger()
			}
		}
	}()

	return h, nil
}

// Close unregisters the hotkey
func (h *HotkeyInterrupt) Close() {
	h.cancel()
	_ = h.hk.Unregister()

	// Wait briefly for goroutine to exit
	select {
	case <-h.done:
	case <-time.After(100 * time.Millisecond):
	}
}

var namedKeys = map[string]hotkey.Key{
	"space": hotkey.KeySpace, "return": hotkey.KeyReturn, "enter": hotkey.KeyReturn,
	"tab": hotkey.KeyTab, "escape": hotkey.KeyEscape, "esc": hotkey.KeyEscape,

	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,

	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,

	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}

// parseHotkey parses a hotkey string like "ctrl+shift+space" into modifiers and key
func parseHotkey(s string) ([]hotkey.Modifier, hotkey.Key, error) {
	if strings.TrimSpace(s) == "" {
		return nil, 0, fmt.Errorf("empty hotkey string")
	}

	var mods []hotkey.Modifier
	var key hotkey.Key
	var keyFound bool

	for _, part := range strings.Split(strings.ToLower(s), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "ctrl", "control":
			mods = append(mods, hotkey.ModCtrl)
		case "shift":
			mods = append(mods, hotkey.ModShift)
		case "alt", "option":
			mods = append(mods, modAlt())
		case "cmd", "command", "super", "win":
			mods = append(mods, modSuper())
		default:
			if keyFound {
				return nil, 0, fmt.Errorf("multiple keys specified")
			}
			k, ok := namedKeys[part]
			if !ok {
				return nil, 0, fmt.Errorf("unknown key: %q", part)
			}
			key = k
			keyFound = true
		}
	}

	if !keyFound {
		return nil, 0, fmt.Errorf("no key specified")
	}

	return mods, key, nil
}
