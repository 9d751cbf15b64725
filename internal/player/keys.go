package player

import (
	"bufio"
	"identityradio/backend/internal/config"
	"io"
	"log"
	"sync"
)

// Arrow keys have no rune of their own.
const (
	KeyUp   rune = -1
	KeyDown rune = -2
)

// KeyMap binds the listener's keyboard shortcuts to a Transport.
type KeyMap struct {
	Transport *Transport
}

func NewKeyMap(t *Transport) *KeyMap {
	return &KeyMap{Transport: t}
}

// Handle applies one key press. It reports whether the key is bound.
func (k *KeyMap) Handle(key rune) bool {
	var err error
	switch {
	case key == ' ' || key == 'p' || key == 'P':
		err = k.Transport.Toggle()
	case key == 'm' || key == 'M':
		err = k.Transport.ToggleMute()
	case key == KeyUp:
		err = k.Transport.StepVolume(config.VolumeStep)
	case key == KeyDown:
		err = k.Transport.StepVolume(-config.VolumeStep)
	case key >= '0' && key <= '9':
		err = k.Transport.SetVolume(int(key-'0') * 10)
	default:
		return false
	}
	if err != nil {
		log.Printf("ERROR: Key %q failed: %v", key, err)
	}
	return true
}

// Bind handles keys from the channel until the returned unbind func is
// called. Unbound keys are forwarded to rest, if given.
func (k *KeyMap) Bind(keys <-chan rune, rest func(rune)) (unbind func()) {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			case key, ok := <-keys:
				if !ok {
					return
				}
				if !k.Handle(key) && rest != nil {
					rest(key)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-stopped
		})
	}
}

// ReadKeys decodes raw terminal input into key presses, translating the
// ANSI arrow sequences. It closes out when r is exhausted.
func ReadKeys(r io.Reader, out chan<- rune) {
	defer close(out)
	br := bufio.NewReader(r)
	for {
		ch, _, err := br.ReadRune()
		if err != nil {
			return
		}
		if ch != 0x1b {
			out <- ch
			continue
		}

		// ESC [ A / ESC [ B
		if next, _, err := br.ReadRune(); err != nil || next != '[' {
			out <- ch
			if err == nil {
				out <- next
			}
			continue
		}
		code, _, err := br.ReadRune()
		if err != nil {
			return
		}
		switch code {
		case 'A':
			out <- KeyUp
		case 'B':
			out <- KeyDown
		}
	}
}
