package web

import (
	"sync"
	"time"

	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/tasks"
)

// conversion pairs a converter with the fan-out of its progress updates.
type conversion struct {
	id   string
	conv *tasks.Converter

	mu     sync.Mutex
	subs   map[chan tasks.ProgressUpdate]struct{}
	closed bool
}

func newConversion(id string, conv *tasks.Converter) *conversion {
	return &conversion{id: id, conv: conv, subs: map[chan tasks.ProgressUpdate]struct{}{}}
}

// pump forwards updates to subscribers until the conversion returns to idle or done closes.
//
// The lifecycle follows the converter's session rather than the updates, which are dropped when
// the buffer fills. A preview left untouched for previewTTL is cancelled.
func (c *conversion) pump(done <-chan struct{}, updates <-chan tasks.ProgressUpdate, previewTTL time.Duration) {
	defer c.finish()

	var expire *time.Timer
	disarm := func() {
		if expire != nil {
			expire.Stop()
			expire = nil
		}
	}
	defer disarm()

	for {
		session, changed := c.conv.Watch()
		if session.Phase == models.PhaseIdle {
			c.drain(updates)
			return
		}
		if session.Phase != models.PhasePreview {
			disarm()
		} else if expire == nil && previewTTL > 0 {
			expire = time.AfterFunc(previewTTL, c.expire)
		}

		select {
		case u := <-updates:
			c.publish(u)
		case <-changed:
		case <-done:
			return
		}
	}
}

// drain publishes the updates still buffered once the conversion has finished.
func (c *conversion) drain(updates <-chan tasks.ProgressUpdate) {
	for {
		select {
		case u := <-updates:
			c.publish(u)
		default:
			return
		}
	}
}

// expire abandons a preview nobody confirmed or cancelled.
func (c *conversion) expire() {
	_ = c.conv.CancelPreview()
}

func (c *conversion) publish(u tasks.ProgressUpdate) {
	u.SessionID = c.id
	c.mu.Lock()
	defer c.mu.Unlock()
	for sub := range c.subs {
		select {
		case sub <- u:
		default:
		}
	}
}

func (c *conversion) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for sub := range c.subs {
		close(sub)
	}
	c.subs = nil
}

// subscribe registers a listener. The returned channel closes when the conversion's updates end.
func (c *conversion) subscribe() (<-chan tasks.ProgressUpdate, func()) {
	ch := make(chan tasks.ProgressUpdate, 32)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
}

type sessionView struct {
	ID string `json:"id"`
	models.Session
	Found int `json:"found"`
}

func (c *conversion) view() sessionView {
	s := c.conv.Session()
	return sessionView{ID: c.id, Session: s, Found: models.CountFound(s.MatchedSongs)}
}
