package chain

import (
	"sort"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DefaultGroupWindow is how long the collector waits for more album parts.
const DefaultGroupWindow = time.Second

// Collector reassembles albums: Telegram delivers each item of a media group
// as its own update sharing a MediaGroupID.
type Collector struct {
	window time.Duration
	emit   func([]*tgbotapi.Message)

	mu     sync.Mutex
	groups map[string]*pendingGroup

	// Timer emits hold a read lock for their duration; Flush takes the write
	// lock to wait them out.
	inflight sync.RWMutex
}

type pendingGroup struct {
	messages []*tgbotapi.Message
	timer    *time.Timer
}

// NewCollector calls emit with each complete unit. Lone messages are emitted
// synchronously from Add, albums from a timer goroutine once window passes
// without a new part.
func NewCollector(window time.Duration, emit func([]*tgbotapi.Message)) *Collector {
	if window <= 0 {
		window = DefaultGroupWindow
	}
	return &Collector{
		window: window,
		emit:   emit,
		groups: make(map[string]*pendingGroup),
	}
}

func (c *Collector) Add(message *tgbotapi.Message) {
	if message.MediaGroupID == "" {
		c.emit([]*tgbotapi.Message{message})
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	group, ok := c.groups[message.MediaGroupID]
	if !ok {
		group = &pendingGroup{}
		c.groups[message.MediaGroupID] = group
		id := message.MediaGroupID
		group.timer = time.AfterFunc(c.window, func() { c.release(id) })
	} else {
		group.timer.Reset(c.window)
	}
	group.messages = append(group.messages, message)
}

func (c *Collector) release(id string) {
	c.mu.Lock()
	group, ok := c.groups[id]
	delete(c.groups, id)
	if ok {
		c.inflight.RLock()
	}
	c.mu.Unlock()

	if ok {
		defer c.inflight.RUnlock()
		c.emit(ordered(group.messages))
	}
}

// Flush emits every pending album immediately and returns once albums already
// released by their timer have been handled too.
func (c *Collector) Flush() {
	c.mu.Lock()
	groups := c.groups
	c.groups = make(map[string]*pendingGroup)
	c.mu.Unlock()

	for _, group := range groups {
		group.timer.Stop()
		c.emit(ordered(group.messages))
	}

	c.inflight.Lock()
	c.inflight.Unlock()
}

func ordered(messages []*tgbotapi.Message) []*tgbotapi.Message {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].MessageID < messages[j].MessageID
	})
	return messages
}
