// Package confirmation tracks pending yes/no questions asked to a member in a channel.
//
// A question is keyed by (channel, member). Asking a new question for the same key
// declines the old one. The first of a reply, a newer question or the timeout wins,
// and the entry is removed from the broker as soon as it resolves.
package confirmation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Result int

const (
	Confirmed Result = iota
	Declined
	TimedOut
	// Replaced means a newer question was asked for the same channel and member
	Replaced
)

func (r Result) String() string {
	switch r {
	case Confirmed:
		return "confirmed"
	case Declined:
		return "declined"
	case TimedOut:
		return "timed_out"
	case Replaced:
		return "replaced"
	}
	return "unknown"
}

var (
	affirmativeTokens = []string{"y", "ye", "yep", "yes", "yeah", "yea"}
	negativeTokens    = []string{"n", "nah", "no", "nope"}

	metricsConfirmations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jim_confirmations_total",
		Help: "Resolved target confirmations",
	}, []string{"result"})
)

// ParseReply maps a reply to Confirmed or Declined, ok is false if it's neither
func ParseReply(content string) (r Result, ok bool) {
	c := strings.ToLower(strings.TrimSpace(content))
	for _, v := range affirmativeTokens {
		if c == v {
			return Confirmed, true
		}
	}

	for _, v := range negativeTokens {
		if c == v {
			return Declined, true
		}
	}

	return Declined, false
}

type key struct {
	ChannelID int64
	UserID    int64
}

type Pending struct {
	broker *Broker
	key    key

	once   sync.Once
	done   chan struct{}
	result Result
	timer  *time.Timer
}

// Done is closed once the question is resolved
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result is only valid after Done is closed
func (p *Pending) Result() Result {
	<-p.done
	return p.result
}

// Wait blocks until the question is resolved. If ctx is cancelled first the question
// is resolved as TimedOut.
func (p *Pending) Wait(ctx context.Context) Result {
	select {
	case <-p.done:
	case <-ctx.Done():
		p.broker.resolve(p, TimedOut)
	}

	return p.Result()
}

// Confirmed is a shorthand for Wait(ctx) == Confirmed
func (p *Pending) Confirmed(ctx context.Context) bool {
	return p.Wait(ctx) == Confirmed
}

// Broker holds the pending questions of one shard
type Broker struct {
	timeout time.Duration

	mu      sync.Mutex
	pending map[key]*Pending
}

func NewBroker(timeout time.Duration) *Broker {
	return &Broker{
		timeout: timeout,
		pending: make(map[key]*Pending),
	}
}

// Submit registers a new question for the member in the channel,
// any earlier question for the same key is resolved as Replaced.
func (b *Broker) Submit(channelID, userID int64) *Pending {
	k := key{ChannelID: channelID, UserID: userID}
	p := &Pending{
		broker: b,
		key:    k,
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	prev := b.pending[k]
	b.pending[k] = p
	p.timer = time.AfterFunc(b.timeout, func() {
		b.resolve(p, TimedOut)
	})
	b.mu.Unlock()

	if prev != nil {
		// prev is no longer in the map so this only finishes it
		prev.finish(Replaced)
	}

	return p
}

// Offer hands a message to the broker, returning true if it answered a pending question.
// Messages that are neither a yes or a no leave the question pending and are not consumed.
func (b *Broker) Offer(channelID, userID int64, content string) bool {
	r, ok := ParseReply(content)
	if !ok {
		return false
	}

	b.mu.Lock()
	p := b.pending[key{ChannelID: channelID, UserID: userID}]
	b.mu.Unlock()

	if p == nil {
		return false
	}

	return b.resolve(p, r)
}

// resolve evicts p if it's still the registered question for its key and finishes it.
// A stale timer for a question that was already answered or replaced does nothing.
func (b *Broker) resolve(p *Pending, r Result) bool {
	b.mu.Lock()
	if b.pending[p.key] != p {
		b.mu.Unlock()
		return false
	}
	delete(b.pending, p.key)
	b.mu.Unlock()

	return p.finish(r)
}

func (p *Pending) finish(r Result) (won bool) {
	p.once.Do(func() {
		won = true
		p.timer.Stop()
		p.result = r
		close(p.done)
		metricsConfirmations.With(prometheus.Labels{"result": r.String()}).Inc()
	})
	return
}

// Len returns the number of pending questions
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
