package bot

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/safetyjim/safetyjim/bot/confirmation"
	"github.com/safetyjim/safetyjim/common"
)

// Shard owns one gateway connection. Incoming events go through a bounded queue,
// and from there into a per guild lane so that events of one guild are handled in
// order while different guilds run concurrently.
type Shard struct {
	ID      int
	Gateway Gateway

	// pending target confirmations of this shard, replies are taken out of the
	// event stream before they are queued so a waiting command can't block them
	Confirmations *confirmation.Broker

	router *EventRouter
	queue  chan *EventData

	lanesMu sync.Mutex
	lanes   map[int64]*guildLane
	// tracks running lanes so Stop can wait for them
	lanesWG sync.WaitGroup

	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewShard(id int, gw Gateway, router *EventRouter) *Shard {
	return &Shard{
		ID:            id,
		Gateway:       gw,
		Confirmations: confirmation.NewBroker(common.ConfConfirmationTimeoutSeconds.GetSeconds()),
		router:        router,
		queue:         make(chan *EventData, common.ConfShardQueueSize.GetInt()),
		lanes:         make(map[int64]*guildLane),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Push hands an incoming event to the shard, it never blocks.
// Returns false if the event was dropped because the queue is full.
func (s *Shard) Push(t Event, guildID int64, evt interface{}) bool {
	if mc, ok := evt.(*MessageCreate); ok && mc.Author != nil {
		if s.Confirmations.Offer(mc.ChannelID, mc.Author.ID, mc.Content) {
			return true
		}
	}

	select {
	case s.queue <- NewEventData(s, t, guildID, evt):
		return true
	default:
		metricsDroppedEvents.With(prometheus.Labels{"shard": strconv.Itoa(s.ID)}).Inc()
		logger.WithField("shard", s.ID).WithField("guild", guildID).Warn("Shard queue full, dropped event ", t.String())
		return false
	}
}

// Run consumes the queue until ctx is done or the shard is stopped
func (s *Shard) Run(ctx context.Context) {
	s.started.Store(true)
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case evt := <-s.queue:
			s.enqueueLane(evt)
		}
	}
}

// Stop stops consuming new events and waits for the lanes to finish what they have
func (s *Shard) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.started.Load() {
		<-s.done
	}
	s.lanesWG.Wait()
}

func (s *Shard) handle(evt *EventData) {
	s.router.Emit(evt)
}
