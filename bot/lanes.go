package bot

import (
	"sync"
)

// guildLane runs the events of one guild in order. It's started when the first
// event for the guild comes in and exits once its queue is empty.
type guildLane struct {
	sync.Mutex

	shard   *Shard
	guildID int64
	exiting bool
	queued  []*EventData
}

func (s *Shard) enqueueLane(evt *EventData) {
	s.lanesMu.Lock()
	if l, ok := s.lanes[evt.GuildID]; ok {
		l.Lock()

		if !l.exiting {
			l.queued = append(l.queued, evt)

			l.Unlock()
			s.lanesMu.Unlock()
			return
		}

		l.Unlock()
	}

	// create a new lane
	l := &guildLane{
		shard:   s,
		guildID: evt.GuildID,
		queued:  []*EventData{evt},
	}
	s.lanes[evt.GuildID] = l
	s.lanesWG.Add(1)
	go l.run()
	s.lanesMu.Unlock()
}

func (l *guildLane) run() {
	defer l.shard.lanesWG.Done()

	for {
		l.Lock()

		// nothing more to process
		if len(l.queued) < 1 {
			l.exiting = true
			l.Unlock()

			// while we didn't hold the lane lock a new lane may have been started for
			// this guild (since we marked exiting), only remove ourselves if we're still the one
			l.shard.lanesMu.Lock()
			if l.shard.lanes[l.guildID] == l {
				delete(l.shard.lanes, l.guildID)
			}
			l.shard.lanesMu.Unlock()
			return
		}

		evt := l.queued[0]
		l.queued[0] = nil
		l.queued = l.queued[1:]
		l.Unlock()

		l.shard.handle(evt)
	}
}

// activeLanes returns the number of guilds with a running lane
func (s *Shard) activeLanes() int {
	s.lanesMu.Lock()
	defer s.lanesMu.Unlock()
	return len(s.lanes)
}
