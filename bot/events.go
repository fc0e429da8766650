package bot

import (
	"context"
	"runtime/debug"
	"sync/atomic"

	"github.com/safetyjim/safetyjim/common"
	"github.com/sirupsen/logrus"
)

type Event int

const (
	EventMessageCreate Event = iota
	EventGuildMemberAdd
	EventGuildMemberRemove
	EventGuildCreate
	EventGuildDelete

	numEvents
)

func (e Event) String() string {
	switch e {
	case EventMessageCreate:
		return "MessageCreate"
	case EventGuildMemberAdd:
		return "GuildMemberAdd"
	case EventGuildMemberRemove:
		return "GuildMemberRemove"
	case EventGuildCreate:
		return "GuildCreate"
	case EventGuildDelete:
		return "GuildDelete"
	}
	return "Unknown"
}

type MessageCreate struct {
	*Message
}

type GuildMemberAdd struct {
	*Member
}

type GuildMemberRemove struct {
	GuildID int64
	User    *User
}

type GuildCreate struct {
	*Guild
}

type GuildDelete struct {
	GuildID int64
}

// EventData is passed to every handler of an event
type EventData struct {
	EvtInterface interface{}
	Type         Event
	GuildID      int64
	Shard        *Shard

	ctx       context.Context
	cancelled *int32
}

func NewEventData(shard *Shard, t Event, guildID int64, evt interface{}) *EventData {
	return &EventData{
		EvtInterface: evt,
		Type:         t,
		GuildID:      guildID,
		Shard:        shard,
		cancelled:    new(int32),
	}
}

// Cancel stops the remaining handlers from running
func (e *EventData) Cancel() {
	atomic.StoreInt32(e.cancelled, 1)
}

func (e *EventData) Cancelled() bool {
	return atomic.LoadInt32(e.cancelled) != 0
}

func (e *EventData) Context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

func (e *EventData) WithContext(ctx context.Context) *EventData {
	cop := new(EventData)
	*cop = *e
	cop.ctx = ctx
	return cop
}

func (e *EventData) MessageCreate() *MessageCreate {
	return e.EvtInterface.(*MessageCreate)
}

func (e *EventData) GuildMemberAdd() *GuildMemberAdd {
	return e.EvtInterface.(*GuildMemberAdd)
}

func (e *EventData) GuildMemberRemove() *GuildMemberRemove {
	return e.EvtInterface.(*GuildMemberRemove)
}

func (e *EventData) GuildCreate() *GuildCreate {
	return e.EvtInterface.(*GuildCreate)
}

func (e *EventData) GuildDelete() *GuildDelete {
	return e.EvtInterface.(*GuildDelete)
}

// HandlerFunc handles one event, returned errors are logged
type HandlerFunc func(evt *EventData) error

type handler struct {
	plugin common.Plugin
	f      HandlerFunc
}

// EventRouter holds the handlers of every event, handlers run in the order they were added
type EventRouter struct {
	handlers [numEvents][]*handler
}

func NewEventRouter() *EventRouter {
	return &EventRouter{}
}

// AddHandler must be called before any shard starts
func (r *EventRouter) AddHandler(p common.Plugin, f HandlerFunc, evts ...Event) {
	h := &handler{plugin: p, f: f}
	for _, evt := range evts {
		r.handlers[evt] = append(r.handlers[evt], h)
	}
}

// Emit runs the handlers of the event one after another, a failing or panicking
// handler doesn't stop the next one
func (r *EventRouter) Emit(data *EventData) {
	for _, h := range r.handlers[data.Type] {
		if data.Cancelled() {
			return
		}

		r.run(h, data)
	}
}

func (r *EventRouter) run(h *handler, data *EventData) {
	defer func() {
		if err := recover(); err != nil {
			stack := string(debug.Stack())
			logrus.WithField(logrus.ErrorKey, err).WithField("evt", data.Type.String()).WithField("guild", data.GuildID).
				Error("Recovered from panic in event handler\n" + stack)
		}
	}()

	err := h.f(data)
	if err != nil {
		logrus.WithField("guild", data.GuildID).WithField("evt", data.Type.String()).
			Errorf("%s: An error occured in a discord event handler: %+v", h.plugin.PluginInfo().SysName, err)
	}
}
