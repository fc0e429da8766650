// Package expiry runs the background jobs that lift temporary bans and mutes, let members
// out of the holding room and deliver reminders once their time is up.
//
// Every job polls the store for due records on its own interval. A due record is handled
// against the connection that owns its guild and then resolved, whether that worked or not.
package expiry

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/common"
	"github.com/safetyjim/safetyjim/common/backgroundworkers"
	"github.com/safetyjim/safetyjim/common/config"
	"github.com/safetyjim/safetyjim/settings"
	"github.com/safetyjim/safetyjim/store"
)

var logger = common.GetPluginLogger(&Plugin{})

var (
	confBansDelay         = config.RegisterOption("jim.expiry.bans.delay_seconds", "Delay before the first ban expiry check", 10)
	confBansInterval      = config.RegisterOption("jim.expiry.bans.interval_seconds", "Seconds between ban expiry checks", 30)
	confMutesDelay        = config.RegisterOption("jim.expiry.mutes.delay_seconds", "Delay before the first mute expiry check", 10)
	confMutesInterval     = config.RegisterOption("jim.expiry.mutes.interval_seconds", "Seconds between mute expiry checks", 10)
	confJoinsDelay        = config.RegisterOption("jim.expiry.joins.delay_seconds", "Delay before the first holding room check", 10)
	confJoinsInterval     = config.RegisterOption("jim.expiry.joins.interval_seconds", "Seconds between holding room checks", 5)
	confRemindersDelay    = config.RegisterOption("jim.expiry.reminders.delay_seconds", "Delay before the first reminder check", 10)
	confRemindersInterval = config.RegisterOption("jim.expiry.reminders.interval_seconds", "Seconds between reminder checks", 5)
)

var (
	metricsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jim_expiry_processed_total",
		Help: "Due records handled by the expiry jobs",
	}, []string{"job", "result"})

	metricsTickFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jim_expiry_tick_failures_total",
		Help: "Expiry job ticks that failed as a whole",
	}, []string{"job"})
)

// Gateways finds the connection that owns a guild, implemented by bot.ShardManager
type Gateways interface {
	GatewayForGuild(guildID int64) bot.Gateway
}

// Job is one polling loop
type Job struct {
	Name     string
	Delay    time.Duration
	Interval time.Duration
	Tick     func(ctx context.Context, now time.Time) error
}

// MemberLocker serializes work against one member with the moderation actions, implemented by moderation.Moderation
type MemberLocker interface {
	WithMemberLock(ctx context.Context, guildID, userID int64, f func() error) error
}

type Reconciler struct {
	Store    store.ActionStore
	Settings *settings.Cache
	Gateways Gateways
	Locks    MemberLocker

	Jobs []*Job

	// set in tests
	now func() time.Time
}

func NewReconciler(st store.ActionStore, cache *settings.Cache, gateways Gateways, locks MemberLocker) *Reconciler {
	r := &Reconciler{
		Store:    st,
		Settings: cache,
		Gateways: gateways,
		Locks:    locks,
		now:      time.Now,
	}

	r.Jobs = []*Job{
		{Name: "bans", Delay: confBansDelay.GetSeconds(), Interval: confBansInterval.GetSeconds(), Tick: r.tickBans},
		{Name: "mutes", Delay: confMutesDelay.GetSeconds(), Interval: confMutesInterval.GetSeconds(), Tick: r.tickMutes},
		{Name: "joins", Delay: confJoinsDelay.GetSeconds(), Interval: confJoinsInterval.GetSeconds(), Tick: r.tickJoins},
		{Name: "reminders", Delay: confRemindersDelay.GetSeconds(), Interval: confRemindersInterval.GetSeconds(), Tick: r.tickReminders},
	}

	return r
}

// Run runs every job until ctx is cancelled
func (r *Reconciler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range r.Jobs {
		wg.Add(1)
		go func(j *Job) {
			defer wg.Done()
			r.runJob(ctx, j)
		}(j)
	}
	wg.Wait()
}

func (r *Reconciler) runJob(ctx context.Context, j *Job) {
	select {
	case <-time.After(j.Delay):
	case <-ctx.Done():
		return
	}

	logger.WithField("job", j.Name).Info("Started expiry job")

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		r.RunTick(ctx, j)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func tickLockKey(job string) string {
	return "jim_expiry_tick:" + job
}

// RunTick runs one tick of the job. Only one process runs a job's tick at a time when redis is
// configured, a tick that fails or panics is logged and the next one runs as usual.
func (r *Reconciler) RunTick(ctx context.Context, j *Job) {
	defer func() {
		if p := recover(); p != nil {
			metricsTickFailures.With(prometheus.Labels{"job": j.Name}).Inc()
			logger.WithField("job", j.Name).Error("Recovered from panic in expiry tick: ", p, "\n", string(debug.Stack()))
		}
	}()

	lockDur := j.Interval * 2
	if lockDur < time.Minute {
		lockDur = time.Minute
	}

	locked, err := common.TryLockRedisKey(tickLockKey(j.Name), int(lockDur.Seconds()))
	switch {
	case err == common.ErrNoRedis:
		// single process
	case err != nil:
		metricsTickFailures.With(prometheus.Labels{"job": j.Name}).Inc()
		logger.WithError(err).WithField("job", j.Name).Error("Failed taking expiry tick lock")
		return
	case !locked:
		logger.WithField("job", j.Name).Debug("Another process is running this tick")
		return
	default:
		defer common.UnlockRedisKey(tickLockKey(j.Name))
	}

	err = j.Tick(ctx, r.now())
	if err != nil {
		metricsTickFailures.With(prometheus.Labels{"job": j.Name}).Inc()
		logger.WithError(err).WithField("job", j.Name).Error("Expiry tick failed")
	}
}

// record identifies a due record in logs and metrics
type record struct {
	job     string
	id      int64
	guildID int64
	userID  int64
}

// errAlreadyResolved is returned by a handler that found its record resolved since it was fetched
var errAlreadyResolved = errors.NewPlain("already resolved")

const (
	resultResolved        = "resolved"
	resultFailed          = "failed"
	resultGuildMissing    = "guild_missing"
	resultAlreadyResolved = "already_resolved"
)

// logRecordError is the one place background failures end up, the record is resolved regardless
func logRecordError(rec record, err error) {
	logger.WithError(err).WithField("job", rec.job).WithField("id", rec.id).WithField("guild", rec.guildID).WithField("user", rec.userID).
		Errorf("Failed handling due record, resolving it anyway: %+v", err)
}

// processRecord runs handle against the guild's connection and then resolves the record.
// Guilds the bot is no longer in are resolved without calling handle.
func (r *Reconciler) processRecord(ctx context.Context, rec record, handle func(gw bot.Gateway) error, resolve func(ctx context.Context, id int64) (bool, error)) {
	result := r.handleRecord(rec, handle)

	ok, err := resolve(ctx, rec.id)
	if err != nil {
		logRecordError(rec, errors.WithMessage(err, "resolve"))
		result = resultFailed
	} else if !ok && result == resultResolved {
		result = resultAlreadyResolved
	}

	metricsProcessed.With(prometheus.Labels{"job": rec.job, "result": result}).Inc()
}

func (r *Reconciler) handleRecord(rec record, handle func(gw bot.Gateway) error) (result string) {
	defer func() {
		if p := recover(); p != nil {
			logRecordError(rec, errors.NewPlain(fmt.Sprintf("panic: %v\n%s", p, debug.Stack())))
			result = resultFailed
		}
	}()

	gw := r.Gateways.GatewayForGuild(rec.guildID)
	if gw == nil || !gw.HasGuild(rec.guildID) {
		return resultGuildMissing
	}

	err := handle(gw)
	switch {
	case err == nil:
		return resultResolved
	case err == errAlreadyResolved:
		return resultAlreadyResolved
	}

	logRecordError(rec, err)
	return resultFailed
}

var _ backgroundworkers.BackgroundWorkerPlugin = (*Plugin)(nil)

type Plugin struct {
	Reconciler *Reconciler

	stopBGWorker chan *sync.WaitGroup
}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Expiry",
		SysName:  "expiry",
		Category: common.PluginCategoryModeration,
	}
}

func RegisterPlugin(r *Reconciler) {
	common.RegisterPlugin(&Plugin{
		Reconciler:   r,
		stopBGWorker: make(chan *sync.WaitGroup),
	})
}

// RunBackgroundWorker implements backgroundworkers.BackgroundWorkerPlugin
func (p *Plugin) RunBackgroundWorker() {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Reconciler.Run(ctx)
		close(done)
	}()

	wg := <-p.stopBGWorker
	cancel()
	<-done
	wg.Done()
}

// StopBackgroundWorker implements backgroundworkers.BackgroundWorkerPlugin
func (p *Plugin) StopBackgroundWorker(wg *sync.WaitGroup) {
	p.stopBGWorker <- wg
}
