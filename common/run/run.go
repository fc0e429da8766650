package run

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/safetyjim/safetyjim/bot"
	"github.com/safetyjim/safetyjim/commands"
	"github.com/safetyjim/safetyjim/common"
	"github.com/safetyjim/safetyjim/common/backgroundworkers"
	"github.com/safetyjim/safetyjim/common/config"
	"github.com/safetyjim/safetyjim/common/sentryhook"
	"github.com/safetyjim/safetyjim/expiry"
	"github.com/safetyjim/safetyjim/moderation"
	"github.com/safetyjim/safetyjim/reminders"
	"github.com/safetyjim/safetyjim/settings"
	"github.com/safetyjim/safetyjim/store"
	log "github.com/sirupsen/logrus"
)

var (
	flagRunBot        bool
	flagRunEverything bool
	flagRunBWC        bool

	flagDryRun bool

	flagLogTimestamp bool

	flagSysLog        bool
	flagGenCmdDocs    bool
	flagGenConfigDocs bool

	flagLogAppName string

	flagVersion bool
)

var confSentryDSN = config.RegisterOption("jim.sentry_dsn", "Sentry credentials for sentry logging hook", "")

func init() {
	flag.BoolVar(&flagRunBot, "bot", false, "Set to run the discord shards and the command handlers")
	flag.BoolVar(&flagRunEverything, "all", false, "Set to run everything (discord bot and backgroundworkers)")
	flag.BoolVar(&flagDryRun, "dry", false, "Do a dryrun, initialize everything but don't actually start anything")
	flag.BoolVar(&flagSysLog, "syslog", false, "Set to log to syslog (only linux)")
	flag.StringVar(&flagLogAppName, "logappname", "safetyjim", "When using syslog, the application name will be set to this")
	flag.BoolVar(&flagRunBWC, "bgworkers", false, "Run the expiry jobs and the metrics server, at least one process needs this")
	flag.BoolVar(&flagGenCmdDocs, "gencmddocs", false, "Generate command docs and exit")
	flag.BoolVar(&flagGenConfigDocs, "genconfigdocs", false, "Generate config docs and exit")

	flag.BoolVar(&flagLogTimestamp, "ts", false, "Set to include timestamps in log")

	flag.BoolVar(&flagVersion, "version", false, "Print the version and exit")
}

var (
	shardManager *bot.ShardManager
	cancelShards context.CancelFunc
)

func Init() {
	if !flag.Parsed() {
		flag.Parse()
	}

	if flagVersion {
		fmt.Println(common.VERSION)
		os.Exit(0)
	}

	common.AddLogHook(common.ContextHook{})

	common.SetLogFormatter(&log.TextFormatter{
		DisableTimestamp: !flagLogTimestamp,
		ForceColors:      common.Testing,
		SortingFunc:      logrusSortingFunc,
	})

	if flagSysLog {
		AddSyslogHooks()
	}

	if !flagRunBot && !flagRunEverything && !flagDryRun && !flagRunBWC && !flagGenCmdDocs && !flagGenConfigDocs {
		log.Error("Didnt specify what to run, see -h for more info")
		os.Exit(1)
	}

	config.AddSource(&config.EnvSource{})
	config.Load()

	if flagGenConfigDocs {
		return
	}

	log.Info("Starting Safety Jim version " + common.VERSION)

	err := common.CoreInit()
	if err != nil {
		log.WithError(err).Fatal("Failed running core init")
	}

	if common.RedisPool != nil {
		// values in the redis config hash override the environment
		config.AddSource(&config.RedisConfigStore{Pool: common.RedisPool})
		config.Load()
	}

	if confSentryDSN.GetString() != "" {
		addSentryHook()
	}
}

func Run() {
	if flagGenConfigDocs {
		GenConfigDocs()
		return
	}

	st, err := store.New(common.PQ)
	if err != nil {
		log.WithError(err).Fatal("Failed initializing the store")
	}

	router := bot.NewEventRouter()
	shardManager = bot.NewShardManager(common.ConfShardCount.GetInt(), router)

	cache := settings.NewCache(st)
	cache.DefaultChannel = func(ctx context.Context, guildID int64) int64 {
		return bot.DefaultChannel(shardManager.GatewayForGuild(guildID), guildID)
	}

	// the expiry jobs share the member locks of the actions
	mod := moderation.New(st, cache)

	registry := commands.NewRegistry()
	runBot := flagRunBot || flagRunEverything || flagDryRun || flagGenCmdDocs
	if runBot {
		dispatcher := commands.NewDispatcher(cache, registry)
		dispatcher.AddHandlers(router)

		mod.Register(registry, dispatcher, router)
		reminders.New(st).Register(registry)
	}

	expiry.RegisterPlugin(expiry.NewReconciler(st, cache, shardManager, mod))

	if flagGenCmdDocs {
		GenCommandsDocs(registry)
		return
	}

	if flagDryRun {
		log.Println("This is a dry run, exiting")
		return
	}

	// a background worker only process still needs the sessions to lift bans and deliver reminders,
	// the router just has no handlers to send the events to
	token := common.ConfBotToken.GetString()
	if token == "" {
		log.Fatal("No bot token configured, set JIM_TOKEN")
	}

	var ctx context.Context
	ctx, cancelShards = context.WithCancel(context.Background())

	err = shardManager.OpenDiscord(ctx, token)
	if err != nil {
		log.WithError(err).Fatal("Failed connecting to discord")
	}
	shardManager.Start(ctx)

	if flagRunBWC || flagRunEverything {
		go backgroundworkers.RunWorkers()
	}

	listenSignal()
}

// Gracefull shutdown
func listenSignal() {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c
	shutdown()
}

func shutdown() {
	log.Info("SHUTTING DOWN... ")

	wg := new(sync.WaitGroup)

	// workers first, they use the sessions
	if flagRunBWC || flagRunEverything {
		backgroundworkers.StopWorkers(wg)
		log.Info("Waiting for background workers to shut down...")
		wg.Wait()
	}

	cancelShards()
	shardManager.Stop()

	sentry.Flush(time.Second * 2)

	log.Info("Bye..")
	os.Exit(0)
}

func addSentryHook() {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:     confSentryDSN.GetString(),
		Release: common.VERSION,
	})

	if err == nil {
		hook := &sentryhook.Hook{}
		common.AddLogHook(hook)
		log.Info("Added Sentry Hook")
	} else {
		log.WithError(err).Error("Failed adding sentry hook")
	}
}

var logSortPriority = []string{
	"time",
	"level",
	"p",
	"msg",
	"stck",
}

func logrusSortingFunc(fields []string) {
	sort.Slice(fields, func(i, j int) bool {

		iPriority := findStringIndex(logSortPriority, fields[i])
		jPriority := findStringIndex(logSortPriority, fields[j])

		if iPriority != -1 && jPriority == -1 {
			return true
		} else if jPriority != -1 && iPriority == -1 {
			return false
		} else if iPriority == -1 && jPriority == -1 {
			return strings.Compare(fields[i], fields[j]) < 0
		}

		// both has priority
		return iPriority < jPriority
	})
}

func findStringIndex(slice []string, s string) int {
	for i, v := range slice {
		if v == s {
			return i
		}
	}

	return -1
}
