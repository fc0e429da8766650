package common

import (
	"os"
	"runtime"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/jmoiron/sqlx"
	"github.com/mediocregopher/radix/v3"
	"github.com/sirupsen/logrus"

	// postgres driver
	_ "github.com/lib/pq"
)

const VERSION = "3.4.0"

var (
	// Set when running the test suite, or JIM_TESTING is set
	Testing = os.Getenv("JIM_TESTING") != ""

	// PQ is nil when no postgres dsn is configured, the in-memory store is used instead
	PQ        *sqlx.DB
	RedisPool *radix.Pool

	logger = GetFixedPrefixLogger("common")
)

// CoreInit connects to the configured databases, both are optional
func CoreInit() error {
	if dsn := ConfPQDSN.GetString(); dsn != "" {
		db, err := connectPQ(dsn)
		if err != nil {
			return errors.WithMessage(err, "postgres")
		}
		PQ = db
	} else {
		logger.Warn("No postgres dsn configured, action records will only be kept in memory")
	}

	if addr := ConfRedis.GetString(); addr != "" {
		pool, err := radix.NewPool("tcp", addr, ConfRedisPoolSize.GetInt())
		if err != nil {
			return errors.WithMessage(err, "redis")
		}
		RedisPool = pool
	}

	return nil
}

func connectPQ(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, errors.WithStackIf(err)
	}

	db.SetMaxOpenConns(ConfPQMaxConns.GetInt())
	db.SetMaxIdleConns(ConfPQMaxConns.GetInt())
	db.SetConnMaxLifetime(time.Minute * 10)

	err = db.Ping()
	return db, errors.WithStackIf(err)
}

func GetPluginLogger(plugin Plugin) *logrus.Entry {
	return logrus.WithField("p", plugin.PluginInfo().SysName)
}

func GetFixedPrefixLogger(prefix string) *logrus.Entry {
	return logrus.WithField("p", prefix)
}

func AddLogHook(hook logrus.Hook) {
	logrus.AddHook(hook)
}

func SetLogFormatter(formatter logrus.Formatter) {
	logrus.SetFormatter(formatter)
}

// ErrWithCaller prefixes the error with the name of the function that called this
func ErrWithCaller(err error) error {
	if err == nil {
		return nil
	}

	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return errors.WithMessage(err, "unknown caller")
	}

	f := runtime.FuncForPC(pc)
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i != -1 {
		name = name[i+1:]
	}

	return errors.WithMessage(err, name)
}

// LogIgnoreError logs the error if it's not nil, for the places where there's nothing else to do with it
func LogIgnoreError(err error, msg string, data logrus.Fields) {
	if err == nil {
		return
	}

	l := logger.WithError(err)
	if data != nil {
		l = l.WithFields(data)
	}

	l.Error(msg)
}
