package sentryhook

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// Hook forwards error level log entries to sentry, tagging them with the plugin, shard and job they came from
type Hook struct{}

func (hook Hook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.ErrorLevel,
		logrus.FatalLevel,
		logrus.PanicLevel,
	}
}

// fields that become searchable tags, everything else goes in extra
var tagFields = map[string]string{
	"p":     "plugin",
	"shard": "shard",
	"job":   "job",
	"cmd":   "cmd",
}

func (hook Hook) Fire(entry *logrus.Entry) error {
	hub := sentry.CurrentHub().Clone()
	if hub == nil {
		return nil
	}

	err, _ := entry.Data[logrus.ErrorKey].(error)

	hub.WithScope(func(s *sentry.Scope) {
		tags, extra := splitFields(entry.Data)
		s.SetTags(tags)
		s.SetExtras(extra)

		if err != nil {
			s.SetExtra("message", entry.Message)
			hub.CaptureException(err)
			return
		}

		hub.CaptureMessage(entry.Message)
	})

	return nil
}

func splitFields(data logrus.Fields) (tags map[string]string, extra map[string]interface{}) {
	tags = make(map[string]string)
	extra = make(map[string]interface{})

	for k, v := range data {
		switch k {
		case "stck", logrus.ErrorKey:
			continue
		case "guild":
			extra["guild_id"] = fmt.Sprint(v)
			continue
		}

		if tag, ok := tagFields[k]; ok {
			tags[tag] = fmt.Sprint(v)
		} else {
			extra[k] = fmt.Sprint(v)
		}
	}

	return tags, extra
}
