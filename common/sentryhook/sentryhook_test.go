package sentryhook

import (
	"testing"

	"emperror.dev/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSplitFields(t *testing.T) {
	tags, extra := splitFields(logrus.Fields{
		"p":     "expiry",
		"job":   "bans",
		"guild": int64(100),
		"id":    5,
		"stck":  "expiry.go:10",
		"error": errors.NewPlain("boom"),
	})

	assert.Equal(t, map[string]string{"plugin": "expiry", "job": "bans"}, tags)
	assert.Equal(t, map[string]interface{}{"guild_id": "100", "id": "5"}, extra)
}
