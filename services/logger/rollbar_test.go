package logsvc

import (
	"bytes"
	"fmt"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/session"
	"github.com/trezcool/masomo-obe/core/user"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), core.NewTestConfig())
	logger.Enable(false)

	args := logger.prepare("msg", []interface{}{
		fmt.Errorf("boom"),
		user.User{ID: 4, Username: "jane"},
		session.Profile{ID: 5, Username: "joe"},
		map[string]interface{}{"course": 1},
	})
	assert.Len(t, args, 3, "users are not sent as extra data")
	assert.Equal(t, "msg", args[0])

	logger.Warn("listing mappings", fmt.Errorf("boom"), session.Profile{})
	assert.Equal(t, "WARN: listing mappings\nboom\n", buf.String(), "anonymous profiles are not printed")

	buf.Reset()
	logger.Info("created", session.Profile{ID: 5, Username: "joe"})
	assert.Equal(t, "INFO: created\nuser: joe (5)\n", buf.String())
}
