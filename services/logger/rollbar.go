package logsvc

import (
	"log"
	"strconv"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/session"
	"github.com/trezcool/masomo-obe/core/user"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Close waits for the queued items to be sent.
func (l RollbarLogger) Close() {
	rollbar.Close()
}

type person struct {
	id, username, email string
}

// personOf recognizes the users the API (user.User) and the clients (session.Profile) log about.
func personOf(arg interface{}) (person, bool) {
	switch usr := arg.(type) {
	case user.User:
		return person{strconv.Itoa(usr.ID), usr.Username, usr.Email}, true
	case *user.User:
		if usr != nil {
			return person{strconv.Itoa(usr.ID), usr.Username, usr.Email}, true
		}
		return person{}, true
	case session.Profile:
		if usr.ID == 0 {
			return person{}, true
		}
		return person{strconv.Itoa(usr.ID), usr.Username, usr.Email}, true
	}
	return person{}, false
}

// expected fmt: msg | error, map[string]interface{}, user.User or session.Profile
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		p, isUser := personOf(arg)
		if !isUser {
			newArgs = append(newArgs, arg)
			continue
		}
		if !usrSet && p.id != "" { // only set one User
			rollbar.SetPerson(p.id, p.username, p.email)
			usrSet = true
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Println(level + ": " + msg)
	for _, arg := range args {
		if p, isUser := personOf(arg); isUser {
			if p.id != "" {
				l.std.Printf("user: %s (%s)\n", p.username, p.id)
			}
			continue
		}
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	rollbar.Close()
	l.std.Fatal(msg)
}
