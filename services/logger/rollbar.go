package logsvc

import (
	"context"
	"log"
	"strconv"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/user"
)

// RollbarLogger prints to a standard logger and reports to Rollbar when a token is configured.
type RollbarLogger struct {
	std    *log.Logger
	client *rollbar.Client
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	client := rollbar.NewAsync(conf.RollbarToken, conf.Env, conf.Build, conf.Server.Host, "")
	client.SetStackTracer(errors.StackTracer)
	client.SetEnabled(conf.RollbarToken != "" && !conf.Debug && !conf.TestMode)
	return &RollbarLogger{std: std, client: client}
}

func (l *RollbarLogger) Enable(enabled bool) {
	l.client.SetEnabled(enabled)
}

// Close flushes the pending Rollbar items.
func (l *RollbarLogger) Close() error {
	return l.client.Close()
}

// entry is a log call split into what Rollbar expects.
type entry struct {
	ctx    context.Context
	err    error
	extras map[string]interface{}
}

// parse sorts the extras of a log call: one error, one user.User, maps are merged, anything else is listed under "args".
func parse(args []interface{}) entry {
	e := entry{ctx: context.Background()}
	var others []interface{}
	var usrSet bool
	for _, arg := range args {
		switch val := arg.(type) {
		case error:
			if e.err == nil {
				e.err = val
			} else {
				others = append(others, val.Error())
			}
		case user.User:
			if !usrSet {
				e.ctx = rollbar.NewPersonContext(e.ctx, &rollbar.Person{
					Id:       strconv.Itoa(val.ID),
					Username: val.Username,
					Email:    val.Email,
				})
				usrSet = true
			}
		case map[string]interface{}:
			if e.extras == nil {
				e.extras = make(map[string]interface{}, len(val))
			}
			for k, v := range val {
				e.extras[k] = v
			}
		default:
			others = append(others, val)
		}
	}
	if len(others) > 0 {
		if e.extras == nil {
			e.extras = make(map[string]interface{}, 1)
		}
		e.extras["args"] = others
	}
	return e
}

func (l *RollbarLogger) log(level, msg string, args []interface{}) {
	e := parse(args)
	if e.err != nil {
		if e.extras == nil {
			e.extras = make(map[string]interface{}, 1)
		}
		e.extras["message"] = msg
		l.client.ErrorWithExtrasAndContext(e.ctx, level, e.err, e.extras)
	} else {
		l.client.MessageWithExtrasAndContext(e.ctx, level, msg, e.extras)
	}

	l.std.Printf("[%s] %s", level, msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	l.log(rollbar.DEBUG, msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	l.log(rollbar.INFO, msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log(rollbar.WARN, msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	l.log(rollbar.ERR, msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	_ = l.client.Close()
	l.std.Fatal(msg)
}
