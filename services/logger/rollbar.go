package logsvc

import (
	"fmt"
	"io"
	"os"
	"sort"

	kitlog "github.com/go-kit/log"
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/user"
)

// RollbarLogger reports to rollbar and writes logfmt lines to a local writer.
type RollbarLogger struct {
	kit kitlog.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(w io.Writer, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)

	kit := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	kit = kitlog.With(kit, "ts", kitlog.DefaultTimestampUTC, "caller", kitlog.Caller(5), "app", conf.AppName)
	return &RollbarLogger{kit: kit}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set logged in User
		if usr, ok := arg.(user.User); ok {
			if !usrSet { // only set one User
				rollbar.SetPerson(usr.ID, usr.Username, usr.Email)
				usrSet = true
			}
		} else {
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

// keyvals flattens args into logfmt pairs.
func keyvals(level, msg string, args []interface{}) []interface{} {
	kv := []interface{}{"level", level, "msg", msg}
	for _, arg := range args {
		switch v := arg.(type) {
		case error:
			kv = append(kv, "err", v.Error())
		case map[string]interface{}:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				kv = append(kv, k, v[k])
			}
		case user.User:
			kv = append(kv, "user", v.ID)
		default:
			kv = append(kv, "extra", fmt.Sprintf("%+v", v))
		}
	}
	return kv
}

func (l RollbarLogger) log(level, msg string, args []interface{}) {
	_ = l.kit.Log(keyvals(level, msg, args)...)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.log("debug", msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.log("info", msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.log("warn", msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.log("error", msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.log("fatal", msg, args)
	rollbar.Wait()
	os.Exit(1)
}
