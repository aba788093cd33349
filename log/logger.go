package log

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Ctx is a set of key/value pairs attached to a log line.
type Ctx map[string]interface{}

func (c Ctx) toArray() []interface{} {
	arr := make([]interface{}, 0, len(c)*2)
	for k, v := range c {
		arr = append(arr, k, v)
	}
	return arr
}

// normalize pads an odd-length context slice with a trailing nil so it
// always forms complete key/value pairs.
func normalize(ctx []interface{}) []interface{} {
	if len(ctx)%2 != 0 {
		ctx = append(ctx, nil)
	}
	return ctx
}

var levelToLogrus = map[Lvl]logrus.Level{
	LvlCrit:  logrus.FatalLevel,
	LvlFatal: logrus.FatalLevel,
	LvlError: logrus.ErrorLevel,
	LvlWarn:  logrus.WarnLevel,
	LvlInfo:  logrus.InfoLevel,
	LvlDebug: logrus.DebugLevel,
	LvlTrace: logrus.TraceLevel,
}

// logger implements Logger on top of the package-level logrus instance,
// carrying an immutable context inherited by New.
type logger struct {
	ctx     []interface{}
	mapPool sync.Pool
}

func (l *logger) New(ctx ...interface{}) Logger {
	merged := make([]interface{}, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, normalize(ctx)...)
	return &logger{ctx: merged, mapPool: sync.Pool{New: l.mapPool.New}}
}

func (l *logger) write(msg string, lvl Lvl, ctx []interface{}, skip int) {
	_ = skip
	fields, _ := l.mapPool.New().(map[string]interface{})
	if fields == nil {
		fields = make(map[string]interface{})
	}
	defer func() {
		for k := range fields {
			delete(fields, k)
		}
		l.mapPool.Put(fields)
	}()

	all := normalize(append(append([]interface{}{}, l.ctx...), ctx...))
	for i := 0; i+1 < len(all); i += 2 {
		key, ok := all[i].(string)
		if !ok {
			key = "!BADKEY"
		}
		fields[key] = all[i+1]
	}

	entry := terminal.WithFields(fields)
	level := levelToLogrus[lvl]
	entry.Log(level, msg)
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(msg, LvlTrace, ctx, skipLevel) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(msg, LvlDebug, ctx, skipLevel) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(msg, LvlInfo, ctx, skipLevel) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(msg, LvlWarn, ctx, skipLevel) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(msg, LvlError, ctx, skipLevel) }
func (l *logger) Crit(msg string, ctx ...interface{}) {
	l.write(msg, LvlCrit, ctx, skipLevel)
}
