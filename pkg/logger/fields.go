package logger

import (
	"time"

	"github.com/rs/zerolog"
)

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindStrings
	kindInt64
	kindFloat64
	kindBool
	kindTime
	kindDuration
	kindError
	kindAny
)

// Field is one structured key/value attached to a log entry.
type Field struct {
	Key  string
	kind fieldKind
	str  string
	strs []string
	num  int64
	flt  float64
	t    time.Time
	err  error
	val  interface{}
}

// AddTo writes the field onto a zerolog event.
func (f Field) AddTo(ev *zerolog.Event) {
	switch f.kind {
	case kindString:
		ev.Str(f.Key, f.str)
	case kindStrings:
		ev.Strs(f.Key, f.strs)
	case kindInt64:
		ev.Int64(f.Key, f.num)
	case kindFloat64:
		ev.Float64(f.Key, f.flt)
	case kindBool:
		ev.Bool(f.Key, f.num != 0)
	case kindTime:
		ev.Time(f.Key, f.t)
	case kindDuration:
		ev.Dur(f.Key, time.Duration(f.num))
	case kindError:
		ev.AnErr(f.Key, f.err)
	default:
		ev.Interface(f.Key, f.val)
	}
}

func (f Field) context(c zerolog.Context) zerolog.Context {
	switch f.kind {
	case kindString:
		return c.Str(f.Key, f.str)
	case kindInt64:
		return c.Int64(f.Key, f.num)
	default:
		_, v := f.GetKeyValue()
		return c.Interface(f.Key, v)
	}
}

// GetKeyValue returns a JSON-friendly value for the digest collector.
func (f Field) GetKeyValue() (string, interface{}) {
	switch f.kind {
	case kindString:
		return f.Key, f.str
	case kindStrings:
		return f.Key, f.strs
	case kindInt64:
		return f.Key, f.num
	case kindFloat64:
		return f.Key, f.flt
	case kindBool:
		return f.Key, f.num != 0
	case kindTime:
		return f.Key, f.t.Format(time.RFC3339Nano)
	case kindDuration:
		return f.Key, time.Duration(f.num).String()
	case kindError:
		if f.err == nil {
			return f.Key, nil
		}
		return f.Key, f.err.Error()
	default:
		return f.Key, f.val
	}
}

func String(key, value string) Field { return Field{Key: key, kind: kindString, str: value} }

func Strings(key string, value []string) Field {
	return Field{Key: key, kind: kindStrings, strs: value}
}

func Int(key string, value int) Field { return Field{Key: key, kind: kindInt64, num: int64(value)} }

func Int64(key string, value int64) Field { return Field{Key: key, kind: kindInt64, num: value} }

func Float64(key string, value float64) Field { return Field{Key: key, kind: kindFloat64, flt: value} }

func Bool(key string, value bool) Field {
	f := Field{Key: key, kind: kindBool}
	if value {
		f.num = 1
	}
	return f
}

func Time(key string, value time.Time) Field { return Field{Key: key, kind: kindTime, t: value} }

// Duration logs d in zerolog's duration unit (milliseconds by default).
func Duration(key string, d time.Duration) Field {
	return Field{Key: key, kind: kindDuration, num: int64(d)}
}

func Error(err error) Field { return Field{Key: "error", kind: kindError, err: err} }

func Any(key string, value interface{}) Field { return Field{Key: key, kind: kindAny, val: value} }
