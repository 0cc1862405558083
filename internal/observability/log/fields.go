package log

import (
	"time"

	"go.uber.org/zap"
)

// Field is a typed key/value pair attached to a log entry.
type Field struct {
	Key   string
	Type  FieldType
	Value any
}

type FieldType uint8

const (
	AnyType FieldType = iota
	BoolType
	DurationType
	Float64Type
	IntType
	Int64Type
	StringType
	TimeType
	Uint64Type
	ErrorType
)

func Any(key string, val any) Field {
	return Field{Key: key, Type: AnyType, Value: val}
}

func Bool(key string, val bool) Field {
	return Field{Key: key, Type: BoolType, Value: val}
}

func Duration(key string, val time.Duration) Field {
	return Field{Key: key, Type: DurationType, Value: val}
}

func Float64(key string, val float64) Field {
	return Field{Key: key, Type: Float64Type, Value: val}
}

func Int(key string, val int) Field {
	return Field{Key: key, Type: IntType, Value: val}
}

func Int64(key string, val int64) Field {
	return Field{Key: key, Type: Int64Type, Value: val}
}

func String(key string, val string) Field {
	return Field{Key: key, Type: StringType, Value: val}
}

func Time(key string, val time.Time) Field {
	return Field{Key: key, Type: TimeType, Value: val}
}

func Uint64(key string, val uint64) Field {
	return Field{Key: key, Type: Uint64Type, Value: val}
}

func Error(val error) Field {
	return Field{Key: "error", Type: ErrorType, Value: val}
}

func toZapFields(fields []Field) []zap.Field {
	zf := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		switch f.Type {
		case BoolType:
			zf = append(zf, zap.Bool(f.Key, f.Value.(bool)))
		case DurationType:
			zf = append(zf, zap.Duration(f.Key, f.Value.(time.Duration)))
		case Float64Type:
			zf = append(zf, zap.Float64(f.Key, f.Value.(float64)))
		case IntType:
			zf = append(zf, zap.Int(f.Key, f.Value.(int)))
		case Int64Type:
			zf = append(zf, zap.Int64(f.Key, f.Value.(int64)))
		case StringType:
			zf = append(zf, zap.String(f.Key, f.Value.(string)))
		case TimeType:
			zf = append(zf, zap.Time(f.Key, f.Value.(time.Time)))
		case Uint64Type:
			zf = append(zf, zap.Uint64(f.Key, f.Value.(uint64)))
		case ErrorType:
			if f.Value == nil {
				zf = append(zf, zap.Error(nil))
				continue
			}
			zf = append(zf, zap.NamedError(f.Key, f.Value.(error)))
		default:
			zf = append(zf, zap.Any(f.Key, f.Value))
		}
	}
	return zf
}
