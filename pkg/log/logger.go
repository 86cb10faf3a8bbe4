package log

import "time"

// Logger is the structured logger every frameship component writes to.
// The daemon backs it with zerolog; embedders may route it elsewhere.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is one key-value pair attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int field. Counters and byte counts use it.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Float64 creates a float64 field.
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

// Bool creates a bool field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Err creates an error field with key "error".
func Err(err error) Field { return Field{Key: "error", Value: err} }

// DeviceID tags a line with the device it concerns.
func DeviceID(id string) Field { return Field{Key: "device_id", Value: id} }

// Any creates a field rendered as JSON, e.g. a whole configuration.
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }
