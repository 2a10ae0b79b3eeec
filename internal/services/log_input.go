package services

import (
	"encoding/json"
	"errors"
)

// ErrMalformedBody indicates a request body that is not a JSON object
var ErrMalformedBody = errors.New("request body must be a JSON object")

// logInputFields lists the accepted keys in the order errors are reported
var logInputFields = []struct {
	name string
	kind string
	dest func(in *LogInput) interface{}
}{
	{"level", "string", func(in *LogInput) interface{} { return &in.Level }},
	{"message", "string", func(in *LogInput) interface{} { return &in.Message }},
	{"details", "string", func(in *LogInput) interface{} { return &in.Details }},
	{"deviceId", "string", func(in *LogInput) interface{} { return &in.DeviceID }},
	{"deviceModel", "string", func(in *LogInput) interface{} { return &in.DeviceModel }},
	{"osVersion", "string", func(in *LogInput) interface{} { return &in.OSVersion }},
	{"appVersion", "string", func(in *LogInput) interface{} { return &in.AppVersion }},
	{"latitude", "number", func(in *LogInput) interface{} { return &in.Latitude }},
	{"longitude", "number", func(in *LogInput) interface{} { return &in.Longitude }},
	{"userId", "string", func(in *LogInput) interface{} { return &in.UserID }},
	{"nameUser", "string", func(in *LogInput) interface{} { return &in.NameUser }},
	{"timestamp", "string", func(in *LogInput) interface{} { return &in.Timestamp }},
}

// UnmarshalJSON decodes each field on its own so that a value of the wrong
// JSON type is reported against its field instead of failing the whole body.
// Unknown keys are ignored.
func (in *LogInput) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return ErrMalformedBody
	}

	*in = LogInput{}
	for _, field := range logInputFields {
		value, ok := raw[field.name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(value, field.dest(in)); err != nil {
			if in.typeErrors == nil {
				in.typeErrors = make(map[string]string)
			}
			in.typeErrors[field.name] = field.name + " must be a " + field.kind
		}
	}
	return nil
}
