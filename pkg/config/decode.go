package config

import (
	"encoding/json"
	"math"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/hyp3rd/ewrap"
	"github.com/mitchellh/mapstructure"
)

// rawDocument mirrors the JSON document. Pointer fields distinguish an absent
// key from a zero value so absent keys leave defaults untouched.
type rawDocument struct {
	LoggingConfig *rawLoggingConfig `mapstructure:"logging_config"`
}

type rawLoggingConfig struct {
	EnableCloudLogging   *bool          `mapstructure:"enable_cloud_logging"`
	DestinationProjectID *string        `mapstructure:"destination_project_id"`
	LogFilters           []rawLogFilter `mapstructure:"log_filters"`
	EventTypes           []string       `mapstructure:"event_types"`
}

type rawLogFilter struct {
	Pattern      *string `mapstructure:"pattern"       validate:"required"`
	HeaderBytes  *int    `mapstructure:"header_bytes"`
	MessageBytes *int    `mapstructure:"message_bytes"`
}

var filterValidator = validator.New(validator.WithRequiredStructEnabled())

func fromDocument(doc map[string]any) (Config, error) {
	var raw rawDocument

	err := decodeInto(&raw, doc)
	if err != nil {
		return Config{}, malformedError(err, "decode logging_config")
	}

	cfg := Default()
	if raw.LoggingConfig == nil {
		return cfg, nil
	}

	lc := raw.LoggingConfig

	if lc.EnableCloudLogging != nil {
		cfg.enableCloudLogging = *lc.EnableCloudLogging
	}

	if lc.DestinationProjectID != nil {
		cfg.destinationProjectID = *lc.DestinationProjectID
		cfg.hasDestination = true
	}

	if lc.LogFilters != nil {
		filters, err := buildFilters(lc.LogFilters)
		if err != nil {
			return Config{}, err
		}

		cfg.logFilters = filters
	}

	if lc.EventTypes != nil {
		events, err := buildEventTypes(lc.EventTypes)
		if err != nil {
			return Config{}, err
		}

		cfg.eventTypes = events
	}

	return cfg, nil
}

func buildFilters(raw []rawLogFilter) ([]LogFilter, error) {
	filters := make([]LogFilter, 0, len(raw))

	for i, entry := range raw {
		err := filterValidator.Struct(entry)
		if err != nil {
			return nil, missingPatternError(i)
		}

		filter := LogFilter{Pattern: *entry.Pattern}
		if entry.HeaderBytes != nil {
			filter.HeaderBytes = *entry.HeaderBytes
		}

		if entry.MessageBytes != nil {
			filter.MessageBytes = *entry.MessageBytes
		}

		filters = append(filters, filter)
	}

	return filters, nil
}

func buildEventTypes(raw []string) ([]EventType, error) {
	events := make([]EventType, 0, len(raw))
	seen := make(map[EventType]struct{}, len(raw))

	for _, name := range raw {
		event, err := ParseEventType(name)
		if err != nil {
			return nil, err
		}

		if _, dup := seen[event]; dup {
			continue
		}

		seen[event] = struct{}{}
		events = append(events, event)
	}

	return events, nil
}

func decodeInto(target *rawDocument, input map[string]any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     target,
		DecodeHook: strictNumberHook,
	})
	if err != nil {
		return ewrap.Wrap(err, "create decoder")
	}

	err = decoder.Decode(input)
	if err != nil {
		return ewrap.Wrap(err, "decode config")
	}

	return nil
}

// strictNumberHook stops mapstructure from turning numbers into strings or
// silently truncating fractional byte limits. Integral numbers written in
// exponent form, such as 1e3, are accepted for integer fields.
func strictNumberHook(_, to reflect.Type, data any) (any, error) {
	switch value := data.(type) {
	case json.Number:
		if to.Kind() == reflect.String {
			return nil, ewrap.Newf("expected string, got number %s", value.String())
		}

		if isIntKind(to.Kind()) {
			return integralNumber(value)
		}
	case float64:
		if isIntKind(to.Kind()) && value != math.Trunc(value) {
			return nil, ewrap.Newf("expected integer, got %v", value)
		}
	}

	return data, nil
}

func integralNumber(value json.Number) (int64, error) {
	n, err := value.Int64()
	if err == nil {
		return n, nil
	}

	f, err := value.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, ewrap.Newf("expected integer, got %s", value.String())
	}

	return int64(f), nil
}

func isIntKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}
