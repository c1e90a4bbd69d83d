package decode

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Options customizes decode behavior.
type Options struct {
	// WeaklyTypedInput enables lenient decoding, e.g. "123" -> int.
	// Default true.
	WeaklyTypedInput bool
}

func DefaultOptions() Options {
	return Options{WeaklyTypedInput: true}
}

// Map decodes a generic JSON object into a typed payload T. Field lookup
// uses the `json` tag, matching how payloads are declared.
func Map[T any](m map[string]any, opts ...Options) (*T, error) {
	if m == nil {
		return nil, fmt.Errorf("map is nil")
	}

	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}

	var out T
	decCfg := &mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
	}
	dec, err := mapstructure.NewDecoder(decCfg)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &out, nil
}
