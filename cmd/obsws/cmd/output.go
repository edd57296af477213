package cmd

import (
	"encoding/json"
	"fmt"
	"io"
)

// format renders v as compact JSON. With raw, strings are written without
// quotes.
func format(v any, raw bool) (string, error) {
	if s, ok := v.(string); ok && raw {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return string(data), nil
}

func printValue(w io.Writer, v any, raw bool) error {
	text, err := format(v, raw)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, text)
	return err
}
