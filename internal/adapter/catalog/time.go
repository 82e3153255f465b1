package catalog

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// The catalog serializes dates without a zone; zoned RFC 3339 is accepted too.
var catalogTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

type catalogTime time.Time

func (t *catalogTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("catalog time: %w", err)
	}
	if s == "" {
		return nil
	}

	for _, layout := range catalogTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = catalogTime(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("catalog time: unsupported format %q", s)
}
