package log

import (
	"log/slog"

	"github.com/m-mizutani/masq"
)

// redactedFields never reach the output in clear text.
var redactedFields = []string{
	FieldSessionID,
	"cookie",
	"set-cookie",
	"authorization",
}

// newRedactAttr returns a masq ReplaceAttr for slog.HandlerOptions.
func newRedactAttr() func([]string, slog.Attr) slog.Attr {
	opts := make([]masq.Option, 0, len(redactedFields)+1)
	for _, name := range redactedFields {
		opts = append(opts, masq.WithFieldName(name))
	}
	opts = append(opts, masq.WithFieldPrefix("session_"))
	return masq.New(opts...)
}
