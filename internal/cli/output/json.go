package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter formats data as indented JSON.
type JSONFormatter struct{}

// Format writes data followed by a newline.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
