package output

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats data as YAML.
//
// Field names follow the yaml tag when present. Structs tagged only for
// JSON are written with lower-cased Go field names, so types meant for
// YAML output carry both tags.
type YAMLFormatter struct{}

// Format writes data as a single YAML document.
func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}
