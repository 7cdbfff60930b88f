package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON, false).(*JSONFormatter); !ok {
		t.Error("json: expected JSONFormatter")
	}
	if _, ok := NewFormatter(FormatYAML, false).(*YAMLFormatter); !ok {
		t.Error("yaml: expected YAMLFormatter")
	}
	tf, ok := NewFormatter(FormatTable, true).(*TableFormatter)
	if !ok || !tf.Wide {
		t.Errorf("table wide: got %#v", tf)
	}
	if _, ok := NewFormatter("unknown", false).(*TableFormatter); !ok {
		t.Error("unknown format should default to table")
	}
}

type yamlItem struct {
	SessionID string `json:"session_id" yaml:"session_id"`
	FileCount int    `json:"file_count" yaml:"file_count"`
}

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{}).Format(&buf, []yamlItem{{SessionID: "chat-1", FileCount: 2}}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	want := "[\n  {\n    \"session_id\": \"chat-1\",\n    \"file_count\": 2\n  }\n]\n"
	if buf.String() != want {
		t.Errorf("Format =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestYAMLFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLFormatter{}).Format(&buf, []yamlItem{{SessionID: "chat-1", FileCount: 2}}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	want := "- session_id: chat-1\n  file_count: 2\n"
	if buf.String() != want {
		t.Errorf("Format =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestYAMLFormatter_Map(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLFormatter{}).Format(&buf, map[string]any{"b": 1, "a": "x"}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if got := buf.String(); !strings.HasPrefix(got, "a: x\nb: 1\n") {
		t.Errorf("Format = %q", got)
	}
}
