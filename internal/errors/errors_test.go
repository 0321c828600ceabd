package errors

import (
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFromRegistry(t *testing.T) {
	e := New("E104")
	if e.Code != "E104" || e.Category != CategoryConfig {
		t.Fatalf("New(E104) = %+v", e)
	}
	if e.Message != "Invalid frame rate" {
		t.Errorf("Message = %q", e.Message)
	}
	if e.Error() != "E104: Invalid frame rate" {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestNewUnknownCode(t *testing.T) {
	e := New("E999")
	if e.Message != "Unknown error" {
		t.Errorf("Message = %q", e.Message)
	}
}

func TestEveryCodeHasTemplate(t *testing.T) {
	for _, code := range GetAllCodes() {
		tmpl, ok := GetTemplate(code)
		if !ok {
			t.Fatalf("GetTemplate(%s) missing", code)
		}
		if tmpl.Message == "" || tmpl.Detail == "" || tmpl.Category == "" {
			t.Errorf("%s: incomplete template %+v", code, tmpl)
		}
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	e := New("E140").Wrap(cause)
	if !stderrors.Is(e, cause) {
		t.Error("errors.Is should find wrapped cause")
	}
	if !strings.HasSuffix(e.Error(), ": boom") {
		t.Errorf("Error() = %q", e.Error())
	}
	if !HasCode(e, "E140") || HasCode(e, "E141") {
		t.Error("HasCode mismatch")
	}
	if HasCode(cause, "E140") {
		t.Error("plain error should not carry a code")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E143") != nil {
		t.Error("FromError(nil) should be nil")
	}
	coded := New("E101")
	if got := FromError(coded, "E143"); got != coded {
		t.Error("FromError should return an existing *Error unchanged")
	}
	got := FromError(stderrors.New("read failed"), "E143")
	if got.Code != "E143" || got.Wrapped == nil {
		t.Errorf("FromError = %+v", got)
	}
}

func TestWithLocationFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spc.yaml")
	content := "address: :6671\ncapture:\n  width: 440\n  fps: [\nmetrics: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	e := New("E101").WithLocationFromYAML(path, stderrors.New("yaml: line 4: did not find expected node content"))
	if e.Location == nil || e.Location.Line != 4 {
		t.Fatalf("Location = %+v", e.Location)
	}
	if len(e.Context) == 0 {
		t.Error("expected context lines")
	}

	e = New("E101").WithLocationFromYAML(path, stderrors.New("json: cannot unmarshal"))
	if e.Location.Line != 0 || e.Context != nil {
		t.Errorf("no line expected, got %+v", e.Location)
	}
	if e.Location.String() != path {
		t.Errorf("Location.String() = %q", e.Location.String())
	}
}

func TestLocationString(t *testing.T) {
	tests := []struct {
		loc  *Location
		want string
	}{
		{nil, ""},
		{&Location{File: "a.yaml"}, "a.yaml"},
		{&Location{File: "a.yaml", Line: 3}, "a.yaml:3"},
		{&Location{File: "a.yaml", Line: 3, Column: 5}, "a.yaml:3:5"},
	}
	for _, tt := range tests {
		if got := tt.loc.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	e := New("E102").
		WithSuggestion("Use host:port").
		WithExample("address: \":6671\"").
		Wrap(stderrors.New("missing port"))
	out := e.Format()
	for _, want := range []string{"ERROR E102", "Invalid listen address", "Hint: Use host:port", "Example:", "address: \":6671\"", "Cause: missing port"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("colors should be disabled")
	}
}

func TestFormatCompact(t *testing.T) {
	e := New("E103")
	e.Location = &Location{File: "spc.yaml", Line: 4}
	if got := e.FormatCompact(); got != "spc.yaml:4: E103: Invalid capture size" {
		t.Errorf("FormatCompact() = %q", got)
	}
}

func TestFormatJSON(t *testing.T) {
	e := New("E106").WithSuggestion("Set assets.s3.region").Wrap(stderrors.New(`quote " inside`))
	var got map[string]any
	if err := json.Unmarshal([]byte(e.FormatJSON()), &got); err != nil {
		t.Fatalf("FormatJSON is not valid JSON: %v\n%s", err, e.FormatJSON())
	}
	if got["code"] != "E106" || got["category"] != "config" {
		t.Errorf("got %v", got)
	}
	if got["cause"] != `quote " inside` {
		t.Errorf("cause = %v", got["cause"])
	}
}

func TestFprintError(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var b strings.Builder
	FprintError(&b, New("E143"))
	if !strings.Contains(b.String(), "ERROR E143: Input read failed") {
		t.Errorf("coded error output:\n%s", b.String())
	}

	b.Reset()
	FprintError(&b, stderrors.New("plain failure"))
	if strings.TrimSpace(b.String()) != "ERROR: plain failure" {
		t.Errorf("plain error output = %q", b.String())
	}
}

func TestFormatMarksLocation(t *testing.T) {
	DisableColors()
	defer EnableColors()

	e := New("E104")
	e.Location = &Location{File: "spc.yaml", Line: 3, Column: 8}
	e.Context = []string{"capture:", "  width: 440", "  fps: 0", "metrics: true"}
	out := e.Format()
	if !strings.Contains(out, "→     3 │   fps: 0") {
		t.Errorf("failing line not marked:\n%s", out)
	}
	if !strings.Contains(out, "^") {
		t.Errorf("column caret missing:\n%s", out)
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five", 9)
	for _, l := range lines {
		if len(l) > 9 {
			t.Errorf("line %q exceeds width", l)
		}
	}
	if strings.Join(lines, " ") != "one two three four five" {
		t.Errorf("wrapText lost words: %v", lines)
	}
}
