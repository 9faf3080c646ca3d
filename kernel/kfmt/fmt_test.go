package kfmt

import (
	"bytes"
	"testing"
)

func TestFprintf(t *testing.T) {
	specs := []struct {
		format string
		args   []interface{}
		exp    string
	}{
		{"no verbs", nil, "no verbs"},
		{"literal %% escape", nil, "literal % escape"},
		{"%s", []interface{}{"foo"}, "foo"},
		{"%5s", []interface{}{"foo"}, "  foo"},
		{"%s", []interface{}{[]byte("bar")}, "bar"},
		{"%c%c", []interface{}{byte('o'), 'k'}, "ok"},
		{"%t %t", []interface{}{true, false}, "true false"},
		{"%d", []interface{}{123}, "123"},
		{"%5d", []interface{}{42}, "   42"},
		{"%d", []interface{}{-42}, "-42"},
		{"%5d", []interface{}{-42}, "  -42"},
		{"%d", []interface{}{uint64(10)}, "10"},
		{"%x", []interface{}{uint32(0x1f)}, "1f"},
		{"%16x", []interface{}{uintptr(0xbadf00d)}, "000000000badf00d"},
		{"%5x", []interface{}{int64(-1)}, "-0001"},
		{"%o", []interface{}{uint8(8)}, "10"},
		{"%o", []interface{}{0}, "0"},
		{"mixed %s=%4d.", []interface{}{"val", 7}, "mixed val=   7."},
		// error tokens
		{"%d", nil, "(MISSING)"},
		{"%d", []interface{}{"oops"}, "%!(WRONGTYPE)"},
		{"%t", []interface{}{123}, "%!(WRONGTYPE)"},
		{"ok", []interface{}{1}, "ok%!(EXTRA)"},
	}

	var buf bytes.Buffer
	for specIndex, spec := range specs {
		buf.Reset()
		Fprintf(&buf, spec.format, spec.args...)
		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected output %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestFprintfWithTruncatedFormat(t *testing.T) {
	var buf bytes.Buffer
	Fprintf(&buf, "truncated %", 1)
	if got, exp := buf.String(), "truncated %!(NOVERB)%!(EXTRA)"; got != exp {
		t.Fatalf("expected output %q; got %q", exp, got)
	}
}

func TestPrintfBeforeAndAfterSinkRegistration(t *testing.T) {
	defer func() {
		outputSink = nil
		earlyBuffer = ringBuffer{}
	}()
	outputSink = nil
	earlyBuffer = ringBuffer{}

	// Output emitted before a sink is registered lands in the early buffer
	// and is drained into the sink when one appears.
	Printf("early %d", 1)

	var buf bytes.Buffer
	SetOutputSink(&buf)
	if got, exp := buf.String(), "early 1"; got != exp {
		t.Fatalf("expected drained early output %q; got %q", exp, got)
	}

	Printf(" late %d", 2)
	if got, exp := buf.String(), "early 1 late 2"; got != exp {
		t.Fatalf("expected output %q; got %q", exp, got)
	}
}
