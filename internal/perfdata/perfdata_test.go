package perfdata

import "testing"

func TestParseSimple(t *testing.T) {
	values := Parse("time=0.05s;1;5;0 size=512B")
	if len(values) != 2 {
		t.Fatalf("expected 2 values, got %d", len(values))
	}

	v := values[0]
	if v.Label != "time" || v.Value != 0.05 || v.Unit != "s" {
		t.Errorf("bad first value: %+v", v)
	}
	if v.Warn == nil || *v.Warn != 1 {
		t.Errorf("expected warn=1, got %v", v.Warn)
	}
	if v.Crit == nil || *v.Crit != 5 {
		t.Errorf("expected crit=5, got %v", v.Crit)
	}
	if v.Min == nil || *v.Min != 0 {
		t.Errorf("expected min=0, got %v", v.Min)
	}
	if v.Max != nil {
		t.Errorf("expected no max, got %v", v.Max)
	}

	if values[1].Label != "size" || values[1].Unit != "B" {
		t.Errorf("bad second value: %+v", values[1])
	}
}

func TestParseQuotedLabel(t *testing.T) {
	values := Parse("'used space'=75%;80;90;0;100")
	if len(values) != 1 {
		t.Fatalf("expected 1 value, got %d", len(values))
	}
	if values[0].Label != "used space" {
		t.Errorf("expected quoted label preserved, got %q", values[0].Label)
	}
	if values[0].Unit != "%" {
		t.Errorf("expected %% unit, got %q", values[0].Unit)
	}
}

func TestParseSkipsGarbage(t *testing.T) {
	values := Parse("ok=1 garbage noequals =3 x=notanumber y=2")
	if len(values) != 2 {
		t.Fatalf("expected 2 parseable values, got %d: %+v", len(values), values)
	}
	if values[0].Label != "ok" || values[1].Label != "y" {
		t.Errorf("wrong survivors: %+v", values)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	in := "time=0.05s;1;5;0 'used space'=75%;80;90;0;100"
	out := Format(Parse(in))
	if out != in {
		t.Errorf("round trip mismatch:\n in: %s\nout: %s", in, out)
	}
}

func TestFormatTrimsTrailingFields(t *testing.T) {
	v := Value{Label: "load", Value: 1.5}
	if got := v.String(); got != "load=1.5" {
		t.Errorf("expected bare value, got %q", got)
	}

	crit := 10.0
	v.Crit = &crit
	if got := v.String(); got != "load=1.5;;10" {
		t.Errorf("expected empty warn kept, got %q", got)
	}
}
