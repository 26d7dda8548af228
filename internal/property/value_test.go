package property

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		kind    Kind
		raw     string
		want    Value
		wantErr bool
	}{
		{KindInteger, "42", Int(42), false},
		{KindInteger, " -7 ", Int(-7), false},
		{KindInteger, "4.2", Value{}, true},
		{KindFloat, "4.2", Float(4.2), false},
		{KindFloat, "NaN", Value{}, true},
		{KindFloat, "Inf", Value{}, true},
		{KindBool, "1", Bool(true), false},
		{KindBool, "false", Bool(false), false},
		{KindString, "RAW16", String("RAW16"), false},
		{KindString, "   ", Value{}, true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.kind, tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidValue) {
				t.Errorf("Parse(%s, %q) error = %v, want ErrInvalidValue", tt.kind, tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%s, %q) error = %v", tt.kind, tt.raw, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Parse(%s, %q) = %+v, want %+v", tt.kind, tt.raw, got, tt.want)
		}
	}

	if _, err := Parse(Kind("blob"), "x"); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("Parse(blob) error = %v, want ErrKindMismatch", err)
	}
}

func TestValue_Text(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Int(75), "75"},
		{Float(-12.5), "-12.5"},
		{Bool(true), "true"},
		{String("2x2"), "2x2"},
	}
	for _, tt := range tests {
		if got := tt.v.Text(); got != tt.want {
			t.Errorf("Text() = %q, want %q", got, tt.want)
		}
	}
}

func TestValue_EqualDifferentKinds(t *testing.T) {
	if Int(1).Equal(Float(1)) {
		t.Error("values of different kinds must not be equal")
	}
}

func TestValue_Number(t *testing.T) {
	if f, ok := Bool(true).Number(); !ok || f != 1 {
		t.Errorf("Bool(true).Number() = %v, %v", f, ok)
	}
	if _, ok := String("x").Number(); ok {
		t.Error("String.Number() should not be ok")
	}
}
