package types

import (
	"reflect"
	"testing"
)

func TestInputsFromBits(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		bits int
		want []Input
	}{
		{"none", 0, []Input{}},
		{"left", 1, []Input{InputLeft}},
		{"up left", 5, []Input{InputUp, InputLeft}},
		{"all directions", 15, []Input{InputUp, InputDown, InputLeft, InputRight}},
		{"heavy only", 16, []Input{InputHeavy}},
		{"heavy right", 18, []Input{InputHeavy, InputRight}},
		{"special up", 36, []Input{InputSpecial, InputUp}},
		{"heavy special", 48, []Input{InputHeavy, InputSpecial}},
		{"heavy special down left", 57, []Input{InputHeavy, InputSpecial, InputDown, InputLeft}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := InputsFromBits(tc.bits)
			if err != nil {
				t.Fatalf("InputsFromBits(%d): %v", tc.bits, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("InputsFromBits(%d) = %v, want %v", tc.bits, got, tc.want)
			}
		})
	}
}

func TestInputsFromBitsRange(t *testing.T) {
	t.Parallel()
	for _, bits := range []int{-1, 64, 1000} {
		if _, err := InputsFromBits(bits); err == nil {
			t.Errorf("InputsFromBits(%d): expected error", bits)
		}
	}
}

func TestBitsRoundTrip(t *testing.T) {
	t.Parallel()
	bits := Bits(InputHeavy, InputUp, InputRight)
	if bits != 22 {
		t.Fatalf("Bits = %d, want 22", bits)
	}
	got, err := InputsFromBits(bits)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []Input{InputHeavy, InputUp, InputRight}) {
		t.Fatalf("round trip = %v", got)
	}
}
