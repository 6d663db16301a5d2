package model

import (
	"reflect"
	"testing"
)

func TestParseSeatID(t *testing.T) {
	cases := []struct {
		in      string
		want    SeatID
		wantErr bool
	}{
		{in: "WLA-5", want: SeatID{Region: "WLA", Number: 5}},
		{in: " wlb-12 ", want: SeatID{Region: "WLB", Number: 12}},
		{in: "VIP-ROW-3", want: SeatID{Region: "VIP-ROW", Number: 3}},
		{in: "WLA", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "WLA-", wantErr: true},
		{in: "WLA-0", wantErr: true},
		{in: "WLA-x", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseSeatID(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got != tc.want {
				t.Fatalf("seat = %v, want %v", got, tc.want)
			}
			if got.String() != tc.want.String() {
				t.Fatalf("string = %q, want %q", got.String(), tc.want.String())
			}
		})
	}
}

func TestNormalizeSeatsSortsAndDeduplicates(t *testing.T) {
	got := NormalizeSeats([]SeatID{
		{Region: "wlb", Number: 1},
		{Region: "WLA", Number: 10},
		{Region: "WLA", Number: 2},
		{Region: " WLA", Number: 2},
	})
	want := []SeatID{{Region: "WLA", Number: 2}, {Region: "WLA", Number: 10}, {Region: "WLB", Number: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("normalized = %v, want %v", got, want)
	}
}

func TestParseCatalog(t *testing.T) {
	got, err := ParseCatalog("wla:1-3, VIP:7, WLA:3")
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	want := []SeatID{
		{Region: "VIP", Number: 7},
		{Region: "WLA", Number: 1},
		{Region: "WLA", Number: 2},
		{Region: "WLA", Number: 3},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("catalog = %v, want %v", got, want)
	}

	for _, bad := range []string{"", "WLA", ":1-2", "WLA:3-1", "WLA:0", "WLA:a-b"} {
		if _, err := ParseCatalog(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
