package model

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SeatID identifies a bookable seat.  Seats are uniquely identified by
// their region (e.g. "WLA") and their number inside that region.  The
// pair is immutable once the catalog is loaded.
type SeatID struct {
	Region string `json:"region"` // seat.region
	Number int    `json:"number"` // seat.seat_number
}

// String renders the seat in the REGION-NUMBER form used on tickets and
// in search, e.g. "WLA-5".
func (id SeatID) String() string {
	return id.Region + "-" + strconv.Itoa(id.Number)
}

// Less reports whether id sorts before other.  The ordering (region, then
// number) is the canonical lock order for seat sets.
func (id SeatID) Less(other SeatID) bool {
	if id.Region != other.Region {
		return id.Region < other.Region
	}
	return id.Number < other.Number
}

// Valid reports whether the identifier has a region and a positive number.
func (id SeatID) Valid() bool {
	return strings.TrimSpace(id.Region) != "" && id.Number > 0
}

// ParseSeatID parses the REGION-NUMBER form produced by String.
func ParseSeatID(s string) (SeatID, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, "-")
	if i <= 0 || i == len(s)-1 {
		return SeatID{}, fmt.Errorf("invalid seat %q", s)
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil || n <= 0 {
		return SeatID{}, fmt.Errorf("invalid seat number in %q", s)
	}
	return SeatID{Region: strings.ToUpper(s[:i]), Number: n}, nil
}

// SortSeats sorts ids in canonical order in place and returns it.
func SortSeats(ids []SeatID) []SeatID {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// NormalizeSeats upper-cases regions, drops duplicates and returns a new
// slice in canonical order.
func NormalizeSeats(ids []SeatID) []SeatID {
	out := make([]SeatID, 0, len(ids))
	seen := make(map[SeatID]struct{}, len(ids))
	for _, id := range ids {
		id.Region = strings.ToUpper(strings.TrimSpace(id.Region))
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return SortSeats(out)
}

// SeatLabels renders ids with String, keeping their order.
func SeatLabels(ids []SeatID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// Seat describes a seat in the catalog and its current occupancy.
//
// Fields:
//  ID            – seat identity (region + number).
//  TransactionID – owning transaction, 0 when the seat is free.
type Seat struct {
	ID            SeatID // seat.region, seat.seat_number
	TransactionID int64  // seat.transaction_id (nullable)
}

// Free reports whether no transaction owns the seat.
func (s Seat) Free() bool { return s.TransactionID == 0 }

// SeatState is a claimed seat together with the status of the
// transaction holding it.  It is what the public seat map exposes.
type SeatState struct {
	Region string `json:"region"`
	Number int    `json:"number"`
	Status Status `json:"status"`
}

// ParseCatalog parses a seat catalog definition of the form
// "WLA:1-80,WLB:1-40,VIP:7".  Each entry names a region followed by a
// single seat number or an inclusive range.  Entries for the same region
// may repeat; the result is normalized.
func ParseCatalog(def string) ([]SeatID, error) {
	var out []SeatID
	for _, entry := range strings.Split(def, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		region, rng, ok := strings.Cut(entry, ":")
		region = strings.ToUpper(strings.TrimSpace(region))
		if !ok || region == "" {
			return nil, fmt.Errorf("catalog entry %q: expected REGION:FROM-TO", entry)
		}
		from, to, err := parseRange(strings.TrimSpace(rng))
		if err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", entry, err)
		}
		for n := from; n <= to; n++ {
			out = append(out, SeatID{Region: region, Number: n})
		}
	}
	if len(out) == 0 {
		return nil, errors.New("catalog is empty")
	}
	return NormalizeSeats(out), nil
}

func parseRange(s string) (int, int, error) {
	lo, hi, isRange := strings.Cut(s, "-")
	from, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil || from <= 0 {
		return 0, 0, fmt.Errorf("invalid seat number %q", lo)
	}
	if !isRange {
		return from, from, nil
	}
	to, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil || to < from {
		return 0, 0, fmt.Errorf("invalid range end %q", hi)
	}
	return from, to, nil
}
