// Package duration parses human friendly durations such as "36h", "7d", "2w"
// and "off", and exposes them as pflag values.
package duration

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Duration is a time.Duration that understands day, week, month and year suffixes.
type Duration time.Duration

// Off disables whatever the duration controls.
const Off = Duration(math.MaxInt64)

var ErrInvalid = errors.New("invalid duration")

type unit struct {
	suffix string
	size   time.Duration
}

// Ordered from largest to smallest so String picks the coarsest exact unit.
var units = []unit{
	{suffix: "y", size: 365 * 24 * time.Hour},
	{suffix: "M", size: 30 * 24 * time.Hour},
	{suffix: "w", size: 7 * 24 * time.Hour},
	{suffix: "d", size: 24 * time.Hour},
}

func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0, ErrInvalid
	case "off":
		return time.Duration(Off), nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	for _, u := range units {
		num, ok := strings.CutSuffix(s, u.suffix)
		if !ok {
			continue
		}
		return scale(num, u.size)
	}

	// bare numbers are seconds
	return scale(s, time.Second)
}

// scale multiplies num by size, rejecting results a Duration cannot hold.
func scale(num string, size time.Duration) (time.Duration, error) {
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, ErrInvalid
	}
	v := n * float64(size)
	if math.IsNaN(v) || math.IsInf(v, 0) || v >= math.MaxInt64 || v < math.MinInt64 {
		return 0, ErrInvalid
	}
	return time.Duration(v), nil
}

func (d Duration) String() string {
	if d == Off {
		return "off"
	}
	td := time.Duration(d)
	if td == 0 {
		return "0s"
	}
	for _, u := range units {
		if td%u.size == 0 {
			return strconv.FormatInt(int64(td/u.size), 10) + u.suffix
		}
	}
	return td.String()
}

func (d *Duration) Set(s string) error {
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) Type() string {
	return "duration"
}

func (d *Duration) UnmarshalText(text []byte) error {
	return d.Set(string(text))
}

// Var defines a duration flag bound to p.
func Var(f *pflag.FlagSet, p *time.Duration, name string, value time.Duration, usage string) {
	*p = value
	f.Var((*Duration)(p), name, usage)
}
