// Package portstats parses "show interfaces <name>" output into per-port counters and checks
// them against health thresholds.
//
// One clause is recognised per line, leading whitespace ignored:
//
//	<name> is <status>, line protocol is <proto>
//	reliability <n>/255, txload <n>/255, rxload <n>/255
//	<duplex>-duplex, <speed>
//	<n> input errors, <n> CRC, ...
//	<n> output errors, <n> collisions, ...
//
// Other lines are ignored.
package portstats

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/offalexp/ceSSHar/pkg/prompt"
)

var (
	headerRe      = regexp.MustCompile(`^(\S+) is ([^,]+), line protocol is (\S+)`)
	reliabilityRe = regexp.MustCompile(`reliability (\d+)/(\d+), txload (\d+)/(\d+), rxload (\d+)/(\d+)`)
	duplexRe      = regexp.MustCompile(`^(\S+)-duplex, ([^,]+)`)
	inputRe       = regexp.MustCompile(`^(\d+) input errors, (\d+) CRC`)
	outputRe      = regexp.MustCompile(`^(\d+) output errors, (\d+) collisions`)
)

type Stats struct {
	Name         string
	Status       string
	Protocol     string
	Reliability  int
	TxLoad       int
	RxLoad       int
	LoadScale    int
	Duplex       string
	Speed        string
	InputErrors  int64
	CRC          int64
	OutputErrors int64
	Collisions   int64
	Parsed       bool
}

// TxPercent is the transmit load as a percentage of the device's load scale.
func (s Stats) TxPercent() float64 { return percent(s.TxLoad, s.LoadScale) }

func (s Stats) RxPercent() float64 { return percent(s.RxLoad, s.LoadScale) }

func percent(n, scale int) float64 {
	if scale == 0 {
		return 0
	}
	return float64(n) * 100 / float64(scale)
}

func (s Stats) Up() bool {
	return s.Status == "up" && strings.HasPrefix(s.Protocol, "up")
}

// Parse reads the output of one "show interfaces" command. Stats.Parsed is false when the
// header line was not found.
func Parse(output string) Stats {
	var s Stats
	for _, raw := range prompt.SplitLines(output) {
		line := strings.TrimSpace(raw)
		if !s.Parsed {
			if m := headerRe.FindStringSubmatch(line); m != nil {
				s.Name, s.Status, s.Protocol = m[1], strings.TrimSpace(m[2]), m[3]
				s.Parsed = true
				continue
			}
		}
		if m := reliabilityRe.FindStringSubmatch(line); m != nil {
			s.Reliability = atoi(m[1])
			s.TxLoad, s.LoadScale = atoi(m[3]), atoi(m[4])
			s.RxLoad = atoi(m[5])
			continue
		}
		if m := duplexRe.FindStringSubmatch(line); m != nil {
			s.Duplex, s.Speed = strings.ToLower(m[1]), strings.TrimSpace(m[2])
			continue
		}
		if m := inputRe.FindStringSubmatch(line); m != nil {
			s.InputErrors, s.CRC = atoi64(m[1]), atoi64(m[2])
			continue
		}
		if m := outputRe.FindStringSubmatch(line); m != nil {
			s.OutputErrors, s.Collisions = atoi64(m[1]), atoi64(m[2])
		}
	}
	return s
}

func atoi(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

func atoi64(v string) int64 {
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}

type Thresholds struct {
	MinReliability int   `mapstructure:"min_reliability"`
	MaxCRC         int64 `mapstructure:"max_crc"`
	MaxInputErrors int64 `mapstructure:"max_input_errors"`
	MaxCollisions  int64 `mapstructure:"max_collisions"`
	MaxLoad        int   `mapstructure:"max_load"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinReliability: 255,
		MaxLoad:        200,
	}
}

// Problems lists every threshold s violates. An unparsed report is itself a problem.
func (t Thresholds) Problems(s Stats) []string {
	if !s.Parsed {
		return []string{"unparsed output"}
	}
	var problems []string
	if s.Reliability < t.MinReliability {
		problems = append(problems, fmt.Sprintf("reliability %d/255", s.Reliability))
	}
	if s.CRC > t.MaxCRC {
		problems = append(problems, fmt.Sprintf("%d CRC", s.CRC))
	}
	if s.InputErrors > t.MaxInputErrors {
		problems = append(problems, fmt.Sprintf("%d input errors", s.InputErrors))
	}
	if s.Collisions > t.MaxCollisions {
		problems = append(problems, fmt.Sprintf("%d collisions", s.Collisions))
	}
	if s.TxLoad > t.MaxLoad {
		problems = append(problems, fmt.Sprintf("txload %d/255", s.TxLoad))
	}
	if s.RxLoad > t.MaxLoad {
		problems = append(problems, fmt.Sprintf("rxload %d/255", s.RxLoad))
	}
	return problems
}

func (t Thresholds) Healthy(s Stats) bool {
	return len(t.Problems(s)) == 0
}
