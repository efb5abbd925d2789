package search

import (
	"fmt"
	"strings"
)

// Strategy selects the search engine used after the precheck
type Strategy string

const (
	// StrategyBinary bisects the window without assumptions
	StrategyBinary Strategy = "binary"
	// StrategyInterpolation biases probes toward a caller supplied estimate
	StrategyInterpolation Strategy = "interpolation"
)

// ParseStrategy converts a user supplied name into a Strategy
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(name))) {
	case StrategyBinary, "":
		return StrategyBinary, nil
	case StrategyInterpolation, "interp":
		return StrategyInterpolation, nil
	default:
		return "", fmt.Errorf("unknown search strategy %q, must be one of: binary, interpolation", name)
	}
}

func (s Strategy) String() string {
	return string(s)
}
