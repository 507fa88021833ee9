package domain

import (
	"fmt"
	"strconv"
)

// Measurement is one aggregated metric value: either a verbatim passthrough
// string (single rerun, or a metric flagged unaggregatable) or a mean with an
// explicit uncertainty.
type Measurement struct {
	Numeric bool
	Raw     string
	Mean    float64
	Stdev   float64
}

// Passthrough wraps a raw value that was not statistically aggregated.
func Passthrough(raw string) Measurement {
	return Measurement{Raw: raw}
}

// Aggregated wraps a trimmed mean and its sample standard deviation.
func Aggregated(mean, stdev float64) Measurement {
	return Measurement{Numeric: true, Mean: mean, Stdev: stdev}
}

// Float returns the numeric value of the measurement, parsing passthrough
// strings on demand.
func (m Measurement) Float() (float64, error) {
	if m.Numeric {
		return m.Mean, nil
	}
	value, err := strconv.ParseFloat(m.Raw, 64)
	if err != nil {
		return 0, fmt.Errorf("measurement %q is not numeric", m.Raw)
	}
	return value, nil
}

func (m Measurement) String() string {
	if !m.Numeric {
		return m.Raw
	}
	if m.Stdev == 0 {
		return strconv.FormatFloat(m.Mean, 'g', -1, 64)
	}
	return fmt.Sprintf("%s ± %s",
		strconv.FormatFloat(m.Mean, 'g', -1, 64),
		strconv.FormatFloat(m.Stdev, 'g', -1, 64))
}

// Result pairs one rerun group's representative identity with its aggregated
// metrics. An ordered slice of Results is the handoff contract to the
// plotting and export layers.
type Result struct {
	Config        string
	Instantiation Instantiation
	Metrics       map[string]Measurement
}
