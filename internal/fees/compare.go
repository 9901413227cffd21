package fees

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"vaultFees/internal/model"
)

// Comparison is a field-by-field diff of two fee breakdowns.
type Comparison struct {
	Fields []model.FieldDiff
}

// Compare diffs the fee breakdowns of two engines. Optional fields missing on
// either side are skipped rather than failed.
func Compare(left, right model.Fees) Comparison {
	c := Comparison{}
	c.add("management_fee", left.ManagementFee, right.ManagementFee)
	c.add("performance_fee", left.PerformanceFee, right.PerformanceFee)
	c.add("strategist_fee", left.StrategistFee, right.StrategistFee)
	c.add("governance_fee", left.GovernanceFee(), right.GovernanceFee())
	c.add("total_fee", left.TotalFee(), right.TotalFee())
	c.add("gain", left.Gain, right.Gain)
	c.add("duration", durationBig(left.Duration), durationBig(right.Duration))
	return c
}

func (c *Comparison) add(name string, left, right *big.Int) {
	diff := model.FieldDiff{Name: name, Left: bigString(left), Right: bigString(right)}
	if left == nil || right == nil {
		diff.Skipped = true
	} else {
		diff.Match = left.Cmp(right) == 0
	}
	c.Fields = append(c.Fields, diff)
}

// Equal reports whether every compared field matches.
func (c Comparison) Equal() bool {
	for _, f := range c.Fields {
		if !f.Skipped && !f.Match {
			return false
		}
	}
	return true
}

// Partial reports whether any field was skipped.
func (c Comparison) Partial() bool {
	for _, f := range c.Fields {
		if f.Skipped {
			return true
		}
	}
	return false
}

// Field returns the diff of a named field.
func (c Comparison) Field(name string) (model.FieldDiff, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return model.FieldDiff{}, false
}

// Table renders the comparison with token amounts scaled by decimals.
func (c Comparison) Table(leftName, rightName string, decimals uint8) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "name\t%s\t%s\tmatch\t\n", leftName, rightName)
	for _, f := range c.Fields {
		mark := "✘"
		switch {
		case f.Skipped:
			mark = "-"
		case f.Match:
			mark = "✔"
		}
		left, right := f.Left, f.Right
		if f.Name != "duration" {
			left, right = scale(left, decimals), scale(right, decimals)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", f.Name, left, right, mark)
	}
	w.Flush()
	return buf.String()
}

func scale(raw string, decimals uint8) string {
	if raw == "" {
		return "-"
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return raw
	}
	return d.Shift(-int32(decimals)).StringFixed(int32(decimals))
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func durationBig(d *uint64) *big.Int {
	if d == nil {
		return nil
	}
	return new(big.Int).SetUint64(*d)
}

// FormatDuration renders an optional duration for logs.
func FormatDuration(d *uint64) string {
	if d == nil {
		return "unknown"
	}
	return strconv.FormatUint(*d, 10)
}
