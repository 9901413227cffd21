package model

import "math/big"

// Fees is a fee breakdown for a single report.
//
// Gain and Duration are optional: nil means the producing engine could not
// observe the value.
type Fees struct {
	ManagementFee  *big.Int `json:"management_fee"`
	PerformanceFee *big.Int `json:"performance_fee"`
	StrategistFee  *big.Int `json:"strategist_fee"`
	Gain           *big.Int `json:"gain,omitempty"`
	Duration       *uint64  `json:"duration,omitempty"`
}

// ZeroFees returns a record with every fee component set to zero and no gain or duration.
func ZeroFees() Fees {
	return Fees{
		ManagementFee:  new(big.Int),
		PerformanceFee: new(big.Int),
		StrategistFee:  new(big.Int),
	}
}

// GovernanceFee is the part of the fee paid to the vault rewards address.
func (f Fees) GovernanceFee() *big.Int {
	return new(big.Int).Add(orZero(f.ManagementFee), orZero(f.PerformanceFee))
}

// TotalFee is the sum of all three fee components.
func (f Fees) TotalFee() *big.Int {
	total := f.GovernanceFee()
	return total.Add(total, orZero(f.StrategistFee))
}

// Clamp limits the total fee to the gain. The management fee absorbs the shortfall.
func (f *Fees) Clamp() {
	if f.Gain == nil {
		return
	}
	if f.TotalFee().Cmp(f.Gain) <= 0 {
		return
	}
	mgmt := new(big.Int).Sub(f.Gain, orZero(f.PerformanceFee))
	f.ManagementFee = mgmt.Sub(mgmt, orZero(f.StrategistFee))
}

// Uint64Ptr is a helper for optional durations.
func Uint64Ptr(v uint64) *uint64 {
	return &v
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
