package domain

import "fmt"

// Cents is a monetary amount in US cents. All engine arithmetic is integral.
type Cents int64

// BasisPoints expresses a rate in hundredths of a percent (500 = 5%).
type BasisPoints int64

func Dollars(d int64) Cents { return Cents(d * 100) }

// ApplyRate returns c*bp/10000 rounded half away from zero.
func (c Cents) ApplyRate(bp BasisPoints) Cents {
	n := int64(c) * int64(bp)
	if n >= 0 {
		return Cents((n + 5000) / 10000)
	}
	return Cents((n - 5000) / 10000)
}

func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%02d", sign, v/100, v%100)
}

// MileagePay converts a distance into pay at ratePerMile, rounded to the nearest cent.
func MileagePay(meters int, ratePerMile Cents) Cents {
	if meters <= 0 || ratePerMile <= 0 {
		return 0
	}
	// meters * rate / 1609.344, in integer math: scale by 1000.
	num := int64(meters) * int64(ratePerMile) * 1000
	den := int64(MetersPerMile * 1000)
	return Cents((num + den/2) / den)
}
