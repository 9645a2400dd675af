package logic

import "math"

// CtoF converts Celsius to Fahrenheit.
func CtoF(c float64) float64 {
	return c*9/5 + 32
}

// FtoC converts Fahrenheit to Celsius.
func FtoC(f float64) float64 {
	return (f - 32) * 5 / 9
}

// HeatIndex computes the NWS heat index using the Rothfusz regression with
// Steadman's simple formula below 79°F, then applies the dry-heat and humid
// adjustments. The computation is done in Fahrenheit; temperature and the
// result are in Celsius unless fahrenheit is set.
func HeatIndex(temperature, humidity float64, fahrenheit bool) float64 {
	t := temperature
	if !fahrenheit {
		t = CtoF(temperature)
	}
	rh := humidity

	hi := 0.5 * (t + 61.0 + (t-68.0)*1.2 + rh*0.094)

	if hi > 79 {
		hi = -42.379 +
			2.04901523*t +
			10.14333127*rh +
			-0.22475541*t*rh +
			-0.00683783*t*t +
			-0.05481717*rh*rh +
			0.00122874*t*t*rh +
			0.00085282*t*rh*rh +
			-0.00000199*t*t*rh*rh
	}

	switch {
	case rh < 13 && t >= 80 && t <= 112:
		hi -= (13 - rh) * 0.25 * math.Sqrt((17-math.Abs(t-95))*0.05882)
	case rh > 85 && t >= 80 && t <= 87:
		hi += (rh - 85) * 0.1 * (87 - t) * 0.2
	}

	if fahrenheit {
		return hi
	}
	return FtoC(hi)
}
