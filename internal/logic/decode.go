package logic

// DecodeFrame reconstructs the 40-bit payload from a pulse train.
//
// The first SkipTransitions pulses are the sensor's response preamble. After
// that the sensor alternates a fixed-length low separator with a high pulse
// whose length carries the bit, so only even indices are data. A data pulse
// longer than threshold ticks is a 1.
//
// A trailing timeout is normal: the line idles high after the last bit. It
// is only an error if it arrives before all 40 bits were seen.
func DecodeFrame(train PulseTrain, threshold int) (Frame, error) {
	var f Frame
	bits := 0
	for _, p := range train.Pulses {
		if bits == FrameBits {
			break
		}
		if p.Index < SkipTransitions || p.Index%2 != 0 {
			continue
		}
		if train.TimedOut && p.Count >= TimeoutTicks {
			// the saturated pulse carries no bit
			break
		}
		f[bits/8] <<= 1
		if p.Count > threshold {
			f[bits/8] |= 1
		}
		bits++
	}

	if bits < FrameBits {
		if train.TimedOut {
			return Frame{}, ErrTimeout
		}
		return Frame{}, ErrShortFrame
	}
	if !f.Valid() {
		return Frame{}, ErrChecksum
	}
	return f, nil
}

// EncodeTrain renders a frame as the pulse train a sensor would produce,
// using zero and one as the high-pulse tick counts. The train ends with the
// idle-high pulse saturating the tick counter, as on real hardware.
func EncodeTrain(f Frame, zero, one int) PulseTrain {
	counts := []int{2, 80, 80, 50}
	levels := []Level{High, Low, High, Low}
	for i := 0; i < FrameBits; i++ {
		bit := f[i/8]&(0x80>>(i%8)) != 0
		c := zero
		if bit {
			c = one
		}
		counts = append(counts, c, 50)
		levels = append(levels, High, Low)
	}
	counts = append(counts, TimeoutTicks)
	levels = append(levels, High)

	train := PulseTrain{Pulses: make([]Pulse, len(counts)), TimedOut: true}
	for i := range counts {
		train.Pulses[i] = Pulse{Index: i, Level: levels[i], Count: counts[i]}
	}
	return train
}
