package logic

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testZero = 2
	testOne  = 7
)

func TestDecodeFrameKnownBytes(t *testing.T) {
	want := Frame{0x02, 0x09, 0x01, 0x56, 0x62}
	train := EncodeTrain(want, testZero, testOne)
	require.Equal(t, MaxTimings, train.Len())

	got, err := DecodeFrame(train, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeFrameRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		want := NewFrame(byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256)))
		zero := rng.Intn(DefaultThreshold + 1)
		one := DefaultThreshold + 1 + rng.Intn(TimeoutTicks-DefaultThreshold-2)

		got, err := DecodeFrame(EncodeTrain(want, zero, one), DefaultThreshold)
		require.NoError(t, err, "frame %v", want)
		require.Equal(t, want, got)
	}
}

func TestDecodeFrameThresholdIsExclusive(t *testing.T) {
	// A pulse exactly at the threshold is a 0, so every bit collapses and
	// the all-zero frame is what comes out (and it checksums).
	train := EncodeTrain(NewFrame(0xff, 0, 0, 0), 0, DefaultThreshold)
	f, err := DecodeFrame(train, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, Frame{}, f)
}

func TestDecodeFrameChecksumMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		f := NewFrame(byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256)))
		f[4] += byte(1 + rng.Intn(255))

		got, err := DecodeFrame(EncodeTrain(f, testZero, testOne), DefaultThreshold)
		require.ErrorIs(t, err, ErrChecksum)
		require.Equal(t, Frame{}, got)
	}
}

func TestDecodeFrameTruncatedByTimeout(t *testing.T) {
	full := EncodeTrain(NewFrame(0x02, 0x09, 0x01, 0x56), testZero, testOne)
	for n := 0; n < SkipTransitions+2*FrameBits-1; n++ {
		train := PulseTrain{Pulses: append([]Pulse(nil), full.Pulses[:n]...), TimedOut: true}
		train.Pulses = append(train.Pulses, Pulse{Index: n, Level: full.Pulses[n].Level, Count: TimeoutTicks})

		_, err := DecodeFrame(train, DefaultThreshold)
		require.ErrorIs(t, err, ErrTimeout, "truncated at %d", n)
	}
}

func TestDecodeFrameShortWithoutTimeout(t *testing.T) {
	full := EncodeTrain(NewFrame(1, 2, 3, 4), testZero, testOne)
	for _, n := range []int{0, 1, SkipTransitions, 40, SkipTransitions + 2*FrameBits - 2} {
		train := PulseTrain{Pulses: full.Pulses[:n]}
		_, err := DecodeFrame(train, DefaultThreshold)
		require.ErrorIs(t, err, ErrShortFrame, "length %d", n)
	}
}

func TestDecodeFrameNoTrailingTimeout(t *testing.T) {
	// A train cut right after the last data bit still decodes.
	want := NewFrame(0x41, 0x00, 0x17, 0x02)
	full := EncodeTrain(want, testZero, testOne)
	train := PulseTrain{Pulses: full.Pulses[:SkipTransitions+2*FrameBits-1]}

	got, err := DecodeFrame(train, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeFrameWrongPhaseFails(t *testing.T) {
	// Shifting the train by one transition decodes separators as data.
	full := EncodeTrain(NewFrame(0x02, 0x09, 0x01, 0x56), testZero, testOne)
	shifted := PulseTrain{TimedOut: true}
	for i, p := range full.Pulses[1:] {
		p.Index = i
		shifted.Pulses = append(shifted.Pulses, p)
	}

	// Every separator is longer than the threshold: ff ff ff ff ff.
	_, err := DecodeFrame(shifted, DefaultThreshold)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestEncodeTrainShape(t *testing.T) {
	train := EncodeTrain(NewFrame(0x80, 0, 0, 0), testZero, testOne)
	require.True(t, train.TimedOut)

	for i, p := range train.Pulses {
		assert.Equal(t, i, p.Index)
	}
	assert.Equal(t, High, train.Pulses[SkipTransitions].Level)
	assert.Equal(t, testOne, train.Pulses[SkipTransitions].Count)
	assert.Equal(t, Low, train.Pulses[SkipTransitions+1].Level)
	assert.Equal(t, testZero, train.Pulses[SkipTransitions+2].Count)
	assert.Equal(t, TimeoutTicks, train.Pulses[train.Len()-1].Count)
}
