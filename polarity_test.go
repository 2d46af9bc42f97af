package sevseg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	. "github.com/coreman2200/sevseg"
)

func TestPolarityLevels(t *testing.T) {
	cc := CommonCathode.Levels(false)
	assert.Equal(t, Levels{DigitOn: gpio.Low, DigitOff: gpio.High, SegmentOn: gpio.High, SegmentOff: gpio.Low}, cc)

	ca := CommonAnode.Levels(false)
	assert.Equal(t, Levels{DigitOn: gpio.High, DigitOff: gpio.Low, SegmentOn: gpio.Low, SegmentOff: gpio.High}, ca)

	for _, l := range []Levels{cc, ca} {
		assert.NotEqual(t, l.DigitOn, l.DigitOff)
		assert.NotEqual(t, l.SegmentOn, l.SegmentOff)
		assert.NotEqual(t, l.DigitOn, l.SegmentOn, "a lit segment needs opposite levels on its two ends")
	}

	// Switching polarity flips both families.
	assert.NotEqual(t, cc.DigitOn, ca.DigitOn)
	assert.NotEqual(t, cc.SegmentOn, ca.SegmentOn)
}

func TestPolarityInvertDigits(t *testing.T) {
	l := CommonCathode.Levels(true)
	assert.Equal(t, gpio.High, l.DigitOn)
	assert.Equal(t, gpio.Low, l.DigitOff)
	assert.Equal(t, gpio.High, l.SegmentOn, "segments keep their sense")
}

func TestParsePolarity(t *testing.T) {
	for in, want := range map[string]Polarity{
		"":               CommonCathode,
		"cathode":        CommonCathode,
		"Common_Cathode": CommonCathode,
		"anode":          CommonAnode,
		" common_anode ": CommonAnode,
		"ca":             CommonAnode,
	} {
		got, err := ParsePolarity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePolarity("bipolar")
	assert.Error(t, err)

	var p Polarity
	require.NoError(t, p.UnmarshalText([]byte("anode")))
	assert.Equal(t, CommonAnode, p)
	b, err := p.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "common_anode", string(b))
}
