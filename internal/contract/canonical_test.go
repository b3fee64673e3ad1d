package contract

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleContract() *Contract {
	return &Contract{
		Instrument: Identity{
			Path: "probe_alpha.py",
			Hash: "sha256:0000000000000000000000000000000000000000000000000000000000000000",
		},
		CLISurface: []Subcommand{
			{
				Name: "run",
				Help: "execute the probe",
				Flags: []Flag{
					{Name: "--threshold", Type: "float", Default: FloatValue(0.5), Help: "zone threshold"},
					{Name: "--mode", Type: "str", Required: true, Default: None()},
				},
			},
			{
				Name:  "",
				Flags: []Flag{{Name: "--verbose", Type: "bool", Default: BoolValue(false)}},
			},
		},
		Invariants: []Invariant{
			{Name: "ZONE_THRESHOLDS", Kind: InvariantSeries, Values: []Value{FloatValue(1), FloatValue(2.5)}},
			{Name: "AGG_TAU_DEFAULT", Kind: InvariantScalar, Value: FloatValue(0.5)},
			{Name: "__version__", Kind: InvariantMetadata, Value: StringValue("1.4.0")},
		},
		ExtractedAt:      "2026-03-01T12:00:00Z",
		ExtractorVersion: "0.3.0",
	}
}

func TestEncode_Deterministic(t *testing.T) {
	c := sampleContract()
	first, err := Encode(c)
	require.NoError(t, err)
	second, err := Encode(c)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second), "two encodings of the same contract differ")
	assert.True(t, bytes.HasSuffix(first, []byte("\n")), "encoding not newline-terminated")
}

func TestEncode_OrderIndependent(t *testing.T) {
	a := sampleContract()

	// Same contract with every slice reversed.
	b := sampleContract()
	b.CLISurface[0], b.CLISurface[1] = b.CLISurface[1], b.CLISurface[0]
	b.Invariants[0], b.Invariants[2] = b.Invariants[2], b.Invariants[0]
	flags := b.CLISurface[1].Flags
	flags[0], flags[1] = flags[1], flags[0]

	ea, err := Encode(a)
	require.NoError(t, err)
	eb, err := Encode(b)
	require.NoError(t, err)
	assert.Equal(t, string(ea), string(eb))
}

func TestEncode_RoundTrip(t *testing.T) {
	c := sampleContract()
	data, err := Encode(c)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	re, err := Encode(decoded)
	require.NoError(t, err)
	if diff := cmp.Diff(string(data), string(re)); diff != "" {
		t.Errorf("re-encode mismatch (-first +second):\n%s", diff)
	}
}

func TestEncode_FloatFormatting(t *testing.T) {
	c := sampleContract()
	data, err := Encode(c)
	require.NoError(t, err)
	// 'g' formatting: 0.5 stays 0.5, 1.0 collapses to 1, no exponent noise.
	assert.Contains(t, string(data), `"value": 0.5`)
	assert.NotContains(t, string(data), "0.50000")
}

func TestValue_NumericCrossKindEqual(t *testing.T) {
	// A float 1.0 encodes as the literal 1 and decodes as an int; the two
	// must still compare equal.
	assert.True(t, FloatValue(1).Equal(IntValue(1)))
	assert.True(t, IntValue(1).Equal(FloatValue(1)))
	assert.False(t, FloatValue(1.5).Equal(IntValue(1)))
	assert.False(t, StringValue("1").Equal(IntValue(1)))
}

func TestValue_UnmarshalScalars(t *testing.T) {
	cases := []struct {
		in   string
		want Value
	}{
		{"null", None()},
		{"true", BoolValue(true)},
		{"3", IntValue(3)},
		{"-7", IntValue(-7)},
		{"2.5", FloatValue(2.5)},
		{"1e3", FloatValue(1000)},
		{`"hot"`, StringValue("hot")},
	}
	for _, tc := range cases {
		var v Value
		require.NoError(t, v.UnmarshalJSON([]byte(tc.in)), tc.in)
		assert.True(t, v.Equal(tc.want) && v.Kind == tc.want.Kind, "input %s: got kind=%d %s", tc.in, v.Kind, v.Canonical())
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, sampleContract().Validate())

	noPath := sampleContract()
	noPath.Instrument.Path = ""
	assert.ErrorContains(t, noPath.Validate(), "instrument.path")

	badHash := sampleContract()
	badHash.Instrument.Hash = "md5:abc"
	assert.ErrorContains(t, badHash.Validate(), "sha256")

	dupFlag := sampleContract()
	dupFlag.CLISurface[0].Flags = append(dupFlag.CLISurface[0].Flags, Flag{Name: "--mode", Default: None()})
	assert.ErrorContains(t, dupFlag.Validate(), "duplicate flag")

	dupInv := sampleContract()
	dupInv.Invariants = append(dupInv.Invariants, Invariant{Name: "__version__", Kind: InvariantMetadata})
	assert.ErrorContains(t, dupInv.Validate(), "duplicate invariant")

	badKind := sampleContract()
	badKind.Invariants[0].Kind = "vector"
	assert.ErrorContains(t, badKind.Validate(), "unknown kind")
}

func TestFlagShapeEqual(t *testing.T) {
	a := Flag{Name: "--mode", Type: "str", Required: true, Default: None(), Help: "run mode"}
	b := Flag{Name: "--run-mode", Type: "str", Required: true, Default: None()}
	assert.True(t, FlagShapeEqual(a, b), "name and help must not affect shape")

	b.Type = "int"
	assert.False(t, FlagShapeEqual(a, b))
}
