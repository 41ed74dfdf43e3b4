package binaryCoder

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountsEncodeInKeyOrder(t *testing.T) {
	a := CountsToByte(map[string]uint64{"2.0.1": 3, "1.1.0": 1, "0.2.0": 2})
	b := CountsToByte(map[string]uint64{"0.2.0": 2, "2.0.1": 3, "1.1.0": 1})
	assert.Equal(t, a, b)

	m, err := ByteToCounts(a)
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"2.0.1": 3, "1.1.0": 1, "0.2.0": 2}, m)
}

func TestTables(t *testing.T) {
	lists := [][]string{{"(0,1)", "(1,2,3)"}, {}, {"()"}}
	gotLists, err := ByteToStringLists(StringListsToByte(lists))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"(0,1)", "(1,2,3)"}, {}, {"()"}}, gotLists)

	huge, _ := new(big.Int).SetString("4154781481226426191177580544000000", 10)
	sizes := map[string]*big.Int{"2A": big.NewInt(10), "2D": huge}
	gotSizes, err := ByteToBigMap(BigMapToByte(sizes))
	require.NoError(t, err)
	assert.Equal(t, 0, gotSizes["2D"].Cmp(huge))
	assert.Equal(t, int64(10), gotSizes["2A"].Int64())

	entries := []Entry{{Src: "2A", Dst: "2B", Count: 2}, {Src: "2A", Dst: "2A", Count: 6}}
	gotEntries, err := ByteToEntries(EntriesToByte(entries))
	require.NoError(t, err)
	assert.Equal(t, entries, gotEntries)

	reps := []SuborbitRep{{Name: "2C", Entry: 0, Point: 15}, {Name: "2C", Entry: 4, Point: 23}}
	gotReps, err := ByteToSuborbits(SuborbitsToByte(reps))
	require.NoError(t, err)
	assert.Equal(t, reps, gotReps)
}

func TestManifest(t *testing.T) {
	m := Manifest{
		RunID:    "7d0e5c1a-0d7f-4b8e-9a44-0c9b0e4f1a2b",
		Finished: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Seed:     -42,
		Names:    []string{"2A", "2B"},
	}
	got, err := ByteToManifest(ManifestToByte(m))
	require.NoError(t, err)
	assert.True(t, m.Finished.Equal(got.Finished))
	got.Finished = m.Finished
	assert.Equal(t, m, got)
}

func TestCorrupt(t *testing.T) {
	data := StringsToByte([]string{"abc"})
	_, err := ByteToStrings(data[:len(data)-1])
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = ByteToBigList(BigListToByte(nil))
	assert.NoError(t, err)
	_, err = ByteToBigList(appendBytes(nil, 1, []byte("12x")))
	assert.ErrorIs(t, err, ErrCorrupt)
}
