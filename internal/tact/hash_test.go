package tact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameHashNormalizationIsIdempotent(t *testing.T) {
	a := NameHash("world/maps/foo.wdt")
	b := NameHash("WORLD\\MAPS\\FOO.WDT")
	require.Equal(t, a, b)
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, `WORLD\MAPS\FOO.WDT`, NormalizeName("world/maps/foo.wdt"))
}
