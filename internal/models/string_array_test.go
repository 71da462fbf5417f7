package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArrayValue(t *testing.T) {
	t.Run("nil stores an empty array", func(t *testing.T) {
		var a StringArray
		v, err := a.Value()
		require.NoError(t, err)
		assert.Equal(t, "[]", v)
	})

	t.Run("ampersands stay literal for quoted LIKE matching", func(t *testing.T) {
		v, err := StringArray{"Food & Drink", "Art"}.Value()
		require.NoError(t, err)
		assert.Equal(t, `["Food & Drink","Art"]`, v)
	})
}

func TestStringArrayScan(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		v, err := StringArray{"Food & Drink", "Live Music"}.Value()
		require.NoError(t, err)

		var out StringArray
		require.NoError(t, out.Scan(v))
		assert.Equal(t, StringArray{"Food & Drink", "Live Music"}, out)
	})

	t.Run("null and empty become empty arrays", func(t *testing.T) {
		var out StringArray
		require.NoError(t, out.Scan(nil))
		assert.Equal(t, StringArray{}, out)

		require.NoError(t, out.Scan(""))
		assert.Equal(t, StringArray{}, out)

		require.NoError(t, out.Scan([]byte("null")))
		assert.Equal(t, StringArray{}, out)
	})

	t.Run("non-JSON input is an error", func(t *testing.T) {
		var out StringArray
		assert.Error(t, out.Scan("not json"))
		assert.Error(t, out.Scan(42))
	})
}
