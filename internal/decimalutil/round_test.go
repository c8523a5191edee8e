package decimalutil

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestRoundOffTruncatesTowardZero(t *testing.T) {
	assert.True(t, RoundOff(d("1.1234567895")).Equal(d("1.123456789")))
	assert.True(t, RoundOff(d("-1.1234567895")).Equal(d("-1.123456789")))
}

func TestSatSubClampsAtZero(t *testing.T) {
	assert.True(t, SatSub(d("1"), d("5")).Equal(decimal.Zero))
	assert.True(t, SatSub(d("5"), d("1")).Equal(d("4")))
}

func TestCheckedDivByZero(t *testing.T) {
	assert.True(t, CheckedDiv(d("10"), decimal.Zero).Equal(decimal.Zero))
	assert.True(t, CheckedDiv(d("10"), d("4")).Equal(d("2.5")))
}
