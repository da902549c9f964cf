package pixcode

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeOptions() Options {
	return Options{
		Key:          "merchant@example.com",
		MerchantName: "Loja Exemplo",
		MerchantCity: "Sao Paulo",
		Amount:       decimal.RequireFromString("150.02"),
		TxID:         "abc123def456ghi789jkl0123",
		Description:  "Pagamento User ID: user-1",
	}
}

func TestEncodePayloadStructure(t *testing.T) {
	code := Encode(encodeOptions())

	assert.True(t, strings.HasPrefix(code, "000201"))
	assert.Contains(t, code, "br.gov.bcb.pix")
	assert.Contains(t, code, "merchant@example.com")
	assert.Contains(t, code, "5204"+categoryNone)
	assert.Contains(t, code, "5303"+currencyBRL)
	assert.Contains(t, code, "5802"+countryBR)
}

func TestEncodeAmountField(t *testing.T) {
	code := Encode(encodeOptions())

	// Tag 54, length 06, two fixed decimals.
	assert.Contains(t, code, "5406150.02")
}

func TestEncodeAmountAlwaysTwoDecimals(t *testing.T) {
	opts := encodeOptions()
	opts.Amount = decimal.RequireFromString("150")

	assert.Contains(t, Encode(opts), "5406150.00")
}

func TestEncodeTxIDField(t *testing.T) {
	code := Encode(encodeOptions())

	assert.Contains(t, code, "0525abc123def456ghi789jkl0123")
}

func TestEncodeNormalizesMerchantFields(t *testing.T) {
	opts := encodeOptions()
	opts.MerchantName = "  a merchant with a very long name indeed  "
	opts.MerchantCity = "  rio de janeiro extended  "

	code := Encode(opts)

	assert.Contains(t, code, "5925A MERCHANT WITH A VERY LO")
	assert.Contains(t, code, "6015RIO DE JANEIRO")
}

func TestEncodeOmitsEmptyDescription(t *testing.T) {
	opts := encodeOptions()
	opts.Description = ""

	code := Encode(opts)

	assert.NotContains(t, code, "Pagamento")
	assert.Contains(t, code, "br.gov.bcb.pix")
}

func TestEncodeBoundsLongDescription(t *testing.T) {
	opts := encodeOptions()
	opts.Description = "Pagamento User ID: " + strings.Repeat("x", 150)

	code := Encode(opts)

	// The account block keeps a two-digit length; the description yields
	// its tail rather than overflowing it.
	gui := "0014br.gov.bcb.pix"
	key := "0120merchant@example.com"
	room := 99 - len(gui) - len(key) - 4
	want := fmt.Sprintf("26%02d%s%s02%02d%s",
		len(gui)+len(key)+4+room, gui, key, room, ("Pagamento User ID: " + strings.Repeat("x", 150))[:room])
	assert.Contains(t, code, want)
}

func TestEncodeDropsDescriptionWithoutRoom(t *testing.T) {
	opts := encodeOptions()
	opts.Key = strings.Repeat("k", 77)
	opts.Description = "does not fit"

	code := Encode(opts)

	assert.Contains(t, code, "2699")
	assert.NotContains(t, code, "does not fit")
}

func TestEncodeTruncatesLongTxID(t *testing.T) {
	opts := encodeOptions()
	opts.TxID = strings.Repeat("t", 60)

	assert.Contains(t, Encode(opts), "62290525"+strings.Repeat("t", 25))
}

func TestFieldClampsOverlongValue(t *testing.T) {
	encoded := field("26", strings.Repeat("a", 120))

	assert.Equal(t, "2699"+strings.Repeat("a", 99), encoded)
}

func TestEncodeCRCVerifies(t *testing.T) {
	code := Encode(encodeOptions())

	require.Greater(t, len(code), 8)

	body := code[:len(code)-4]
	checksum := code[len(code)-4:]

	assert.Equal(t, fmt.Sprintf("%04X", crc16(body)), checksum)
	assert.True(t, strings.Contains(body, "6304"))
}

func TestCRC16KnownVector(t *testing.T) {
	// CCITT-FALSE over "123456789" is the standard check value.
	assert.Equal(t, uint16(0x29B1), crc16("123456789"))
}
