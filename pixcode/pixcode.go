// Package pixcode builds static PIX BR Codes: the EMV-style TLV payload a
// banking app reads out of the QR image.
package pixcode

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	idPayloadFormat        = "00"
	idMerchantAccountInfo  = "26"
	idMerchantCategoryCode = "52"
	idTransactionCurrency  = "53"
	idTransactionAmount    = "54"
	idCountryCode          = "58"
	idMerchantName         = "59"
	idMerchantCity         = "60"
	idAdditionalData       = "62"
	idCRC                  = "63"

	idPixGUI         = "00"
	idPixKey         = "01"
	idPixDescription = "02"
	idTxID           = "05"

	pixGUI       = "br.gov.bcb.pix"
	currencyBRL  = "986"
	countryBR    = "BR"
	categoryNone = "0000"

	maxNameLength = 25
	maxCityLength = 15
	maxKeyLength  = 77
	maxTxIDLength = 25

	// A TLV length is two digits, so no value may exceed 99 bytes.
	maxFieldLength = 99
)

type Options struct {
	Key          string
	MerchantName string
	MerchantCity string
	Amount       decimal.Decimal
	TxID         string
	Description  string
}

// Encode assembles the full BR Code string, CRC included.
func Encode(opts Options) string {
	account := field(idPixGUI, pixGUI) + field(idPixKey, truncate(opts.Key, maxKeyLength))
	if opts.Description != "" {
		// The description takes whatever room the account block has left,
		// so the block's own length always fits two digits.
		room := maxFieldLength - len(account) - 4
		if room > 0 {
			account += field(idPixDescription, truncate(opts.Description, room))
		}
	}

	payload := field(idPayloadFormat, "01") +
		field(idMerchantAccountInfo, account) +
		field(idMerchantCategoryCode, categoryNone) +
		field(idTransactionCurrency, currencyBRL) +
		field(idTransactionAmount, opts.Amount.StringFixed(2)) +
		field(idCountryCode, countryBR) +
		field(idMerchantName, normalize(opts.MerchantName, maxNameLength)) +
		field(idMerchantCity, normalize(opts.MerchantCity, maxCityLength)) +
		field(idAdditionalData, field(idTxID, truncate(opts.TxID, maxTxIDLength)))

	payload += idCRC + "04"
	return payload + fmt.Sprintf("%04X", crc16(payload))
}

func field(id string, value string) string {
	value = truncate(value, maxFieldLength)
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

func normalize(value string, max int) string {
	return truncate(strings.ToUpper(strings.TrimSpace(value)), max)
}

func truncate(value string, max int) string {
	if len(value) > max {
		return value[:max]
	}
	return value
}

// crc16 is CCITT-FALSE, the variant the BR Code spec mandates for tag 63.
func crc16(payload string) uint16 {
	crc := uint16(0xFFFF)

	for _, b := range []byte(payload) {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}

	return crc
}
