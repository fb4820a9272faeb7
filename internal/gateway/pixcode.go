package gateway

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PixKey holds the static receiver data used to build local PIX payloads
// when the gateway is unreachable.
type PixKey struct {
	Key      string
	Receiver string
	City     string
}

// BuildPixPayload builds an EMV "copia e cola" PIX payload for the given
// amount, usable without the payment provider. The txid must be at most 25
// characters.
func (p PixKey) BuildPixPayload(amount decimal.Decimal, description, txid string) string {
	if len(txid) > 25 {
		txid = txid[:25]
	}

	payload := "000201" // payload format indicator, version 01
	payload += "010212" // point of initiation: dynamic

	merchant := "0014br.gov.bcb.pix"
	merchant += emvField("01", p.Key)
	if description != "" {
		merchant += emvField("02", description)
	}
	payload += emvField("26", merchant)

	payload += "52040000" // merchant category: unspecified
	payload += "5303986"  // currency: BRL

	payload += emvField("54", amount.StringFixed(2))
	payload += "5802BR"

	payload += emvField("59", truncate(p.Receiver, 25))
	payload += emvField("60", truncate(p.City, 15))

	if txid != "" {
		payload += emvField("62", emvField("05", txid))
	}

	payload += "6304"
	return payload + fmt.Sprintf("%04X", crc16(payload))
}

// emvField renders an EMV TLV field: id, two-digit length, value.
func emvField(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// crc16 computes CRC16-CCITT (polynomial 0x1021, initial 0xFFFF) over the
// payload, as required by the PIX EMV standard.
func crc16(payload string) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range []byte(payload) {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
