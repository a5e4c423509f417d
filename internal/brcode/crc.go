package brcode

import (
	"fmt"

	"github.com/sigurn/crc16"
)

// crcPlaceholder is the id+length of the CRC field, included in the checksummed bytes.
const crcPlaceholder = IDCRC + "04"

// CRC-16/CCITT-FALSE: poly 0x1021, init 0xFFFF, no reflection, no final xor.
var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// Checksum returns the 4 uppercase hex digits of the CRC over data.
func Checksum(data string) string {
	return fmt.Sprintf("%04X", crc16.Checksum([]byte(data), crcTable))
}

// VerifyChecksum recomputes the CRC over everything but the last 4 characters.
func VerifyChecksum(payload string) bool {
	if len(payload) < len(crcPlaceholder)+4 {
		return false
	}
	body, sum := payload[:len(payload)-4], payload[len(payload)-4:]
	if body[len(body)-len(crcPlaceholder):] != crcPlaceholder {
		return false
	}
	return Checksum(body) == sum
}
