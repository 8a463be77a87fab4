package protocol

import "github.com/sigurn/crc16"

// Klipper's crc16_ccitt is the reflected CCITT polynomial with no final xor.
var crcTable = crc16.MakeTable(crc16.CRC16_MCRF4XX)

// CRC16 returns the frame checksum of data.
func CRC16(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
