// Package protocol frames counter trace records for a serial link.
//
// Frames use the Klipper block layout:
//
//	[len][seq|0x10][payload...][crc_hi][crc_lo][0x7E]
//
// len counts the whole frame. The CRC covers len, seq and payload.
package protocol

const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin

	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1

	MessageValueSync = 0x7E
	MessageDest      = 0x10
	MessageSeqMask   = 0x0F
)
