package min

import "hash/crc32"

// crcTable is the standard IEEE polynomial (0xEDB88320 reflected), the
// exact polynomial the MIN wire format specifies, init 0xFFFFFFFF, final
// XOR 0xFFFFFFFF — precisely hash/crc32's IEEE table, so the core reuses it
// rather than hand-rolling a table.
var crcTable = crc32.IEEETable

// crcAccum accumulates a running CRC32 update over successive byte runs
// (ID through the last unstuffed payload byte), returning the final,
// XOR-finished value only when the caller calls Sum.
type crcAccum struct {
	state uint32
}

func newCRCAccum() crcAccum { return crcAccum{state: 0xFFFFFFFF} }

func (c *crcAccum) Write(b byte) {
	c.state = crc32.Update(c.state, crcTable, []byte{b})
}

func (c *crcAccum) WriteAll(bs []byte) {
	c.state = crc32.Update(c.state, crcTable, bs)
}

// Sum returns the finished CRC (current state XOR 0xFFFFFFFF).
func (c *crcAccum) Sum() uint32 { return c.state ^ 0xFFFFFFFF }
