package canopen

// PDO communication/mapping object base indices (receive is RPDO, transmit
// is TPDO, N is 0-based here per spec.md's 0x1400+N-1 convention expressed
// as 0x1400+N with callers passing N-1).
const (
	rpdoCommBase uint16 = 0x1400
	rpdoMapBase  uint16 = 0x1600
	tpdoCommBase uint16 = 0x1800
	tpdoMapBase  uint16 = 0x1A00
)

const (
	pdoCobIDDisableBit uint32 = 1 << 31
	pdoNoInhibitBit    uint32 = 1 << 30
)

// MapEntry is one byte-aligned field of a PDO mapping (index, subindex,
// and length in bits — this subset only supports 8/16/32-bit fields).
type MapEntry struct {
	Index    uint16
	Subindex uint8
	Bits     uint8
}

// PDOConfig describes one RPDO or TPDO slot's communication COB and
// mapping table.
type PDOConfig struct {
	Number        uint8
	CobID         uint32
	NoInhibit     bool
	InhibitTimeMs uint16
	Mapping       []MapEntry
}

type sdoSend func(nodeID uint8, body [8]byte)

// pushWrite enqueues a single SDO write through client.
func pushWrite(client *sdoClient, now int64, send sdoSend, cmd byte, index uint16, subindex uint8, data uint32) {
	client.Push(now, sdoRequest{cmd: cmd, index: index, subindex: subindex, data: data}, send)
}

// ConfigureRPDO runs the disable -> reconfigure -> enable sequence against
// 0x1400+N (comm) and 0x1600+N (mapping): set bit 31 to disable, write the
// mapping count and entries, then clear bit 31 (and set bit 30 if the
// caller wants no inhibit time) to re-enable.
func ConfigureRPDO(client *sdoClient, now int64, send sdoSend, cfg PDOConfig) {
	commIndex := rpdoCommBase + uint16(cfg.Number)
	mapIndex := rpdoMapBase + uint16(cfg.Number)
	configurePDO(client, now, send, commIndex, mapIndex, cfg)
}

// ConfigureTPDO is ConfigureRPDO's transmit-side counterpart, operating on
// 0x1800+N (comm) and 0x1A00+N (mapping).
func ConfigureTPDO(client *sdoClient, now int64, send sdoSend, cfg PDOConfig) {
	commIndex := tpdoCommBase + uint16(cfg.Number)
	mapIndex := tpdoMapBase + uint16(cfg.Number)
	configurePDO(client, now, send, commIndex, mapIndex, cfg)
}

func configurePDO(client *sdoClient, now int64, send sdoSend, commIndex, mapIndex uint16, cfg PDOConfig) {
	// 1. Disable: set bit 31 of the COB-ID register.
	pushWrite(client, now, send, sdoCmdWriteU32, commIndex, 1, cfg.CobID|pdoCobIDDisableBit)

	// 2. Reconfigure mapping: clear the entry count, write each entry,
	// then write the final count.
	pushWrite(client, now, send, sdoCmdWriteU8, mapIndex, 0, 0)
	for i, m := range cfg.Mapping {
		entry := uint32(m.Index)<<16 | uint32(m.Subindex)<<8 | uint32(m.Bits)
		pushWrite(client, now, send, sdoCmdWriteU32, mapIndex, uint8(i+1), entry)
	}
	pushWrite(client, now, send, sdoCmdWriteU8, mapIndex, 0, uint32(len(cfg.Mapping)))

	// 3. Re-enable: clear bit 31; bit 30 reflects "no inhibit time".
	cob := cfg.CobID
	if cfg.NoInhibit {
		cob |= pdoNoInhibitBit
	}
	pushWrite(client, now, send, sdoCmdWriteU32, commIndex, 1, cob)
}

// DecodePDO splits a received PDO payload into field values per mapping,
// byte-aligned and little-endian, truncating at data's length.
func DecodePDO(data []byte, mapping []MapEntry) []uint32 {
	out := make([]uint32, 0, len(mapping))
	off := 0
	for _, m := range mapping {
		n := int(m.Bits) / 8
		if off+n > len(data) {
			break
		}
		var v uint32
		for i := n - 1; i >= 0; i-- {
			v = v<<8 | uint32(data[off+i])
		}
		out = append(out, v)
		off += n
	}
	return out
}
