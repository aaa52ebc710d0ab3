package canopen

import "riglink-core/container/queue"

// SDO command bytes for the single-segment transfers this subset covers.
const (
	sdoCmdRead     byte = 0x40
	sdoCmdWriteU8  byte = 0x2F
	sdoCmdWriteU16 byte = 0x2B
	sdoCmdWriteU32 byte = 0x23
)

// sdoRequest is a pending outbound SDO transfer, queued per device.
type sdoRequest struct {
	cmd      byte
	index    uint16
	subindex uint8
	data     uint32
}

// encode lays out the wire bytes: cmd | ix<<8 | sub<<24 | data<<32,
// transmitted as 8 bytes: [cmd, ixLo, ixHi, sub, d0, d1, d2, d3].
func (r sdoRequest) encode() [8]byte {
	var b [8]byte
	b[0] = r.cmd
	b[1] = byte(r.index)
	b[2] = byte(r.index >> 8)
	b[3] = r.subindex
	b[4] = byte(r.data)
	b[5] = byte(r.data >> 8)
	b[6] = byte(r.data >> 16)
	b[7] = byte(r.data >> 24)
	return b
}

func decodeSDOResponse(data [8]byte) (cmd byte, index uint16, subindex uint8, value uint32) {
	cmd = data[0]
	index = uint16(data[1]) | uint16(data[2])<<8
	subindex = data[3]
	value = uint32(data[4]) | uint32(data[5])<<8 | uint32(data[6])<<16 | uint32(data[7])<<24
	return
}

// SDOResponse is delivered to a device's OnSDOResponse once a server's
// reply to one of its requests arrives.
type SDOResponse struct {
	Index    uint16
	Subindex uint8
	Value    uint32
	Abort    bool
}

// minSDOGap is the minimum spacing, in scheduler ticks, between one SDO
// request completing and the device's next being sent.
const minSDOGap = 2

// sdoClient enforces one in-flight SDO transfer per device with a minimum
// gap between transfers, queuing the rest in FIFO order.
type sdoClient struct {
	nodeID     uint8
	pending    queue.Queue[sdoRequest]
	inFlight   bool
	lastDoneAt int64
}

func newSDOClient(nodeID uint8, depth int) *sdoClient {
	return &sdoClient{nodeID: nodeID, pending: queue.New[sdoRequest](depth)}
}

// Push enqueues a request, starting it immediately if nothing is in
// flight and the minimum gap has elapsed.
func (c *sdoClient) Push(now int64, req sdoRequest, send func(nodeID uint8, body [8]byte)) {
	if !c.pending.Full() {
		c.pending.Push(req)
	}
	c.tryStart(now, send)
}

func (c *sdoClient) tryStart(now int64, send func(nodeID uint8, body [8]byte)) {
	if c.inFlight || c.pending.Empty() {
		return
	}
	if c.lastDoneAt != 0 && now-c.lastDoneAt < minSDOGap {
		return
	}
	req := c.pending.Pop()
	c.inFlight = true
	send(c.nodeID, req.encode())
}

// Complete marks the in-flight transfer done at now and tries to start the
// next queued request.
func (c *sdoClient) Complete(now int64, send func(nodeID uint8, body [8]byte)) {
	c.inFlight = false
	c.lastDoneAt = now
	c.tryStart(now, send)
}
