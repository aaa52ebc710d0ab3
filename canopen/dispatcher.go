package canopen

// Device is a node the dispatcher can route PDO and SDO traffic to.
type Device interface {
	NodeID() uint8
	OnPDO(cobID uint32, data []byte)
	OnSDOResponse(resp SDOResponse)
}

type deviceEntry struct {
	dev    Device
	client *sdoClient
	tpdo   map[uint32][]MapEntry // cobID -> mapping, for decoding on receipt
}

// Dispatcher routes CAN frames to registered devices by CANopen service.
// PDO routing is tried before SDO routing, matching spec order.
type Dispatcher struct {
	byNode map[uint8]*deviceEntry
	byCob  map[uint32]*deviceEntry

	Send func(id uint32, data [8]byte)

	Unhandled func(f Frame)
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		byNode: make(map[uint8]*deviceEntry),
		byCob:  make(map[uint32]*deviceEntry),
	}
}

// Register binds dev at its node id. Node 0 is reserved; registering a
// second device (or the same device twice) at a node id is a programming
// error.
func (d *Dispatcher) Register(dev Device) {
	id := dev.NodeID()
	if id == 0 {
		panic("canopen: node id 0 is reserved")
	}
	if _, exists := d.byNode[id]; exists {
		panic("canopen: node id already registered")
	}
	d.byNode[id] = &deviceEntry{
		dev:    dev,
		client: newSDOClient(id, 8),
		tpdo:   make(map[uint32][]MapEntry),
	}
}

// RegisterTPDO maps cobID to dev's node for PDO routing, with the field
// layout used to decode incoming payloads. Unlike Register, re-registering
// an identical (cobID, mapping) pair is tolerated, matching the CANopen
// carve-out in spec.md's registration discipline.
func (d *Dispatcher) RegisterTPDO(dev Device, cobID uint32, mapping []MapEntry) {
	entry, ok := d.byNode[dev.NodeID()]
	if !ok {
		panic("canopen: device must be registered before its PDOs")
	}
	entry.tpdo[cobID] = mapping
	d.byCob[cobID] = entry
}

// SendSDO enqueues req for nodeID's client, honoring the one-in-flight,
// minimum-gap discipline.
func (d *Dispatcher) SendSDO(now int64, nodeID uint8, cmd byte, index uint16, subindex uint8, data uint32) {
	entry, ok := d.byNode[nodeID]
	if !ok {
		return
	}
	entry.client.Push(now, sdoRequest{cmd: cmd, index: index, subindex: subindex, data: data}, d.sendFrame)
}

func (d *Dispatcher) sendFrame(nodeID uint8, body [8]byte) {
	if d.Send == nil {
		return
	}
	d.Send(cobSDOClient+uint32(nodeID), body)
}

// Process drains src, routing each frame: PDO first, then SDO, logging
// anything that matches neither.
func (d *Dispatcher) Process(now int64, src interface {
	Empty() bool
	Pop() Frame
}) {
	for !src.Empty() {
		d.route(now, src.Pop())
	}
}

func (d *Dispatcher) route(now int64, f Frame) {
	if entry, ok := d.byCob[f.ID]; ok && f.DLC > 0 {
		entry.dev.OnPDO(f.ID, f.Data[:f.DLC])
		return
	}

	svc := identify(f.ID)
	if svc.kind == "sdo-response" {
		entry, ok := d.byNode[svc.nodeID]
		if !ok {
			d.logUnhandled(f)
			return
		}
		cmd, index, subindex, value := decodeSDOResponse(f.Data)
		entry.client.Complete(now, d.sendFrame)
		entry.dev.OnSDOResponse(SDOResponse{
			Index:    index,
			Subindex: subindex,
			Value:    value,
			Abort:    cmd == 0x80,
		})
		return
	}

	d.logUnhandled(f)
}

func (d *Dispatcher) logUnhandled(f Frame) {
	if d.Unhandled != nil {
		d.Unhandled(f)
	}
}
