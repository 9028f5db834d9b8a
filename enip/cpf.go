package enip

import (
	"encoding/binary"
	"fmt"
)

// ItemType is a Common Packet Format item type code (§2 "CPF").
type ItemType uint16

// CPF item types this stack produces or consumes.
const (
	ItemNullAddress   ItemType = 0x0000
	ItemListIdentity  ItemType = 0x000C
	ItemConnAddress   ItemType = 0x00A1
	ItemConnData      ItemType = 0x00B1
	ItemUnconnData    ItemType = 0x00B2
	ItemListService   ItemType = 0x0100
	ItemSockAddrOT    ItemType = 0x8000
	ItemSockAddrTO    ItemType = 0x8001
	ItemSequencedAddr ItemType = 0x8002
)

// Item is one entry of a CPF item list: a type-tagged, length-prefixed
// byte string.
type Item struct {
	Type ItemType
	Data []byte
}

// DecodeItems parses interface_handle(4) + timeout(2) + item_count(2) +
// items, the shape carried by SendRRData and SendUnitData requests
// (§2 "SendRRData"/"SendUnitData"). It returns the parsed items along with
// the interface handle and timeout, since both matter to the caller.
func DecodeItems(raw []byte) (interfaceHandle uint32, timeout uint16, items []Item, err error) {
	if len(raw) < 8 {
		return 0, 0, nil, fmt.Errorf("enip: CPF payload shorter than fixed header")
	}
	interfaceHandle = binary.LittleEndian.Uint32(raw[0:4])
	timeout = binary.LittleEndian.Uint16(raw[4:6])
	count := int(binary.LittleEndian.Uint16(raw[6:8]))
	off := 8
	for i := 0; i < count; i++ {
		if off+4 > len(raw) {
			return 0, 0, nil, fmt.Errorf("enip: truncated CPF item header at index %d", i)
		}
		typ := ItemType(binary.LittleEndian.Uint16(raw[off : off+2]))
		ln := int(binary.LittleEndian.Uint16(raw[off+2 : off+4]))
		off += 4
		if off+ln > len(raw) {
			return 0, 0, nil, fmt.Errorf("enip: item %d data overruns CPF payload", i)
		}
		items = append(items, Item{Type: typ, Data: raw[off : off+ln]})
		off += ln
	}
	return interfaceHandle, timeout, items, nil
}

// EncodeItems is the serializing mirror of DecodeItems.
func EncodeItems(interfaceHandle uint32, timeout uint16, items []Item) []byte {
	out := make([]byte, 8, 8+32*len(items))
	binary.LittleEndian.PutUint32(out[0:4], interfaceHandle)
	binary.LittleEndian.PutUint16(out[4:6], timeout)
	binary.LittleEndian.PutUint16(out[6:8], uint16(len(items)))
	for _, it := range items {
		head := make([]byte, 4)
		binary.LittleEndian.PutUint16(head[0:2], uint16(it.Type))
		binary.LittleEndian.PutUint16(head[2:4], uint16(len(it.Data)))
		out = append(out, head...)
		out = append(out, it.Data...)
	}
	return out
}

// UnconnectedData extracts the single unconnected-data item's payload from
// a SendRRData request, the common case of one null-address item followed
// by one unconnected-data item (§2, §4.5).
func UnconnectedData(items []Item) ([]byte, error) {
	for _, it := range items {
		if it.Type == ItemUnconnData {
			return it.Data, nil
		}
	}
	return nil, fmt.Errorf("enip: no unconnected-data item present")
}

// WrapUnconnectedReply builds the CPF item list for a SendRRData reply: a
// null address item followed by the unconnected-data reply payload.
func WrapUnconnectedReply(data []byte) []Item {
	return []Item{
		{Type: ItemNullAddress},
		{Type: ItemUnconnData, Data: data},
	}
}

// ConnectedData extracts the connected-data item and its leading sequence
// number from a SendUnitData request (§2 "SendUnitData").
func ConnectedData(items []Item) (connectionID uint32, sequence uint16, payload []byte, err error) {
	var addr, data []byte
	for _, it := range items {
		switch it.Type {
		case ItemConnAddress:
			addr = it.Data
		case ItemConnData:
			data = it.Data
		}
	}
	if len(addr) < 4 {
		return 0, 0, nil, fmt.Errorf("enip: missing or short connected-address item")
	}
	if len(data) < 2 {
		return 0, 0, nil, fmt.Errorf("enip: missing or short connected-data item")
	}
	connectionID = binary.LittleEndian.Uint32(addr[0:4])
	sequence = binary.LittleEndian.Uint16(data[0:2])
	return connectionID, sequence, data[2:], nil
}

// WrapConnectedReply builds the CPF item list for a SendUnitData reply.
func WrapConnectedReply(connectionID uint32, sequence uint16, payload []byte) []Item {
	addr := make([]byte, 4)
	binary.LittleEndian.PutUint32(addr, connectionID)
	data := make([]byte, 2+len(payload))
	binary.LittleEndian.PutUint16(data[0:2], sequence)
	copy(data[2:], payload)
	return []Item{
		{Type: ItemConnAddress, Data: addr},
		{Type: ItemConnData, Data: data},
	}
}
