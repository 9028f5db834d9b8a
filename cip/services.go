package cip

// CIP service codes this stack implements (§4.5, §4.6).
const (
	SvcGetAttributeAll      byte = 0x01
	SvcSetAttributeList     byte = 0x04
	SvcReset                byte = 0x05
	SvcMultipleService      byte = 0x0A
	SvcGetAttributeSingle   byte = 0x0E
	SvcSetAttributeSingle   byte = 0x10
	SvcReadTag              byte = 0x4C
	SvcWriteTag             byte = 0x4D
	SvcReadTagFragmented    byte = 0x52 // disambiguated from UnconnectedSend by target class
	SvcUnconnectedSend      byte = 0x52
	SvcWriteTagFragmented   byte = 0x53
	SvcGetInstanceAttrList  byte = 0x55
	replyMask               byte = 0x80
)

// Standard class codes instantiated by default (§4.6).
const (
	ClassIdentity          = 0x01
	ClassMessageRouter     = 0x02
	ClassAssembly          = 0x04
	ClassConnectionManager = 0x06
	ClassSymbol            = 0x6B
	ClassTCPIPInterface    = 0xF5
	ClassEthernetLink      = 0xF6
)

// ReplyService turns a request service code into its reply form.
func ReplyService(service byte) byte { return service | replyMask }
