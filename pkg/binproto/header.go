// Package binproto implements the memcached-compatible binary request/response
// wire protocol: a fixed 24-byte header followed by an extras/key/value body.
//
// Protocol Format:
//   - Every packet begins with a 24-byte header in network byte order.
//   - The body layout is extras || key || value, with lengths taken from
//     the header's extlen/keylen/bodylen fields.
//   - Multi-byte integers are big-endian throughout.
//
// Example usage:
//
//	req, err := binproto.ReadPacket(conn)
//	if err != nil {
//		log.Fatal(err)
//	}
//	resp := binproto.NewResponse(req.Header.Opcode, binproto.StatusSuccess)
//	resp.Header.Opaque = req.Header.Opaque
//	resp.Header.CAS = observedCAS
//	err = binproto.WritePacket(conn, resp)
package binproto

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderSize is the fixed size in bytes of a protocol header.
const HeaderSize = 24

// Magic identifies whether a packet is a request or a response.
type Magic uint8

const (
	MagicRequest  Magic = 0x80
	MagicResponse Magic = 0x81
)

// Opcode identifies the operation requested or answered.
type Opcode uint8

const (
	OpGet   Opcode = 0x00
	OpSet   Opcode = 0x01
	OpDel   Opcode = 0x04
	OpNoop  Opcode = 0x0a
	OpStat  Opcode = 0x10
	OpIoctlGet Opcode = 0x1f
	OpIoctlSet Opcode = 0x20

	OpSelectBucket Opcode = 0x89
	OpCreateBucket Opcode = 0x85
	OpDeleteBucket Opcode = 0x86

	OpSubdocGet            Opcode = 0xc5
	OpSubdocExists         Opcode = 0xc6
	OpSubdocDictAdd        Opcode = 0xc7
	OpSubdocDictUpsert     Opcode = 0xc8
	OpSubdocDelete         Opcode = 0xc9
	OpSubdocReplace        Opcode = 0xca
	OpSubdocArrayPushLast  Opcode = 0xcb
	OpSubdocArrayPushFirst Opcode = 0xcc
	OpSubdocArrayInsert    Opcode = 0xcd
	OpSubdocArrayAddUnique Opcode = 0xce
	OpSubdocCounter        Opcode = 0xcf
	OpSubdocMultiLookup    Opcode = 0xd0
	OpSubdocMultiMutation  Opcode = 0xd1
)

// Datatype is a bitmask describing how a value's payload is encoded.
type Datatype uint8

const (
	DatatypeRaw        Datatype = 0x00
	DatatypeJSON        Datatype = 0x01
	DatatypeCompressed  Datatype = 0x02
	DatatypeCompressedJSON Datatype = DatatypeJSON | DatatypeCompressed
)

// IsJSON reports whether the JSON bit is set, regardless of compression.
func (d Datatype) IsJSON() bool { return d&DatatypeJSON != 0 }

// IsCompressed reports whether the compressed bit is set.
func (d Datatype) IsCompressed() bool { return d&DatatypeCompressed != 0 }

// Status is the protocol response status code.
type Status uint16

const (
	StatusSuccess          Status = 0x00
	StatusKeyNotFound      Status = 0x01
	StatusKeyExists        Status = 0x02
	StatusE2BIG            Status = 0x03
	StatusEInval           Status = 0x04
	StatusNotStored        Status = 0x05
	StatusDeltaBadVal      Status = 0x06
	StatusAuthError        Status = 0x20
	StatusUnknownCommand   Status = 0x81
	StatusENoMem           Status = 0x82
	StatusNotSupported     Status = 0x83
	StatusEInternal        Status = 0x84
	StatusEBusy            Status = 0x85
	StatusTmpFail          Status = 0x86

	StatusSubdocPathEnoent      Status = 0xc0
	StatusSubdocPathMismatch    Status = 0xc1
	StatusSubdocPathEinval      Status = 0xc2
	StatusSubdocPathE2Big       Status = 0xc3
	StatusSubdocDocE2Deep       Status = 0xc4
	StatusSubdocValueCantInsert Status = 0xc5
	StatusSubdocDocNotJSON      Status = 0xc6
	StatusSubdocNumErange       Status = 0xc7
	StatusSubdocDeltaErange     Status = 0xc8
	StatusSubdocPathEexists     Status = 0xc9
	StatusSubdocValueEtoodeep   Status = 0xca
	StatusSubdocInvalidCombo    Status = 0xcb
	StatusSubdocMultiPathFailure Status = 0xcc
)

// Header is the fixed 24-byte packet header, already decoded from network
// byte order into host values.
type Header struct {
	Magic           Magic
	Opcode          Opcode
	KeyLen          uint16
	ExtLen          uint8
	Datatype        Datatype
	VBucketOrStatus uint16
	BodyLen         uint32
	Opaque          uint32
	CAS             uint64
}

// Vbucket returns VBucketOrStatus interpreted as a request vbucket id.
func (h Header) Vbucket() uint16 { return h.VBucketOrStatus }

// Status returns VBucketOrStatus interpreted as a response status.
func (h Header) Status() Status { return Status(h.VBucketOrStatus) }

// ValueLen returns the length of the value section of the body, i.e.
// bodylen - extlen - keylen. Callers must validate this is non-negative
// before trusting it; ReadPacket does so.
func (h Header) ValueLen() int {
	return int(h.BodyLen) - int(h.ExtLen) - int(h.KeyLen)
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, fmt.Errorf("binproto: short header: %d bytes", len(buf))
	}
	h := Header{
		Magic:           Magic(buf[0]),
		Opcode:          Opcode(buf[1]),
		KeyLen:          binary.BigEndian.Uint16(buf[2:4]),
		ExtLen:          buf[4],
		Datatype:        Datatype(buf[5]),
		VBucketOrStatus: binary.BigEndian.Uint16(buf[6:8]),
		BodyLen:         binary.BigEndian.Uint32(buf[8:12]),
		Opaque:          binary.BigEndian.Uint32(buf[12:16]),
		CAS:             binary.BigEndian.Uint64(buf[16:24]),
	}
	return h, nil
}

func (h Header) encode(buf []byte) {
	buf[0] = byte(h.Magic)
	buf[1] = byte(h.Opcode)
	binary.BigEndian.PutUint16(buf[2:4], h.KeyLen)
	buf[4] = h.ExtLen
	buf[5] = byte(h.Datatype)
	binary.BigEndian.PutUint16(buf[6:8], h.VBucketOrStatus)
	binary.BigEndian.PutUint32(buf[8:12], h.BodyLen)
	binary.BigEndian.PutUint32(buf[12:16], h.Opaque)
	binary.BigEndian.PutUint64(buf[16:24], h.CAS)
}

// Packet is a fully framed request or response: header plus the raw body
// bytes (extras || key || value concatenated).
type Packet struct {
	Header Header
	Extras []byte
	Key    []byte
	Value  []byte
}

// Body reassembles the extras/key/value body for size accounting.
func (p *Packet) Body() []byte {
	out := make([]byte, 0, len(p.Extras)+len(p.Key)+len(p.Value))
	out = append(out, p.Extras...)
	out = append(out, p.Key...)
	out = append(out, p.Value...)
	return out
}

// MaxBodyLen bounds a single packet's body to guard against a hostile or
// corrupt bodylen field driving an unbounded allocation.
const MaxBodyLen = 32 * 1024 * 1024

// ReadPacket reads one full frame: the 24-byte header, then bodylen bytes,
// splitting the body into extras/key/value per the header's lengths.
func ReadPacket(r io.Reader) (*Packet, error) {
	hdrBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		return nil, err
	}
	hdr, err := decodeHeader(hdrBuf)
	if err != nil {
		return nil, err
	}
	if hdr.BodyLen > MaxBodyLen {
		return nil, fmt.Errorf("binproto: body too large: %d bytes", hdr.BodyLen)
	}
	if int(hdr.ExtLen)+int(hdr.KeyLen) > int(hdr.BodyLen) {
		return nil, fmt.Errorf("binproto: extlen+keylen exceeds bodylen")
	}

	body := make([]byte, hdr.BodyLen)
	if hdr.BodyLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
	}

	p := &Packet{Header: hdr}
	p.Extras = body[:hdr.ExtLen]
	p.Key = body[hdr.ExtLen : int(hdr.ExtLen)+int(hdr.KeyLen)]
	p.Value = body[int(hdr.ExtLen)+int(hdr.KeyLen):]
	return p, nil
}

// WritePacket writes a header followed by extras/key/value, deriving
// keylen/extlen/bodylen from the slice lengths supplied. Callers set
// Header.BodyLen to 0; it is computed here.
func WritePacket(w io.Writer, p *Packet) error {
	p.Header.ExtLen = uint8(len(p.Extras))
	p.Header.KeyLen = uint16(len(p.Key))
	p.Header.BodyLen = uint32(len(p.Extras) + len(p.Key) + len(p.Value))

	hdrBuf := make([]byte, HeaderSize)
	p.Header.encode(hdrBuf)

	full := make([]byte, 0, HeaderSize+len(p.Extras)+len(p.Key)+len(p.Value))
	full = append(full, hdrBuf...)
	full = append(full, p.Extras...)
	full = append(full, p.Key...)
	full = append(full, p.Value...)

	_, err := w.Write(full)
	return err
}

// NewResponse builds a status-only response packet (no body) for the given
// opcode and status, ready to have Opaque/CAS/Value filled in by the caller.
func NewResponse(opcode Opcode, status Status) *Packet {
	return &Packet{
		Header: Header{
			Magic:           MagicResponse,
			Opcode:          opcode,
			VBucketOrStatus: uint16(status),
		},
	}
}

// WithValue attaches a value (and datatype) to a response packet, returning
// it for chaining.
func (p *Packet) WithValue(value []byte, datatype Datatype) *Packet {
	p.Value = value
	p.Header.Datatype = datatype
	return p
}

// WithCAS attaches the current CAS to a response packet, returning it for
// chaining.
func (p *Packet) WithCAS(cas uint64) *Packet {
	p.Header.CAS = cas
	return p
}
