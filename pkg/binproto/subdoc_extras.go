package binproto

import (
	"encoding/binary"
	"fmt"
)

// SubdocFlag is the single-byte flags field carried in single-path
// sub-document extras.
type SubdocFlag uint8

// MkdirP directs a mutator to create missing intermediate containers along
// the path, when the opcode's traits allow it.
const MkdirP SubdocFlag = 0x01

// SingleExtrasLen is the fixed extras length for single-path sub-document
// requests without an expiry field: pathlen(u16) | flags(u8).
const SingleExtrasLen = 3

// SingleExtrasWithExpiryLen adds a trailing expiry(u32), used by commands
// that may also set the document's expiration as a side effect.
const SingleExtrasWithExpiryLen = SingleExtrasLen + 4

// SingleExtras is the decoded extras section of a single-path sub-document
// request.
type SingleExtras struct {
	PathLen uint16
	Flags   SubdocFlag
	Expiry  uint32
	HasExpiry bool
}

// DecodeSingleExtras parses the pathlen/flags(/expiry) extras of a
// single-path sub-document request. The caller supplies the raw extras
// bytes as framed by the header's extlen.
func DecodeSingleExtras(extras []byte) (SingleExtras, error) {
	switch len(extras) {
	case SingleExtrasLen:
		return SingleExtras{
			PathLen: binary.BigEndian.Uint16(extras[0:2]),
			Flags:   SubdocFlag(extras[2]),
		}, nil
	case SingleExtrasWithExpiryLen:
		return SingleExtras{
			PathLen:   binary.BigEndian.Uint16(extras[0:2]),
			Flags:     SubdocFlag(extras[2]),
			Expiry:    binary.BigEndian.Uint32(extras[3:7]),
			HasExpiry: true,
		}, nil
	default:
		return SingleExtras{}, fmt.Errorf("binproto: unexpected subdoc extras length %d", len(extras))
	}
}

// EncodeSingleExtras serializes a single-path sub-document extras section.
func EncodeSingleExtras(e SingleExtras) []byte {
	n := SingleExtrasLen
	if e.HasExpiry {
		n = SingleExtrasWithExpiryLen
	}
	buf := make([]byte, n)
	binary.BigEndian.PutUint16(buf[0:2], e.PathLen)
	buf[2] = byte(e.Flags)
	if e.HasExpiry {
		binary.BigEndian.PutUint32(buf[3:7], e.Expiry)
	}
	return buf
}

// MultiLookupSpecHeaderLen is the fixed prefix of each spec in a
// multi-lookup body: opcode(u8) | flags(u8) | pathlen(u16).
const MultiLookupSpecHeaderLen = 4

// MultiLookupSpec is one decoded entry of a multi-path lookup request.
type MultiLookupSpec struct {
	Opcode Opcode
	Flags  SubdocFlag
	Path   string
}

// MultiMutationSpecHeaderLen is the fixed prefix of each spec in a
// multi-mutation body: opcode(u8) | flags(u8) | pathlen(u16) | valuelen(u32).
const MultiMutationSpecHeaderLen = 8

// MultiMutationSpec is one decoded entry of a multi-path mutation request.
type MultiMutationSpec struct {
	Opcode Opcode
	Flags  SubdocFlag
	Path   string
	Value  []byte
}

// DecodeMultiLookupSpecs walks a multi-lookup value buffer, returning each
// spec in order. It returns an error if a spec's declared lengths run past
// the end of buf, but does not otherwise validate opcode/flags — that is
// the validator's job.
func DecodeMultiLookupSpecs(buf []byte, maxSpecs int) ([]MultiLookupSpec, error) {
	var specs []MultiLookupSpec
	offset := 0
	for offset < len(buf) {
		if len(specs) >= maxSpecs {
			return nil, fmt.Errorf("binproto: too many multi-lookup specs (max %d)", maxSpecs)
		}
		if offset+MultiLookupSpecHeaderLen > len(buf) {
			return nil, fmt.Errorf("binproto: truncated multi-lookup spec header")
		}
		op := Opcode(buf[offset])
		flags := SubdocFlag(buf[offset+1])
		pathLen := int(binary.BigEndian.Uint16(buf[offset+2 : offset+4]))
		offset += MultiLookupSpecHeaderLen
		if offset+pathLen > len(buf) {
			return nil, fmt.Errorf("binproto: truncated multi-lookup path")
		}
		path := string(buf[offset : offset+pathLen])
		offset += pathLen
		specs = append(specs, MultiLookupSpec{Opcode: op, Flags: flags, Path: path})
	}
	return specs, nil
}

// DecodeMultiMutationSpecs walks a multi-mutation value buffer analogously
// to DecodeMultiLookupSpecs, additionally reading each spec's value.
func DecodeMultiMutationSpecs(buf []byte, maxSpecs int) ([]MultiMutationSpec, error) {
	var specs []MultiMutationSpec
	offset := 0
	for offset < len(buf) {
		if len(specs) >= maxSpecs {
			return nil, fmt.Errorf("binproto: too many multi-mutation specs (max %d)", maxSpecs)
		}
		if offset+MultiMutationSpecHeaderLen > len(buf) {
			return nil, fmt.Errorf("binproto: truncated multi-mutation spec header")
		}
		op := Opcode(buf[offset])
		flags := SubdocFlag(buf[offset+1])
		pathLen := int(binary.BigEndian.Uint16(buf[offset+2 : offset+4]))
		valueLen := int(binary.BigEndian.Uint32(buf[offset+4 : offset+8]))
		offset += MultiMutationSpecHeaderLen
		if offset+pathLen+valueLen > len(buf) {
			return nil, fmt.Errorf("binproto: truncated multi-mutation spec body")
		}
		path := string(buf[offset : offset+pathLen])
		offset += pathLen
		value := buf[offset : offset+valueLen]
		offset += valueLen
		specs = append(specs, MultiMutationSpec{Opcode: op, Flags: flags, Path: path, Value: value})
	}
	return specs, nil
}

// LookupResult is one encoded result record in a multi-lookup response:
// status(u16) | vallen(u32) | value(vallen).
type LookupResult struct {
	Status Status
	Value  []byte
}

// EncodeLookupResults concatenates a vector of per-spec results into a
// multi-lookup response body.
func EncodeLookupResults(results []LookupResult) []byte {
	var buf []byte
	for _, r := range results {
		hdr := make([]byte, 6)
		binary.BigEndian.PutUint16(hdr[0:2], uint16(r.Status))
		binary.BigEndian.PutUint32(hdr[2:6], uint32(len(r.Value)))
		buf = append(buf, hdr...)
		buf = append(buf, r.Value...)
	}
	return buf
}

// MutationResult is one encoded result record in a multi-mutation failure
// response: index(u8) | status(u16).
type MutationResult struct {
	Index  uint8
	Status Status
}

// EncodeMutationFailure encodes the single offending-spec record returned
// when a multi-mutation aborts.
func EncodeMutationFailure(r MutationResult) []byte {
	buf := make([]byte, 3)
	buf[0] = r.Index
	binary.BigEndian.PutUint16(buf[1:3], uint16(r.Status))
	return buf
}
