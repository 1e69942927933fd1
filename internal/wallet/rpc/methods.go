package rpc

import (
	"encoding/hex"
)

// Method is one of the JSON-RPC methods the wallet speaks.
type Method int

const (
	ChainGetBlockHash Method = iota
	ChainGetFinalizedHead
	ChainGetHeader
	SystemChain
	SystemName
	SystemVersion
	StateGetRuntimeVersion
	StateGetMetadata
	SystemAccountNextIndex
	AuthorSubmitExtrinsic
)

var methodNames = [...]string{
	ChainGetBlockHash:      "chain_getBlockHash",
	ChainGetFinalizedHead:  "chain_getFinalizedHead",
	ChainGetHeader:         "chain_getHeader",
	SystemChain:            "system_chain",
	SystemName:             "system_name",
	SystemVersion:          "system_version",
	StateGetRuntimeVersion: "state_getRuntimeVersion",
	StateGetMetadata:       "state_getMetadata",
	SystemAccountNextIndex: "system_accountNextIndex",
	AuthorSubmitExtrinsic:  "author_submitExtrinsic",
}

// Shape is the fixed form of a method's result.
type Shape int

const (
	ShapeHash Shape = iota
	ShapeText
	ShapeRuntimeVersion
	ShapeHeader
	ShapeNumber
	ShapeBytes
)

var methodShapes = [...]Shape{
	ChainGetBlockHash:      ShapeHash,
	ChainGetFinalizedHead:  ShapeHash,
	ChainGetHeader:         ShapeHeader,
	SystemChain:            ShapeText,
	SystemName:             ShapeText,
	SystemVersion:          ShapeText,
	StateGetRuntimeVersion: ShapeRuntimeVersion,
	StateGetMetadata:       ShapeBytes,
	SystemAccountNextIndex: ShapeNumber,
	AuthorSubmitExtrinsic:  ShapeHash,
}

// Valid reports whether m is a supported method.
func (m Method) Valid() bool {
	return m >= 0 && int(m) < len(methodNames)
}

// String returns the wire name of m.
func (m Method) String() string {
	if !m.Valid() {
		return "unknown"
	}
	return methodNames[m]
}

func (m Method) Shape() Shape {
	return methodShapes[m]
}

// Hash is a 32-byte block or extrinsic hash.
type Hash [32]byte

// Hex returns h as 0x-prefixed lowercase hex.
func (h Hash) Hex() string {
	var out [2 + 2*len(h)]byte
	out[0], out[1] = '0', 'x'
	hex.Encode(out[2:], h[:])
	return string(out[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// RuntimeVersion is the subset of state_getRuntimeVersion the wallet needs.
// SpecName is a view into the client's result buffer.
type RuntimeVersion struct {
	SpecName           []byte
	SpecVersion        uint32
	TransactionVersion uint32
}

// Header is the subset of chain_getHeader the wallet needs.
type Header struct {
	Number     uint64
	ParentHash Hash
}

// Result is a decoded response. Only the field matching the method's shape
// is set; Text and Bytes are views into the client's result buffer and stay
// valid until the next Begin.
type Result struct {
	Method  Method
	ID      uint32
	Hash    Hash
	Text    []byte
	Bytes   []byte
	Number  uint64
	Runtime RuntimeVersion
	Header  Header
}

type paramKind int

const (
	paramNumber paramKind = iota
	paramString
)

// Param is one positional JSON-RPC parameter.
type Param struct {
	kind   paramKind
	number uint64
	text   string
}

// Number is an unsigned integer parameter.
func Number(n uint64) Param {
	return Param{kind: paramNumber, number: n}
}

// String is a string parameter. It is JSON-escaped on encoding.
func String(s string) Param {
	return Param{kind: paramString, text: s}
}
