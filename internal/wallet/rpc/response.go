package rpc

import (
	"encoding/hex"
	"math"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/wallet/errs"
)

// arena hands out regions of the result buffer.
type arena struct {
	buf []byte
	off int
}

func (a *arena) take(n int) ([]byte, error) {
	if n > len(a.buf)-a.off {
		return nil, errors.Wrapf(errs.ErrCapacity, "result of %d bytes exceeds result buffer of %d", n, len(a.buf))
	}
	region := a.buf[a.off : a.off+n : a.off+n]
	a.off += n
	return region, nil
}

// text copies an unescaped JSON string into the arena.
func (a *arena) text(value []byte) ([]byte, error) {
	region, err := a.take(len(value))
	if err != nil {
		return nil, err
	}

	unescaped, err := jsonparser.Unescape(value, region)
	if err != nil {
		return nil, errors.Wrap(errs.ErrMalformedJSON, err.Error())
	}

	n := copy(region, unescaped)
	a.off -= len(region) - n

	return region[:n], nil
}

type envelope struct {
	id       []byte
	idType   jsonparser.ValueType
	result   []byte
	resType  jsonparser.ValueType
	errValue []byte
	hasError bool
}

// decodeResponse parses a response frame for the call (id, method) and copies
// the result into out.
func decodeResponse(frame []byte, id uint32, method Method, out []byte) (Result, error) {
	var env envelope

	err := jsonparser.ObjectEach(frame, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		switch string(key) {
		case "id":
			env.id, env.idType = value, dataType
		case "result":
			env.result, env.resType = value, dataType
		case "error":
			env.errValue, env.hasError = value, dataType == jsonparser.Object
		}
		return nil
	})
	if err != nil {
		return Result{}, errors.Wrapf(errs.ErrMalformedJSON, "response to %s: %v", method, err)
	}

	got, err := responseID(env)
	if err != nil {
		return Result{}, err
	}
	if got != id {
		return Result{}, errors.Wrapf(errs.ErrResponseMismatch, "sent id %d, received id %d", id, got)
	}

	if env.hasError {
		return Result{}, decodeRPCError(env.errValue)
	}
	if env.resType == jsonparser.NotExist {
		return Result{}, errors.Wrapf(errs.ErrMalformedJSON, "response to %s has neither result nor error", method)
	}

	res := Result{Method: method, ID: id}
	a := arena{buf: out}

	switch method.Shape() {
	case ShapeHash:
		err = decodeHashValue(env.result, env.resType, &res.Hash)
	case ShapeText:
		if env.resType != jsonparser.String {
			return Result{}, errors.Wrapf(errs.ErrMalformedJSON, "%s result is not a string", method)
		}
		res.Text, err = a.text(env.result)
	case ShapeNumber:
		res.Number, err = decodeNumber(env.result, env.resType)
	case ShapeBytes:
		res.Bytes, err = decodeBytes(&a, env.result, env.resType)
	case ShapeRuntimeVersion:
		res.Runtime, err = decodeRuntimeVersion(&a, env.result, env.resType)
	case ShapeHeader:
		res.Header, err = decodeHeader(env.result, env.resType)
	}

	if err != nil {
		return Result{}, errors.Wrapf(err, "failed to decode %s result", method)
	}

	return res, nil
}

func responseID(env envelope) (uint32, error) {
	if env.idType != jsonparser.Number {
		return 0, errors.Wrap(errs.ErrResponseMismatch, "response without numeric id")
	}

	id, err := strconv.ParseUint(string(env.id), 10, 32)
	if err != nil {
		return 0, errors.Wrapf(errs.ErrResponseMismatch, "response id %q", env.id)
	}

	return uint32(id), nil
}

func decodeRPCError(value []byte) error {
	code, err := jsonparser.GetInt(value, "code")
	if err != nil {
		return errors.Wrap(errs.ErrMalformedJSON, "error object without code")
	}

	message, err := jsonparser.GetString(value, "message")
	if err != nil {
		return errors.Wrap(errs.ErrMalformedJSON, "error object without message")
	}

	return &errs.RPCError{Code: code, Message: message}
}

// decodeHashValue leaves dst zero for null, which nodes answer for unknown
// block numbers.
func decodeHashValue(value []byte, dataType jsonparser.ValueType, dst *Hash) error {
	if dataType == jsonparser.Null {
		*dst = Hash{}
		return nil
	}
	if dataType != jsonparser.String {
		return errors.Wrap(errs.ErrMalformedJSON, "hash is not a string")
	}
	return DecodeHash(value, dst)
}

// DecodeHash parses a 0x-prefixed 32-byte hex hash.
func DecodeHash(value []byte, dst *Hash) error {
	if len(value) != 2+2*len(dst) || value[0] != '0' || (value[1] != 'x' && value[1] != 'X') {
		return errors.Wrapf(errs.ErrInvalidHex, "hash %q", value)
	}
	if _, err := hex.Decode(dst[:], value[2:]); err != nil {
		return errors.Wrap(errs.ErrInvalidHex, err.Error())
	}
	return nil
}

func decodeNumber(value []byte, dataType jsonparser.ValueType) (uint64, error) {
	switch dataType {
	case jsonparser.Number:
		n, err := strconv.ParseUint(string(value), 10, 64)
		if err != nil {
			return 0, errors.Wrapf(errs.ErrMalformedJSON, "number %q", value)
		}
		return n, nil
	case jsonparser.String:
		return parseHexQuantity(value)
	default:
		return 0, errors.Wrap(errs.ErrMalformedJSON, "result is not a number")
	}
}

// parseHexQuantity parses "0x1a2b" block numbers.
func parseHexQuantity(value []byte) (uint64, error) {
	if len(value) < 3 || value[0] != '0' || value[1] != 'x' {
		return 0, errors.Wrapf(errs.ErrInvalidHex, "quantity %q", value)
	}

	n, err := strconv.ParseUint(string(value[2:]), 16, 64)
	if err != nil {
		return 0, errors.Wrapf(errs.ErrInvalidHex, "quantity %q", value)
	}

	return n, nil
}

func decodeBytes(a *arena, value []byte, dataType jsonparser.ValueType) ([]byte, error) {
	if dataType != jsonparser.String {
		return nil, errors.Wrap(errs.ErrMalformedJSON, "bytes result is not a string")
	}
	if len(value) < 2 || value[0] != '0' || value[1] != 'x' || len(value)%2 != 0 {
		return nil, errors.Wrap(errs.ErrInvalidHex, "bytes result is not 0x-prefixed hex")
	}

	region, err := a.take((len(value) - 2) / 2)
	if err != nil {
		return nil, err
	}
	if _, err := hex.Decode(region, value[2:]); err != nil {
		return nil, errors.Wrap(errs.ErrInvalidHex, err.Error())
	}

	return region, nil
}

func decodeRuntimeVersion(a *arena, value []byte, dataType jsonparser.ValueType) (RuntimeVersion, error) {
	if dataType != jsonparser.Object {
		return RuntimeVersion{}, errors.Wrap(errs.ErrMalformedJSON, "runtime version is not an object")
	}

	var rv RuntimeVersion

	name, kind, _, err := jsonparser.Get(value, "specName")
	if err != nil || kind != jsonparser.String {
		return RuntimeVersion{}, errors.Wrap(errs.ErrMalformedJSON, "runtime version without specName")
	}
	if rv.SpecName, err = a.text(name); err != nil {
		return RuntimeVersion{}, err
	}

	if rv.SpecVersion, err = getUint32(value, "specVersion"); err != nil {
		return RuntimeVersion{}, err
	}
	if rv.TransactionVersion, err = getUint32(value, "transactionVersion"); err != nil {
		return RuntimeVersion{}, err
	}

	return rv, nil
}

func getUint32(value []byte, key string) (uint32, error) {
	n, err := jsonparser.GetInt(value, key)
	if err != nil || n < 0 || n > math.MaxUint32 {
		return 0, errors.Wrapf(errs.ErrMalformedJSON, "%s is not a u32", key)
	}
	return uint32(n), nil
}

func decodeHeader(value []byte, dataType jsonparser.ValueType) (Header, error) {
	if dataType != jsonparser.Object {
		return Header{}, errors.Wrap(errs.ErrMalformedJSON, "header is not an object")
	}

	var header Header

	number, kind, _, err := jsonparser.Get(value, "number")
	if err != nil {
		return Header{}, errors.Wrap(errs.ErrMalformedJSON, "header without number")
	}
	if header.Number, err = decodeNumber(number, kind); err != nil {
		return Header{}, err
	}

	parent, kind, _, err := jsonparser.Get(value, "parentHash")
	if err != nil {
		return Header{}, errors.Wrap(errs.ErrMalformedJSON, "header without parentHash")
	}
	if err := decodeHashValue(parent, kind, &header.ParentHash); err != nil {
		return Header{}, err
	}

	return header, nil
}
