package rpc

import (
	"strconv"

	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/wallet/errs"
	"github/chapool/dot-wallet/internal/wallet/fixedbuf"
)

const hexDigits = "0123456789abcdef"

// encodeRequest writes {"id":N,"jsonrpc":"2.0","method":"m","params":[...]}.
func encodeRequest(buf *fixedbuf.Buffer, id uint32, method Method, params []Param) error {
	var scratch [20]byte

	if _, err := buf.WriteString(`{"id":`); err != nil {
		return err
	}
	if _, err := buf.Write(strconv.AppendUint(scratch[:0], uint64(id), 10)); err != nil {
		return err
	}
	if _, err := buf.WriteString(`,"jsonrpc":"2.0","method":"`); err != nil {
		return err
	}
	if _, err := buf.WriteString(method.String()); err != nil {
		return err
	}
	if _, err := buf.WriteString(`","params":[`); err != nil {
		return err
	}

	for i, param := range params {
		if i > 0 {
			if err := buf.WriteByte(','); err != nil {
				return err
			}
		}

		switch param.kind {
		case paramNumber:
			if _, err := buf.Write(strconv.AppendUint(scratch[:0], param.number, 10)); err != nil {
				return err
			}
		case paramString:
			if err := writeJSONString(buf, param.text); err != nil {
				return err
			}
		default:
			return errors.Errorf("unknown parameter kind %d", param.kind)
		}
	}

	_, err := buf.WriteString(`]}`)
	return err
}

func writeJSONString(buf *fixedbuf.Buffer, s string) error {
	if err := buf.WriteByte('"'); err != nil {
		return err
	}

	for i := 0; i < len(s); i++ {
		c := s[i]

		var err error
		switch {
		case c == '"' || c == '\\':
			_, err = buf.Write([]byte{'\\', c})
		case c == '\n':
			_, err = buf.WriteString(`\n`)
		case c == '\r':
			_, err = buf.WriteString(`\r`)
		case c == '\t':
			_, err = buf.WriteString(`\t`)
		case c < 0x20:
			_, err = buf.Write([]byte{'\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xF]})
		default:
			err = buf.WriteByte(c)
		}

		if err != nil {
			return errors.Wrap(errs.ErrCapacity, "string parameter does not fit request buffer")
		}
	}

	return buf.WriteByte('"')
}
