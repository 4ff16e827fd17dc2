package hash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/chazu/stitch/ir"
)

// ErrBadFormat indicates the input bytes are not a valid serialized tree.
var ErrBadFormat = errors.New("hash: malformed tree serialization")

// Deserialize decodes bytes produced by Serialize back into a tree.
func Deserialize(data []byte) (ir.Tree, error) {
	d := &deserializer{buf: data}
	version, err := d.readByte()
	if err != nil {
		return nil, err
	}
	if version != HashVersion {
		return nil, fmt.Errorf("hash: unsupported serialization version 0x%02x", version)
	}
	tree, err := d.readNode()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadFormat, len(d.buf)-d.pos)
	}
	return tree, nil
}

type deserializer struct {
	buf []byte
	pos int
}

func (d *deserializer) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, fmt.Errorf("%w: truncated", ErrBadFormat)
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *deserializer) readBool() (bool, error) {
	b, err := d.readByte()
	return b != 0, err
}

func (d *deserializer) readUint32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, fmt.Errorf("%w: truncated", ErrBadFormat)
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *deserializer) readInt64() (int64, error) {
	if d.pos+8 > len(d.buf) {
		return 0, fmt.Errorf("%w: truncated", ErrBadFormat)
	}
	v := binary.BigEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return int64(v), nil
}

func (d *deserializer) readString() (string, error) {
	n, err := d.readUint32()
	if err != nil {
		return "", err
	}
	if d.pos+int(n) > len(d.buf) {
		return "", fmt.Errorf("%w: truncated string", ErrBadFormat)
	}
	s := string(d.buf[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

func (d *deserializer) readTrees() ([]ir.Tree, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	trees := make([]ir.Tree, 0, n)
	for i := uint32(0); i < n; i++ {
		t, err := d.readNode()
		if err != nil {
			return nil, err
		}
		trees = append(trees, t)
	}
	return trees, nil
}

func (d *deserializer) readNode() (ir.Tree, error) {
	tag, err := d.readByte()
	if err != nil {
		return nil, err
	}

	switch tag {
	case TagSkip:
		return &ir.Skip{}, nil

	case TagBlock:
		stats, err := d.readTrees()
		if err != nil {
			return nil, err
		}
		return &ir.Block{Stats: stats}, nil

	case TagIntLiteral:
		v, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		return &ir.IntLiteral{Value: int32(v)}, nil

	case TagLongLiteral:
		v, err := d.readInt64()
		if err != nil {
			return nil, err
		}
		return &ir.LongLiteral{Value: v}, nil

	case TagDoubleLiteral:
		v, err := d.readInt64()
		if err != nil {
			return nil, err
		}
		return &ir.DoubleLiteral{Value: math.Float64frombits(uint64(v))}, nil

	case TagBooleanLiteral:
		v, err := d.readBool()
		if err != nil {
			return nil, err
		}
		return &ir.BooleanLiteral{Value: v}, nil

	case TagStringLiteral:
		v, err := d.readString()
		if err != nil {
			return nil, err
		}
		return &ir.StringLiteral{Value: v}, nil

	case TagNull:
		return &ir.Null{}, nil

	case TagThis:
		return &ir.This{}, nil

	case TagVarRef:
		name, err := d.readString()
		if err != nil {
			return nil, err
		}
		return &ir.VarRef{Name: name}, nil

	case TagSelect:
		qual, err := d.readNode()
		if err != nil {
			return nil, err
		}
		field, err := d.readString()
		if err != nil {
			return nil, err
		}
		return &ir.Select{Qualifier: qual, Field: field}, nil

	case TagAssign:
		lhs, err := d.readNode()
		if err != nil {
			return nil, err
		}
		rhs, err := d.readNode()
		if err != nil {
			return nil, err
		}
		return &ir.Assign{LHS: lhs, RHS: rhs}, nil

	case TagStoreModule:
		name, err := d.readString()
		if err != nil {
			return nil, err
		}
		value, err := d.readNode()
		if err != nil {
			return nil, err
		}
		return &ir.StoreModule{ClassName: name, Value: value}, nil

	case TagLoadModule:
		name, err := d.readString()
		if err != nil {
			return nil, err
		}
		elidable, err := d.readBool()
		if err != nil {
			return nil, err
		}
		return &ir.LoadModule{ClassName: name, Elidable: elidable}, nil

	case TagApply:
		recvClass, err := d.readString()
		if err != nil {
			return nil, err
		}
		recv, err := d.readNode()
		if err != nil {
			return nil, err
		}
		method, err := d.readString()
		if err != nil {
			return nil, err
		}
		args, err := d.readTrees()
		if err != nil {
			return nil, err
		}
		return &ir.Apply{ReceiverClass: recvClass, Receiver: recv, Method: method, Args: args}, nil

	case TagApplyStatically:
		className, err := d.readString()
		if err != nil {
			return nil, err
		}
		nsByte, err := d.readByte()
		if err != nil {
			return nil, err
		}
		if int(nsByte) >= int(ir.MemberNamespaceCount) {
			return nil, fmt.Errorf("%w: bad namespace ordinal %d", ErrBadFormat, nsByte)
		}
		method, err := d.readString()
		if err != nil {
			return nil, err
		}
		hasRecv, err := d.readBool()
		if err != nil {
			return nil, err
		}
		var recv ir.Tree
		if hasRecv {
			recv, err = d.readNode()
			if err != nil {
				return nil, err
			}
		}
		args, err := d.readTrees()
		if err != nil {
			return nil, err
		}
		return &ir.ApplyStatically{
			ClassName: className,
			Namespace: ir.MemberNamespace(nsByte),
			Method:    method,
			Receiver:  recv,
			Args:      args,
		}, nil

	case TagNew:
		className, err := d.readString()
		if err != nil {
			return nil, err
		}
		ctor, err := d.readString()
		if err != nil {
			return nil, err
		}
		args, err := d.readTrees()
		if err != nil {
			return nil, err
		}
		return &ir.New{ClassName: className, Ctor: ctor, Args: args}, nil

	case TagRecordValue:
		className, err := d.readString()
		if err != nil {
			return nil, err
		}
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		fields := make([]ir.RecordField, 0, n)
		for i := uint32(0); i < n; i++ {
			name, err := d.readString()
			if err != nil {
				return nil, err
			}
			value, err := d.readNode()
			if err != nil {
				return nil, err
			}
			fields = append(fields, ir.RecordField{Name: name, Value: value})
		}
		return &ir.RecordValue{ClassName: className, Fields: fields}, nil

	default:
		return nil, fmt.Errorf("%w: unknown tag 0x%02x", ErrBadFormat, tag)
	}
}
