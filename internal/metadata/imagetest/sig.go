package imagetest

// Element type bytes used by the signature helpers.
const (
	elemVoid        = 0x01
	elemBoolean     = 0x02
	elemChar        = 0x03
	elemI4          = 0x08
	elemI8          = 0x0A
	elemR8          = 0x0D
	elemString      = 0x0E
	elemPtr         = 0x0F
	elemByRef       = 0x10
	elemValueType   = 0x11
	elemClass       = 0x12
	elemVar         = 0x13
	elemArray       = 0x14
	elemGenericInst = 0x15
	elemFnPtr       = 0x1B
	elemObject      = 0x1C
	elemSzArray     = 0x1D
	elemMVar        = 0x1E
	elemCModReqd    = 0x1F
	elemCModOpt     = 0x20
	elemPinned      = 0x45
)

// Calling convention bytes.
const (
	convDefault = 0x00
	convGeneric = 0x10
	convHasThis = 0x20
)

// Sig is one encoded signature element type.
type Sig []byte

var (
	Void    = Sig{elemVoid}
	Boolean = Sig{elemBoolean}
	Char    = Sig{elemChar}
	Int32   = Sig{elemI4}
	Int64   = Sig{elemI8}
	Double  = Sig{elemR8}
	String  = Sig{elemString}
	Object  = Sig{elemObject}
)

// Compressed encodes v as an ECMA-335 compressed unsigned integer.
func Compressed(v uint32) []byte {
	switch {
	case v < 0x80:
		return []byte{byte(v)}
	case v < 0x4000:
		return []byte{byte(v>>8) | 0x80, byte(v)}
	default:
		return []byte{byte(v>>24) | 0xC0, byte(v >> 16), byte(v >> 8), byte(v)}
	}
}

// CompressedSigned encodes v as a compressed signed integer.
func CompressedSigned(v int32) []byte {
	switch {
	case v >= -0x40 && v < 0x40:
		return Compressed(uint32(v&0x3F)<<1 | uint32(v>>31&1))
	case v >= -0x2000 && v < 0x2000:
		return Compressed(uint32(v&0x1FFF)<<1 | uint32(v>>31&1))
	default:
		return Compressed(uint32(v&0x0FFFFFFF)<<1 | uint32(v>>31&1))
	}
}

// TypeDefOrRef tokens for CLASS, VALUETYPE and custom modifiers.
func TypeDefToken(row uint32) uint32  { return row<<2 | 0 }
func TypeRefToken(row uint32) uint32  { return row<<2 | 1 }
func TypeSpecToken(row uint32) uint32 { return row<<2 | 2 }

func join(head []byte, parts ...[]byte) Sig {
	out := append(Sig{}, head...)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func Class(token uint32) Sig     { return join([]byte{elemClass}, Compressed(token)) }
func ValueType(token uint32) Sig { return join([]byte{elemValueType}, Compressed(token)) }
func Ptr(t Sig) Sig             { return join([]byte{elemPtr}, t) }
func ByRef(t Sig) Sig           { return join([]byte{elemByRef}, t) }
func SzArray(t Sig) Sig         { return join([]byte{elemSzArray}, t) }
func Pinned(t Sig) Sig          { return join([]byte{elemPinned}, t) }
func Var(n uint32) Sig           { return join([]byte{elemVar}, Compressed(n)) }
func MVar(n uint32) Sig          { return join([]byte{elemMVar}, Compressed(n)) }

// ModReq and ModOpt prefix t with a custom modifier naming token.
func ModReq(token uint32, t Sig) Sig { return join([]byte{elemCModReqd}, Compressed(token), t) }
func ModOpt(token uint32, t Sig) Sig { return join([]byte{elemCModOpt}, Compressed(token), t) }

// GenericInst instantiates the generic type named by token.
func GenericInst(valueType bool, token uint32, args ...Sig) Sig {
	kind := byte(elemClass)
	if valueType {
		kind = elemValueType
	}
	out := join([]byte{elemGenericInst, kind}, Compressed(token), Compressed(uint32(len(args))))
	for _, a := range args {
		out = append(out, a...)
	}
	return out
}

// Array encodes a general array with the given rank, sizes and lower bounds.
func Array(t Sig, rank uint32, sizes []uint32, lows []int32) Sig {
	out := join([]byte{elemArray}, t, Compressed(rank), Compressed(uint32(len(sizes))))
	for _, s := range sizes {
		out = append(out, Compressed(s)...)
	}
	out = append(out, Compressed(uint32(len(lows)))...)
	for _, l := range lows {
		out = append(out, CompressedSigned(l)...)
	}
	return out
}

// FnPtr wraps a method signature built with MethodSig.
func FnPtr(sig []byte) Sig { return join([]byte{elemFnPtr}, sig) }

// MethodSig encodes a MethodDefSig.
func MethodSig(hasThis bool, ret Sig, params ...Sig) []byte {
	conv := byte(convDefault)
	if hasThis {
		conv |= convHasThis
	}
	return methodSig([]byte{conv}, ret, params)
}

// GenericMethodSig encodes a MethodDefSig with generic arity.
func GenericMethodSig(hasThis bool, arity uint32, ret Sig, params ...Sig) []byte {
	conv := byte(convGeneric)
	if hasThis {
		conv |= convHasThis
	}
	return methodSig(join([]byte{conv}, Compressed(arity)), ret, params)
}

func methodSig(head []byte, ret Sig, params []Sig) []byte {
	out := join(head, Compressed(uint32(len(params))), ret)
	for _, p := range params {
		out = append(out, p...)
	}
	return out
}
