package imagetest

// Identity of the sample module's symbol files.
var (
	SampleGUID = [16]byte{
		0x6d, 0x2f, 0x5c, 0x1a, 0x3e, 0x4b, 0x8a, 0x41,
		0x9c, 0x11, 0x02, 0xf3, 0x7e, 0x55, 0xa0, 0x3b,
	}
	SampleStamp uint32 = 0x9E1B2C3D
	SampleAge   uint32 = 1
)

// IL used by the sample bodies.
var (
	// ldarg.0 ldarg.1 add conv.i4 ret
	ComputeIL = []byte{0x02, 0x03, 0x58, 0x69, 0x2A}
	// ldarg.0 call 0x0A000001 ret
	CtorIL = []byte{0x02, 0x28, 0x01, 0x00, 0x00, 0x0A, 0x2A}
	// ldstr 0x70000001 ldarg.1 call 0x0A000002 ret
	DescribeIL = []byte{0x72, 0x01, 0x00, 0x00, 0x70, 0x03, 0x28, 0x02, 0x00, 0x00, 0x0A, 0x2A}
	// ret
	RetIL = []byte{0x2A}
	// ldnull ret
	LdnullIL = []byte{0x14, 0x2A}
)

// Sample describes Sample.dll:
//
//	<Module>
//	Sample.Calculator    Compute(int,int) int, .ctor(), Describe(string) string
//	Sample.Shape         Area() double (abstract), Lock() (protected, synchronized)
//	Sample.Shape/Builder Build() Shape
func Sample(portable bool) *Image {
	return &Image{
		Module: "Sample.dll",
		Types: []Type{
			{Name: "<Module>"},
			{
				Namespace: "Sample", Name: "Calculator", Flags: 0x00100001,
				Methods: []Method{
					{
						Name:      "Compute",
						Flags:     MethodPublic | MethodStatic | MethodHideBySig,
						Signature: MethodSig(false, Int32, Int32, Int32),
						Code:      ComputeIL,
					},
					{
						Name:      ".ctor",
						Flags:     MethodPublic | MethodHideBySig | 0x1800,
						Signature: MethodSig(true, Void),
						Code:      CtorIL,
					},
					{
						Name:      "Describe",
						Flags:     MethodPrivate | MethodHideBySig,
						Signature: MethodSig(true, String, String),
						Code:      DescribeIL,
						Fat:       true,
					},
				},
			},
			{
				Namespace: "Sample", Name: "Shape", Flags: 0x00100081,
				Methods: []Method{
					{
						Name:      "Area",
						Flags:     MethodPublic | MethodVirtual | MethodAbstract | MethodHideBySig,
						Signature: MethodSig(true, Double),
					},
					{
						Name:      "Lock",
						Flags:     MethodFamily | MethodHideBySig,
						ImplFlags: ImplSynchronized,
						Signature: MethodSig(true, Void),
						Code:      RetIL,
					},
				},
			},
			{
				Name: "Builder", Flags: 0x00100002, Enclosing: 3,
				Methods: []Method{
					{
						Name:      "Build",
						Flags:     MethodPublic | MethodStatic | MethodHideBySig,
						Signature: MethodSig(false, Class(TypeDefToken(3))),
						Code:      LdnullIL,
					},
				},
			},
		},
		Debug: &Debug{
			GUID:     SampleGUID,
			Age:      SampleAge,
			Stamp:    SampleStamp,
			Path:     `C:\src\Sample\obj\Release\Sample.pdb`,
			Portable: portable,
		},
	}
}

// SampleImage builds Sample.dll with a portable PDB debug entry.
func SampleImage() []byte { return Sample(true).Build() }

// SamplePortablePDB is the portable PDB paired with SampleImage.
func SamplePortablePDB() []byte { return PortablePDB(SampleGUID, SampleStamp) }

// SampleWindowsPDB is a Windows PDB paired with Sample(false).
func SampleWindowsPDB() []byte { return WindowsPDB(SampleGUID, SampleAge) }
