package bitmap

import (
	"bytes"
	"testing"
)

func TestBinaryOperators(t *testing.T) {
	ops := []struct {
		name string
		fn   func(a, b Dense) Dense
	}{{"AND", And}, {"OR", Or}, {"XOR", XOr}, {"XNOR", XNor}}

	// want is indexed like ops.
	tcs := []struct {
		name string
		a, b string
		want [4]string
	}{
		{
			name: "aligned",
			a:    "10100000",
			b:    "01100000",
			want: [4]string{"00100000", "11100000", "11000000", "00111111"},
		}, {
			name: "short a",
			a:    "101",
			b:    "01111000",
			want: [4]string{"00100000", "11111000", "11011000", "00100111"},
		}, {
			name: "short b",
			a:    "01111000",
			b:    "101",
			want: [4]string{"00100000", "11111000", "11011000", "00100111"},
		}, {
			name: "multibyte",
			a:    "1010 1010 1100 0110",
			b:    "0111 1000 1011 1011",
			want: [4]string{
				"0010 1000 1000 0010",
				"1111 1010 1111 1111",
				"1101 0010 0111 1101",
				"0010 1101 1000 0010",
			},
		},
	}

	for _, tc := range tcs {
		a, b := mustDense(t, tc.a), mustDense(t, tc.b)
		for i, op := range ops {
			t.Run(op.name+" "+tc.name, func(t *testing.T) {
				want := mustDense(t, tc.want[i])
				out := op.fn(a, b)
				if out.Size() != want.Size() {
					t.Fatalf("got bitmap of len %d, want %d", out.Size(), want.Size())
				}
				if !bytes.Equal(out.Data(), want.Data()) {
					t.Errorf("Data() == %v, want %v", out.Data(), want.Data())
				}
			})
		}
	}
}

func TestChoose(t *testing.T) {
	tcs := []struct {
		name       string
		a, b, mask Dense
		eout       Dense
	}{
		{
			name: "mask clear",
			a:    mustDense(t, "1010"),
			b:    mustDense(t, "0101"),
			mask: mustDense(t, "0000"),
			eout: mustDense(t, "1010"),
		}, {
			name: "mask set",
			a:    mustDense(t, "1010"),
			b:    mustDense(t, "0101"),
			mask: mustDense(t, "1111"),
			eout: mustDense(t, "0101"),
		}, {
			name: "mixed multibyte",
			a:    mustDense(t, "1111 0000 1"),
			b:    mustDense(t, "0000 1111 0"),
			mask: mustDense(t, "1100 0011 1"),
			eout: mustDense(t, "0011 0011 0"),
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			out := Choose(tc.a, tc.b, tc.mask)
			if !Equal(out, tc.eout) {
				t.Errorf("Choose(%v, %v, %v) == %v, want %v", tc.a, tc.b, tc.mask, out, tc.eout)
			}
		})
	}
}

func TestPaddingStaysClear(t *testing.T) {
	a := mustDense(t, "101")
	b := mustDense(t, "011")
	x := XNor(a, b)
	if got := CountOnes(x); got != 1 {
		t.Errorf("CountOnes(XNor(%v, %v)) == %d, want 1", a, b, got)
	}
	if x.Get(5) {
		t.Errorf("XNor(%v, %v).Get(5) == true past end of bitmap", a, b)
	}
}

func TestSlice(t *testing.T) {
	tcs := []struct {
		name  string
		start int
		end   int
		bits  Dense
		eout  Dense
	}{
		{
			name:  "full slice",
			bits:  mustDense(t, "11101101"),
			start: 0,
			end:   8,
			eout:  mustDense(t, "11101101"),
		}, {
			name: "empty slice",
			bits: mustDense(t, "11101101"),
			eout: mustDense(t, ""),
		},
		{
			name:  "aligned",
			bits:  mustDense(t, "10000010 11101101 01000001"),
			start: 8,
			end:   16,
			eout:  mustDense(t, "11101101"),
		},
		{
			name:  "unaligned start",
			bits:  mustDense(t, "10000010 11101101 01000001"),
			start: 1,
			end:   16,
			eout:  mustDense(t, "0000010 11101101"),
		}, {
			name:  "unaligned end",
			bits:  mustDense(t, "11111111 00000000 1000 0000"),
			start: 8,
			end:   17,
			eout:  mustDense(t, "00000000 1"),
		}, {
			name:  "long slice",
			bits:  Dense{bits: []byte{1, 2, 3, 4, 5, 6}, len: 48},
			start: 8,
			end:   48,
			eout:  Dense{bits: []byte{2, 3, 4, 5, 6}, len: 40},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Slice(tc.bits, tc.start, tc.end)
			if err != nil {
				t.Fatalf("slice(%d, %d) = %v, want nil error", tc.start, tc.end, err)
			}
			if out.Size() != tc.eout.Size() {
				t.Errorf("got bitmap of len %d, want %d", out.Size(), tc.eout.Size())
			}
			if !bytes.Equal(out.Data(), tc.eout.Data()) {
				t.Errorf("Data() == %v, want %v", out.Data(), tc.eout.Data())
			}
		})
	}
}

func TestSliceBounds(t *testing.T) {
	d := mustDense(t, "10101")
	tcs := []struct {
		name       string
		start, end int
	}{
		{"past end", 0, 6},
		{"negative start", -1, 3},
		{"reversed", 3, 2},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Slice(d, tc.start, tc.end); err == nil {
				t.Errorf("Slice(%v, %d, %d) succeeded, want error", d, tc.start, tc.end)
			}
		})
	}
}
