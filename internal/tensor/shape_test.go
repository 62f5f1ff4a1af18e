package tensor

import "testing"

func TestShapeNumElements(t *testing.T) {
	cases := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{2, 3}, 6},
		{Shape{2, 3, 4}, 24},
		{Shape{2, 0, 4}, 0},
	}
	for _, tc := range cases {
		if got := tc.shape.NumElements(); got != tc.want {
			t.Errorf("NumElements(%v) = %d, want %d", tc.shape, got, tc.want)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{2, 3}).Validate(); err != nil {
		t.Errorf("Valid shape rejected: %v", err)
	}
	if err := (Shape{0}).Validate(); err != nil {
		t.Errorf("Zero dimension is valid: %v", err)
	}
	if err := (Shape{2, -1}).Validate(); err == nil {
		t.Error("Negative dimension accepted")
	}
}

func TestShapeEqualAndClone(t *testing.T) {
	s := Shape{2, 3}
	if !s.Equal(Shape{2, 3}) {
		t.Error("Equal shapes reported unequal")
	}
	if s.Equal(Shape{3, 2}) || s.Equal(Shape{2}) {
		t.Error("Unequal shapes reported equal")
	}

	c := s.Clone()
	c[0] = 99
	if s[0] != 2 {
		t.Error("Clone shares storage with the original")
	}
}

func TestComputeStrides(t *testing.T) {
	cases := []struct {
		shape Shape
		want  []int
	}{
		{Shape{}, []int{}},
		{Shape{4}, []int{1}},
		{Shape{2, 3}, []int{3, 1}},
		{Shape{2, 3, 4}, []int{12, 4, 1}},
	}
	for _, tc := range cases {
		got := tc.shape.ComputeStrides()
		if len(got) != len(tc.want) {
			t.Errorf("ComputeStrides(%v) = %v, want %v", tc.shape, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("ComputeStrides(%v) = %v, want %v", tc.shape, got, tc.want)
				break
			}
		}
	}
}

func TestBroadcastShapes(t *testing.T) {
	cases := []struct {
		name      string
		a, b      Shape
		want      Shape
		broadcast bool
	}{
		{"Equal", Shape{2, 3}, Shape{2, 3}, Shape{2, 3}, false},
		{"ScalarLeft", Shape{}, Shape{2, 3}, Shape{2, 3}, true},
		{"VectorOverMatrix", Shape{3}, Shape{2, 3}, Shape{2, 3}, true},
		{"OnesExpand", Shape{2, 1}, Shape{1, 3}, Shape{2, 3}, true},
		{"TrailingOne", Shape{2, 3}, Shape{2, 1}, Shape{2, 3}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, needs, err := BroadcastShapes(tc.a, tc.b)
			if err != nil {
				t.Fatalf("BroadcastShapes(%v, %v): %v", tc.a, tc.b, err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("Shape: got %v, want %v", got, tc.want)
			}
			if needs != tc.broadcast {
				t.Errorf("needsBroadcast: got %v, want %v", needs, tc.broadcast)
			}
		})
	}

	t.Run("Incompatible", func(t *testing.T) {
		if _, _, err := BroadcastShapes(Shape{2}, Shape{3}); err == nil {
			t.Error("Expected an error for incompatible shapes")
		}
	})
}

func TestDataTypeSize(t *testing.T) {
	cases := map[DataType]int{
		Float32:   4,
		Float64:   8,
		Float16:   2,
		Int32:     4,
		Int64:     8,
		Uint8:     1,
		Bool:      1,
		Complex64: 8,
		String:    0,
	}
	for dt, want := range cases {
		if got := dt.Size(); got != want {
			t.Errorf("%s.Size() = %d, want %d", dt, got, want)
		}
	}
}

func TestInferDataType(t *testing.T) {
	if got := InferDataType[float32](); got != Float32 {
		t.Errorf("InferDataType[float32] = %s", got)
	}
	if got := InferDataType[int64](); got != Int64 {
		t.Errorf("InferDataType[int64] = %s", got)
	}
	if got := InferDataType[bool](); got != Bool {
		t.Errorf("InferDataType[bool] = %s", got)
	}
}

func TestInfoBytes(t *testing.T) {
	info := Info{Shape: Shape{2, 3}, DType: Float64}
	if got := info.Bytes(); got != 48 {
		t.Errorf("Bytes = %d, want 48", got)
	}
	str := Info{Shape: Shape{10}, DType: String}
	if got := str.Bytes(); got != 0 {
		t.Errorf("String tensor Bytes = %d, want 0", got)
	}
}

func TestNextDataIDMonotonic(t *testing.T) {
	a := NextDataID()
	b := NextDataID()
	if b <= a {
		t.Errorf("DataIDs must be strictly increasing: %d then %d", a, b)
	}
}
