package region

import "testing"

func TestEmpty(t *testing.T) {
	t.Parallel()
	if !(Region{}).Empty() {
		t.Error("zero value Region should be empty")
	}
	if New(10, 5).Empty() != true {
		t.Error("New(10, 5) should normalize to empty")
	}
	if New(0, 10).Empty() {
		t.Error("New(0, 10) should not be empty")
	}
}

func TestIntersect(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		a, b     Region
		wantZero bool
		want     Region
	}{
		{"disjoint", New(0, 10), New(20, 30), true, Region{}},
		{"overlap", New(0, 10), New(5, 15), false, New(5, 10)},
		{"contained", New(0, 100), New(10, 20), false, New(10, 20)},
		{"adjacent is empty", New(0, 10), New(10, 20), true, Region{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Intersect(tt.b)
			if got.Empty() != tt.wantZero {
				t.Fatalf("Intersect(%v,%v).Empty() = %v, want %v", tt.a, tt.b, got.Empty(), tt.wantZero)
			}
			if !tt.wantZero && !got.Equal(tt.want) {
				t.Errorf("Intersect(%v,%v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestJoin(t *testing.T) {
	t.Parallel()
	t.Run("contiguous", func(t *testing.T) {
		got, err := Join(New(0, 10), New(10, 20), New(20, 30))
		if err != nil {
			t.Fatalf("Join returned error: %v", err)
		}
		if !got.Equal(New(0, 30)) {
			t.Errorf("Join = %v, want [0,30)", got)
		}
	})

	t.Run("out of order still contiguous", func(t *testing.T) {
		got, err := Join(New(20, 30), New(0, 10), New(10, 20))
		if err != nil {
			t.Fatalf("Join returned error: %v", err)
		}
		if !got.Equal(New(0, 30)) {
			t.Errorf("Join = %v, want [0,30)", got)
		}
	})

	t.Run("overlap fails", func(t *testing.T) {
		if _, err := Join(New(0, 10), New(5, 20)); err == nil {
			t.Error("Join of overlapping regions should fail")
		}
	})

	t.Run("gap fails", func(t *testing.T) {
		if _, err := Join(New(0, 10), New(20, 30)); err == nil {
			t.Error("Join with a gap should fail")
		}
	})

	t.Run("empty inputs ignored", func(t *testing.T) {
		got, err := Join(Region{}, New(0, 10))
		if err != nil {
			t.Fatalf("Join returned error: %v", err)
		}
		if !got.Equal(New(0, 10)) {
			t.Errorf("Join = %v, want [0,10)", got)
		}
	})
}

func TestSubtract(t *testing.T) {
	t.Parallel()
	t.Run("splits middle", func(t *testing.T) {
		got := New(0, 30).Subtract(New(10, 20))
		if len(got) != 2 || !got[0].Equal(New(0, 10)) || !got[1].Equal(New(20, 30)) {
			t.Errorf("Subtract = %v, want [[0,10) [20,30)]", got)
		}
	})
	t.Run("clips edge", func(t *testing.T) {
		got := New(0, 30).Subtract(New(20, 40))
		if len(got) != 1 || !got[0].Equal(New(0, 20)) {
			t.Errorf("Subtract = %v, want [[0,20)]", got)
		}
	})
	t.Run("no overlap", func(t *testing.T) {
		got := New(0, 10).Subtract(New(20, 30))
		if len(got) != 1 || !got[0].Equal(New(0, 10)) {
			t.Errorf("Subtract = %v, want [[0,10)]", got)
		}
	})
	t.Run("fully consumed", func(t *testing.T) {
		got := New(0, 10).Subtract(New(0, 10))
		if len(got) != 0 {
			t.Errorf("Subtract = %v, want empty", got)
		}
	})
}

func TestContains(t *testing.T) {
	t.Parallel()
	if !New(0, 100).Contains(New(10, 20)) {
		t.Error("expected containment")
	}
	if New(10, 20).Contains(New(0, 100)) {
		t.Error("expected non-containment")
	}
	if !New(0, 10).Contains(Region{}) {
		t.Error("every region contains the empty region")
	}
}
