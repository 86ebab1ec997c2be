package testutil

import "testing"

func TestSequence(t *testing.T) {
	frames := Frames(t, 3)
	if len(frames) != 3 {
		t.Fatalf("len = %d, want 3", len(frames))
	}
	for i, f := range frames {
		if f.Empty() {
			t.Errorf("frame %d is empty", i)
		}
		if f.Cols() != 64 || f.Rows() != 48 {
			t.Errorf("frame %d size = %dx%d, want 64x48", i, f.Cols(), f.Rows())
		}
	}
}

func TestCloseAll_SkipsNil(t *testing.T) {
	frames := Sequence(2)
	frames = append(frames, nil)
	CloseAll(frames)
}
