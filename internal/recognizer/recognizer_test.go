package recognizer

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

func TestPoint3D_Pixel(t *testing.T) {
	tests := []struct {
		name  string
		point Point3D
		w, h  int
		want  image.Point
	}{
		{name: "origin", point: Point3D{}, w: 640, h: 480, want: image.Point{}},
		{name: "center", point: Point3D{X: 0.5, Y: 0.5}, w: 640, h: 480, want: image.Point{X: 320, Y: 240}},
		{name: "truncates", point: Point3D{X: 0.999, Y: 0.001}, w: 100, h: 100, want: image.Point{X: 99, Y: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.point.Pixel(tt.w, tt.h); got != tt.want {
				t.Errorf("Pixel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnnotate(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 100, 100, gocv.MatTypeCV8UC3)
	defer frame.Close()

	hand := Hand{Gesture: "A", Score: 0.9}
	hand.Landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.5}
	for i := 1; i < NumLandmarks; i++ {
		hand.Landmarks.Points[i] = Point3D{X: 0.5, Y: 0.5}
	}

	annotated := Annotate(frame, []Hand{hand})
	defer annotated.Close()

	t.Run("draws marker in copy", func(t *testing.T) {
		v := annotated.GetVecbAt(50, 50)
		// BGR order: red marker has channel 2 set.
		if v[2] != 255 || v[0] != 0 {
			t.Errorf("pixel at landmark = %v, want red marker", v)
		}
	})

	t.Run("source untouched", func(t *testing.T) {
		v := frame.GetVecbAt(50, 50)
		if v[0] != 0 || v[1] != 0 || v[2] != 0 {
			t.Errorf("source pixel = %v, want black", v)
		}
	})

	t.Run("no hands is a plain copy", func(t *testing.T) {
		plain := Annotate(frame, nil)
		defer plain.Close()
		if plain.Rows() != 100 || plain.Cols() != 100 {
			t.Errorf("copy size = %dx%d", plain.Cols(), plain.Rows())
		}
	})
}

func TestMockRecognizer(t *testing.T) {
	frame := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer frame.Close()

	t.Run("script then default", func(t *testing.T) {
		m := NewMockRecognizer()
		m.SetHands([]Hand{MockHand("B", 0.5)})
		m.Script([]Hand{MockHand("A", 0.9)}, nil)

		want := []string{"A", "", "B"}
		for i, w := range want {
			hands, err := m.Recognize(frame)
			if err != nil {
				t.Fatalf("call %d error = %v", i+1, err)
			}
			got := ""
			if len(hands) > 0 {
				got = hands[0].Gesture
			}
			if got != w {
				t.Errorf("call %d gesture = %q, want %q", i+1, got, w)
			}
		}
		if m.Calls() != 3 {
			t.Errorf("Calls() = %d, want 3", m.Calls())
		}
	})

	t.Run("fail call", func(t *testing.T) {
		m := NewMockRecognizer()
		boom := errors.New("boom")
		m.FailCall(2, boom)

		if _, err := m.Recognize(frame); err != nil {
			t.Fatalf("call 1 error = %v", err)
		}
		if _, err := m.Recognize(frame); !errors.Is(err, boom) {
			t.Errorf("call 2 error = %v, want boom", err)
		}
	})

	t.Run("panic call", func(t *testing.T) {
		m := NewMockRecognizer()
		m.PanicCall(1)

		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		m.Recognize(frame)
	})

	t.Run("closed", func(t *testing.T) {
		m := NewMockRecognizer()
		m.Close()
		if !m.Closed() {
			t.Error("Closed() = false after Close")
		}
		if _, err := m.Recognize(frame); !errors.Is(err, ErrRecognizerClosed) {
			t.Errorf("error = %v, want ErrRecognizerClosed", err)
		}
	})
}

func TestNewMediaPipeRecognizer_Errors(t *testing.T) {
	t.Run("empty model path", func(t *testing.T) {
		if _, err := NewMediaPipeRecognizer(Config{}); err == nil {
			t.Error("expected error for empty model path")
		}
	})

	t.Run("missing model", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ModelPath = filepath.Join(t.TempDir(), "missing.task")
		if _, err := NewMediaPipeRecognizer(cfg); err == nil {
			t.Error("expected error for missing model")
		}
	})

	t.Run("service fails to load", func(t *testing.T) {
		dir := t.TempDir()
		model := filepath.Join(dir, "model.task")
		if err := os.WriteFile(model, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		script := filepath.Join(dir, "service.sh")
		body := "#!/bin/sh\necho '{\"ready\":false,\"error\":\"bad model\"}'\n"
		if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
			t.Fatal(err)
		}

		cfg := DefaultConfig()
		cfg.ModelPath = model
		cfg.ScriptPath = script
		cfg.Python = "/bin/sh"

		if _, err := NewMediaPipeRecognizer(cfg); err == nil {
			t.Error("expected load failure to surface")
		}
	})
}

func TestMediaPipeRecognizer_Protocol(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping subprocess test in short mode")
	}

	dir := t.TempDir()
	model := filepath.Join(dir, "model.task")
	if err := os.WriteFile(model, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// A stand-in service: reports ready, then answers every request with one
	// hand regardless of the payload.
	script := filepath.Join(dir, "service.sh")
	body := `#!/bin/sh
echo '{"ready":true}'
head -c 4 >/dev/null
echo '{"hands":[{"gesture":"Thumb_Up","score":0.87,"handedness":"Left","points":[{"x":0.1,"y":0.2,"z":0}]}]}'
cat >/dev/null
`
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.ModelPath = model
	cfg.ScriptPath = script
	cfg.Python = "/bin/sh"

	r, err := NewMediaPipeRecognizer(cfg)
	if err != nil {
		t.Fatalf("NewMediaPipeRecognizer() error = %v", err)
	}
	defer r.Close()

	frame := gocv.NewMatWithSize(16, 16, gocv.MatTypeCV8UC3)
	defer frame.Close()

	hands, err := r.Recognize(frame)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if len(hands) != 1 {
		t.Fatalf("len(hands) = %d, want 1", len(hands))
	}
	if hands[0].Gesture != "Thumb_Up" || hands[0].Score != 0.87 {
		t.Errorf("hand = %+v", hands[0])
	}
	if hands[0].Landmarks.Handedness != "Left" || hands[0].Landmarks.Points[0].X != 0.1 {
		t.Errorf("landmarks = %+v", hands[0].Landmarks)
	}

	if err := r.Close(); err != nil {
		t.Logf("Close() error = %v", err)
	}
	if _, err := r.Recognize(frame); !errors.Is(err, ErrRecognizerClosed) {
		t.Errorf("Recognize() after Close error = %v, want ErrRecognizerClosed", err)
	}
}

func TestOpenPalmLandmarks(t *testing.T) {
	lm := OpenPalmLandmarks()

	for i, p := range lm.Points {
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			t.Errorf("point %d = %+v, outside the image", i, p)
		}
	}
	for _, f := range Fingers {
		base, tip := lm.Points[int(f)], lm.Points[f.Tip()]
		if tip.Y >= base.Y {
			t.Errorf("finger %d tip %.2f should be above base %.2f", f, tip.Y, base.Y)
		}
	}
	if Pinky.Tip() != NumLandmarks-1 {
		t.Errorf("Pinky.Tip() = %d, want %d", Pinky.Tip(), NumLandmarks-1)
	}
}
