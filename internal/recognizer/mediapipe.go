package recognizer

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"gocv.io/x/gocv"
)

// Service timing.
const (
	// LoadTimeout bounds how long the service may take to load the model.
	LoadTimeout = 30 * time.Second
	// CallTimeout bounds a single recognition round trip.
	CallTimeout = 2 * time.Second
)

// serviceScript is the recognition service entry point.
const serviceScript = "gesture_service.py"

// MediaPipeRecognizer implements Recognizer using a Python MediaPipe
// GestureRecognizer subprocess. Frames are sent as length-prefixed JPEG on
// stdin; each reply is one JSON line on stdout.
type MediaPipeRecognizer struct {
	config  Config
	script  string
	python  string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	rawOut  io.ReadCloser
	started bool
	closed  bool
}

// NewMediaPipeRecognizer starts the service and blocks until the model is
// loaded. Any failure here is fatal for the caller: no process is left running.
func NewMediaPipeRecognizer(config Config) (*MediaPipeRecognizer, error) {
	if config.ModelPath == "" {
		return nil, errors.New("model path is empty")
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("model asset: %w", err)
	}

	script := config.ScriptPath
	if script == "" {
		script = findServiceScript()
	}
	if script == "" {
		return nil, fmt.Errorf("%s not found", serviceScript)
	}

	python := config.Python
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	r := &MediaPipeRecognizer{
		config: config,
		script: script,
		python: python,
	}

	if err := r.start(); err != nil {
		return nil, err
	}

	return r, nil
}

// Recognize sends one frame to the service and returns its classifications.
// An I/O failure tears the service down; the next call restarts it.
func (r *MediaPipeRecognizer) Recognize(frame gocv.Mat) ([]Hand, error) {
	if r.closed {
		return nil, ErrRecognizerClosed
	}
	if !r.started {
		if err := r.start(); err != nil {
			return nil, err
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := r.stdin.Write(length); err != nil {
		r.shutdown()
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := r.stdin.Write(data); err != nil {
		r.shutdown()
		return nil, fmt.Errorf("write data: %w", err)
	}

	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := r.readLine(CallTimeout, &response); err != nil {
		r.shutdown()
		return nil, err
	}
	if response.Error != "" {
		return nil, fmt.Errorf("recognize: %s", response.Error)
	}

	hands := make([]Hand, 0, len(response.Hands))
	for _, h := range response.Hands {
		hands = append(hands, h.toHand())
	}

	return hands, nil
}

// Close shuts down the Python process.
func (r *MediaPipeRecognizer) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.shutdown()
}

func (r *MediaPipeRecognizer) start() error {
	r.cmd = exec.Command(r.python, r.script,
		"--model", r.config.ModelPath,
		"--max-hands", strconv.Itoa(r.config.MaxHands),
		"--min-confidence", strconv.FormatFloat(r.config.MinConfidence, 'f', 2, 64),
	)

	stdin, err := r.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := r.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	r.cmd.Stderr = os.Stderr

	if err := r.cmd.Start(); err != nil {
		return fmt.Errorf("start recognition service: %w", err)
	}

	r.stdin = stdin
	r.rawOut = stdout
	r.stdout = bufio.NewReader(stdout)
	r.started = true

	// The service prints one line once the model is loaded.
	var ready struct {
		Ready bool   `json:"ready"`
		Error string `json:"error"`
	}
	if err := r.readLine(LoadTimeout, &ready); err != nil {
		r.shutdown()
		return fmt.Errorf("load model: %w", err)
	}
	if !ready.Ready {
		r.shutdown()
		return fmt.Errorf("load model: %s", ready.Error)
	}

	return nil
}

// readLine reads one JSON line into v, giving up after timeout when the pipe
// supports deadlines.
func (r *MediaPipeRecognizer) readLine(timeout time.Duration, v any) error {
	if d, ok := r.rawOut.(interface{ SetReadDeadline(time.Time) error }); ok {
		if err := d.SetReadDeadline(time.Now().Add(timeout)); err == nil {
			defer d.SetReadDeadline(time.Time{})
		}
	}

	line, err := r.stdout.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	return nil
}

func (r *MediaPipeRecognizer) shutdown() error {
	if !r.started {
		return nil
	}

	if r.stdin != nil {
		r.stdin.Close()
	}

	// Closing stdin asks the service to exit; kill it if it is wedged.
	done := make(chan error, 1)
	go func() { done <- r.cmd.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-time.After(CallTimeout):
		r.cmd.Process.Kill()
		err = <-done
	}

	r.started = false
	r.cmd = nil
	r.stdin = nil
	r.stdout = nil
	r.rawOut = nil

	return err
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", serviceScript),
		filepath.Join("..", "scripts", serviceScript),
		filepath.Join(execDir, "scripts", serviceScript),
		filepath.Join(os.Getenv("HOME"), ".signn", "scripts", serviceScript),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".signn/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonHand is one hand as reported by the service: its top gesture category
// plus landmarks.
type jsonHand struct {
	Gesture    string      `json:"gesture"`
	Score      float64     `json:"score"`
	Handedness string      `json:"handedness"`
	Points     []jsonPoint `json:"points"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (h jsonHand) toHand() Hand {
	hand := Hand{
		Gesture: h.Gesture,
		Score:   h.Score,
	}
	hand.Landmarks.Handedness = h.Handedness

	for i := 0; i < NumLandmarks && i < len(h.Points); i++ {
		hand.Landmarks.Points[i] = Point3D{
			X: h.Points[i].X,
			Y: h.Points[i].Y,
			Z: h.Points[i].Z,
		}
	}

	return hand
}
