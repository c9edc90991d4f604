package render

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

// DefaultCommand renders through Blender in background mode. -o takes a
// pattern; Blender fills in the frame digits and the extension itself.
const DefaultCommand = "blender -b {document} -S {scene} -o {output_pattern} -F {format} -j {frame_step} -f {frames}"

var ErrEmptyCommand = errors.New("render command is empty")

// CommandRenderer runs an external program once per frame. The command is a
// whitespace separated template; placeholders are substituted per argument
// so values containing spaces stay a single argument.
type CommandRenderer struct {
	Template   []string
	Dir        string
	LogWriter  io.Writer
	EchoOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
	Progress   func(stream OutputStream, line string)
}

func NewCommandRenderer(template string) (*CommandRenderer, error) {
	fields := strings.Fields(template)
	if len(fields) == 0 {
		return nil, ErrEmptyCommand
	}
	return &CommandRenderer{Template: fields}, nil
}

func (r *CommandRenderer) Binary() string {
	if len(r.Template) == 0 {
		return ""
	}
	return r.Template[0]
}

// Args expands the template for one frame. Booleans expand to 1 or 0.
func (r *CommandRenderer) Args(frame Frame) []string {
	st := frame.Settings
	step := st.FrameStep
	if step < 1 {
		step = 1
	}
	end := frame.End
	if !frame.Animation || end < frame.Number {
		end = frame.Number
	}
	pattern := frame.OutputPattern
	if pattern == "" {
		pattern = frame.Output
	}
	repl := strings.NewReplacer(
		"{scene}", frame.Scene,
		"{frames}", frame.Frames(),
		"{frame_step}", strconv.Itoa(step),
		"{frame}", strconv.Itoa(frame.Number),
		"{start}", strconv.Itoa(frame.Number),
		"{end}", strconv.Itoa(end),
		"{output_pattern}", pattern,
		"{output}", frame.Output,
		"{document}", frame.Document,
		"{engine}", st.Engine,
		"{format}", st.Format,
		"{samples}", strconv.Itoa(st.Samples),
		"{resolution}", strconv.Itoa(st.ResolutionScale),
		"{camera}", st.Camera,
		"{view_layer}", st.ViewLayer,
		"{device}", st.Device,
		"{transparent}", flagValue(st.FilmTransparent),
		"{compositor}", flagValue(st.UseCompositor),
		"{denoising}", flagValue(st.UseDenoising),
		"{time_limit}", strconv.FormatFloat(st.TimeLimit, 'f', -1, 64),
		"{persistent_data}", flagValue(st.UsePersistentData),
	)
	out := make([]string, 0, len(r.Template))
	for _, arg := range r.Template {
		out = append(out, repl.Replace(arg))
	}
	return out
}

func flagValue(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (r *CommandRenderer) RenderFrame(ctx context.Context, frame Frame) (Result, error) {
	if len(r.Template) == 0 {
		return Result{}, ErrEmptyCommand
	}
	args := r.Args(frame)
	if err := r.run(ctx, args); err != nil {
		return Result{}, err
	}
	return Result{Preview: previewFor(frame.Output)}, nil
}

func (r *CommandRenderer) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.Dir

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("setup stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", args[0], err)
	}

	var outBuf strings.Builder
	var errBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup

	read := func(stream OutputStream, rd io.Reader, echoW io.Writer) {
		defer wg.Done()
		scanner := bufio.NewScanner(rd)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			appendLimited(&outBuf, &errBuf, stream, line)
			if r.LogWriter != nil {
				_, _ = io.WriteString(r.LogWriter, line+"\n")
			}
			mu.Unlock()

			if r.EchoOutput && echoW != nil {
				_, _ = io.WriteString(echoW, line+"\n")
			}
			if r.Progress != nil {
				r.Progress(stream, line)
			}
		}
	}

	wg.Add(2)
	go read(StreamStdout, stdoutPipe, r.Stdout)
	go read(StreamStderr, stderrPipe, r.Stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		mu.Lock()
		defer mu.Unlock()
		return fmt.Errorf("%s failed: %w\n%s", filepath.Base(args[0]), err, strings.TrimSpace(errBuf.String()))
	}
	return nil
}

// previewFor returns the rendered file if it is an image a display can show.
func previewFor(output string) string {
	switch strings.ToLower(filepath.Ext(output)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tga", ".tif", ".webp":
	default:
		return ""
	}
	if _, err := os.Stat(output); err != nil {
		return ""
	}
	return output
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func appendLimited(outBuf, errBuf *strings.Builder, stream OutputStream, line string) {
	const maxKeep = 8192
	b := outBuf
	if stream == StreamStderr {
		b = errBuf
	}
	if b.Len() >= maxKeep {
		return
	}
	toWrite := line + "\n"
	remain := maxKeep - b.Len()
	if len(toWrite) > remain {
		toWrite = toWrite[:remain]
	}
	b.WriteString(toWrite)
}

type DependencyReport struct {
	Binary      string `json:"binary"`
	BinaryFound bool   `json:"binary_found"`
	BinaryPath  string `json:"binary_path,omitempty"`
}

// DependencyStatus looks the renderer binary up on PATH.
func DependencyStatus(template string) DependencyReport {
	fields := strings.Fields(template)
	report := DependencyReport{}
	if len(fields) == 0 {
		return report
	}
	report.Binary = fields[0]
	if path, err := exec.LookPath(fields[0]); err == nil {
		report.BinaryFound = true
		report.BinaryPath = path
	}
	return report
}

func CheckDependencies(template string) error {
	report := DependencyStatus(template)
	if report.Binary == "" {
		return ErrEmptyCommand
	}
	if !report.BinaryFound {
		return fmt.Errorf("missing dependency: %s is not installed or not on PATH", report.Binary)
	}
	return nil
}
