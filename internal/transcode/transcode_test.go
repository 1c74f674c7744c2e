package transcode

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestEncodeArgs(t *testing.T) {
	// The profile is pinned; any drift changes output determinism.
	want := []string{
		"-y",
		"-i", "/tmp/in.mp4",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-vf", "format=gray",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-threads", "1",
		"/tmp/out.mp4",
	}

	got := EncodeArgs("/tmp/in.mp4", "/tmp/out.mp4")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("EncodeArgs() = %v, want %v", got, want)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		tail string
		want error
	}{
		{
			name: "decoder not found",
			tail: "Decoder (codec msmpeg4v1) not found for input stream #0:0",
			want: ErrUnsupportedCodec,
		},
		{
			name: "unknown decoder",
			tail: "Unknown decoder 'libfoo'",
			want: ErrUnsupportedCodec,
		},
		{
			name: "lowercase decoder message",
			tail: "error: decoder not found",
			want: ErrUnsupportedCodec,
		},
		{
			name: "conversion failed",
			tail: "Conversion failed!",
			want: ErrEncodeFailure,
		},
		{
			name: "invalid data",
			tail: "Invalid data found when processing input",
			want: ErrEncodeFailure,
		},
		{
			name: "decoding error without decoder-missing signature",
			tail: "Error while decoding stream #0:0: Invalid data found",
			want: ErrEncodeFailure,
		},
		{
			name: "empty stderr",
			tail: "",
			want: ErrEncodeFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.tail)
			if !errors.Is(got, tt.want) {
				t.Errorf("classify(%q) = %v, want %v", tt.tail, got, tt.want)
			}
		})
	}
}

func TestStderrTail(t *testing.T) {
	t.Run("short output passes through", func(t *testing.T) {
		got := stderrTail([]byte("  short message \n"))
		if got != "short message" {
			t.Errorf("stderrTail() = %q, want %q", got, "short message")
		}
	})

	t.Run("long output keeps the tail", func(t *testing.T) {
		long := make([]byte, 1000)
		for i := range long {
			long[i] = 'a'
		}
		copy(long[len(long)-3:], "end")

		got := stderrTail(long)
		if len(got) != stderrTailBytes {
			t.Errorf("len = %d, want %d", len(got), stderrTailBytes)
		}
		if got[len(got)-3:] != "end" {
			t.Errorf("tail end = %q, want %q", got[len(got)-3:], "end")
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("explicit settings", func(t *testing.T) {
		f := New(30*time.Second, 4)
		if f.timeout != 30*time.Second {
			t.Errorf("timeout = %v, want 30s", f.timeout)
		}
		if cap(f.gate) != 4 {
			t.Errorf("gate capacity = %d, want 4", cap(f.gate))
		}
		if f.bin != "ffmpeg" {
			t.Errorf("bin = %q, want ffmpeg", f.bin)
		}
	})

	t.Run("zero timeout uses default", func(t *testing.T) {
		f := New(0, 1)
		if f.timeout != DefaultTimeout {
			t.Errorf("timeout = %v, want %v", f.timeout, DefaultTimeout)
		}
	})

	t.Run("zero concurrency derives from CPUs", func(t *testing.T) {
		f := New(time.Minute, 0)
		if cap(f.gate) < 1 {
			t.Errorf("gate capacity = %d, want at least 1", cap(f.gate))
		}
	})
}

var _ Encoder = (*FFmpeg)(nil)

// stubEncoder returns an FFmpeg whose binary is a shell script.
func stubEncoder(t *testing.T, timeout time.Duration, maxConcurrent int, script string) *FFmpeg {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ffmpeg-stub")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("Failed to write stub: %v", err)
	}

	f := New(timeout, maxConcurrent)
	f.bin = path
	return f
}

// successScript writes a marker to its last argument (the output path).
const successScript = `#!/bin/sh
for last in "$@"; do :; done
echo "transcoded" > "$last"
exit 0
`

func TestEncodeWithStub(t *testing.T) {
	f := stubEncoder(t, 5*time.Second, 1, successScript)

	dst := filepath.Join(t.TempDir(), "out.mp4")
	if err := f.Encode(context.Background(), "in.mp4", dst); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("Output not written: %v", err)
	}
	if string(data) != "transcoded\n" {
		t.Errorf("Output = %q, want %q", data, "transcoded\n")
	}
}

func TestEncodeStubUnsupportedCodec(t *testing.T) {
	f := stubEncoder(t, 5*time.Second, 1, `#!/bin/sh
echo "Decoder (codec msmpeg4v1) not found for input stream #0:0" >&2
exit 1
`)

	err := f.Encode(context.Background(), "in.avi", filepath.Join(t.TempDir(), "out.mp4"))
	if !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("Encode() error = %v, want ErrUnsupportedCodec", err)
	}
}

func TestEncodeStubEncodeFailure(t *testing.T) {
	f := stubEncoder(t, 5*time.Second, 1, `#!/bin/sh
echo "Conversion failed!" >&2
exit 1
`)

	err := f.Encode(context.Background(), "in.mp4", filepath.Join(t.TempDir(), "out.mp4"))
	if !errors.Is(err, ErrEncodeFailure) {
		t.Errorf("Encode() error = %v, want ErrEncodeFailure", err)
	}
}

func TestEncodeStubTimeout(t *testing.T) {
	f := stubEncoder(t, 100*time.Millisecond, 1, "#!/bin/sh\nsleep 5\n")

	start := time.Now()
	err := f.Encode(context.Background(), "in.mp4", filepath.Join(t.TempDir(), "out.mp4"))
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Encode() error = %v, want ErrTimeout", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Encode took %v, should have been killed at the 100ms deadline", elapsed)
	}
}

func TestEncodeStubCanceled(t *testing.T) {
	f := stubEncoder(t, 5*time.Second, 1, "#!/bin/sh\nsleep 5\n")

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- f.Encode(ctx, "in.mp4", filepath.Join(t.TempDir(), "out.mp4"))
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Encode() error = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Encode did not return after cancellation")
	}
}

func TestEncodeGateSerializes(t *testing.T) {
	f := stubEncoder(t, 5*time.Second, 1, "#!/bin/sh\nsleep 0.3\nexit 0\n")

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			dst := filepath.Join(t.TempDir(), "out.mp4")
			if err := f.Encode(context.Background(), "in.mp4", dst); err != nil {
				t.Errorf("Encode %d error = %v", n, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// With a single gate slot the two 300ms jobs cannot overlap
	if elapsed < 500*time.Millisecond {
		t.Errorf("Two gated encodes finished in %v, expected at least 500ms", elapsed)
	}
}

func TestEncodeGateWaitRespectsContext(t *testing.T) {
	f := stubEncoder(t, 5*time.Second, 1, "#!/bin/sh\nsleep 2\nexit 0\n")

	// Occupy the only gate slot
	blockerDone := make(chan error, 1)
	go func() {
		blockerDone <- f.Encode(context.Background(), "first.mp4", filepath.Join(t.TempDir(), "a.mp4"))
	}()
	time.Sleep(100 * time.Millisecond)

	// Second caller gives up while waiting for the gate
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	dst := filepath.Join(t.TempDir(), "b.mp4")
	start := time.Now()
	err := f.Encode(ctx, "second.mp4", dst)
	elapsed := time.Since(start)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Encode() error = %v, want context.Canceled", err)
	}
	if elapsed > time.Second {
		t.Errorf("Gate wait returned after %v, should unblock on cancellation", elapsed)
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Error("Output exists; a canceled gate wait must never start ffmpeg")
	}

	if blockErr := <-blockerDone; blockErr != nil {
		t.Errorf("Blocking encode error = %v", blockErr)
	}
}

func TestShutdownKillsProcesses(t *testing.T) {
	f := stubEncoder(t, 30*time.Second, 1, "#!/bin/sh\nsleep 30\n")

	errCh := make(chan error, 1)
	go func() {
		errCh <- f.Encode(context.Background(), "in.mp4", filepath.Join(t.TempDir(), "out.mp4"))
	}()

	time.Sleep(200 * time.Millisecond)
	f.Shutdown()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Encode() returned nil after its process was killed")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Encode did not return after Shutdown")
	}
}

func TestShutdownWithNoProcesses(t *testing.T) {
	f := New(time.Minute, 1)

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Shutdown() with no processes panicked: %v", r)
		}
	}()

	f.Shutdown()
}

// Integration test below requires a real ffmpeg binary.

func TestEncodeIntegration(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping integration test")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")

	gen := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "testsrc=duration=1:size=64x48:rate=10",
		"-pix_fmt", "yuv420p", src)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("could not generate test clip: %v (%s)", err, out)
	}

	dst := filepath.Join(dir, "out.mp4")
	f := New(time.Minute, 1)

	if err := f.Encode(context.Background(), src, dst); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("Output not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("Output is empty")
	}
}
