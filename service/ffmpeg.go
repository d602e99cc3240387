package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// frameSize is the square dimension frames are resized to for downstream
// analysis.
const frameSize = 224

// audioSampleRate is the fixed sample rate of the extracted mono track.
const audioSampleRate = 16000

func runFFmpeg(ctx context.Context, args []string) error {
	fullArgs := append([]string{"-y", "-hide_banner", "-loglevel", "error"}, args...)
	cmd := exec.CommandContext(ctx, "ffmpeg", fullArgs...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg execution failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// standardizeVideo re-encodes the source to the fixed target profile:
// width capped at 1280 preserving aspect ratio, 30fps, H.264 baseline
// yuv420p at 2000k, faststart, audio track stripped.
func standardizeVideo(ctx context.Context, srcPath, dstPath string) error {
	return runFFmpeg(ctx, []string{
		"-i", srcPath,
		"-vf", "scale='min(1280,iw)':-2",
		"-r", "30",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-profile:v", "baseline",
		"-pix_fmt", "yuv420p",
		"-b:v", "2000k",
		"-movflags", "+faststart",
		"-an",
		dstPath,
	})
}

// extractFrames samples frames from the standardized video at fps, resized
// to frameSize squares, capped at maxFrames. Returns the ordered frame
// paths.
func extractFrames(ctx context.Context, srcPath, framesDir string, fps float64, maxFrames int) ([]string, error) {
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return nil, err
	}
	pattern := filepath.Join(framesDir, "frame_%05d.jpg")
	err := runFFmpeg(ctx, []string{
		"-i", srcPath,
		"-vf", fmt.Sprintf("fps=%s,scale=%d:%d:flags=lanczos", strconv.FormatFloat(fps, 'f', -1, 64), frameSize, frameSize),
		"-frames:v", strconv.Itoa(maxFrames),
		"-q:v", "2",
		pattern,
	})
	if err != nil {
		return nil, err
	}

	frames, err := filepath.Glob(filepath.Join(framesDir, "frame_*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(frames)
	return frames, nil
}

// extractAudio derives a mono fixed-sample-rate WAV track.
func extractAudio(ctx context.Context, srcPath, dstPath string) error {
	return runFFmpeg(ctx, []string{
		"-i", srcPath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(audioSampleRate),
		"-f", "wav",
		dstPath,
	})
}
