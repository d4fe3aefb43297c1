// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package leaf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// 🎬 MediaProfile holds the ffmpeg arguments placed between input and output
type MediaProfile []string

var (
	ProfileMP4ToMP3  = MediaProfile{"-vn", "-codec:a", "libmp3lame", "-q:a", "2"}
	ProfileMP3ToWAV  = MediaProfile{}
	ProfileWAVToMP3  = MediaProfile{"-codec:a", "libmp3lame", "-q:a", "2"}
	ProfileMP4ToGIF  = MediaProfile{"-vf", "fps=10,scale=480:-1:flags=lanczos", "-loop", "0"}
	ProfileGIFToMP4  = MediaProfile{"-movflags", "faststart", "-pix_fmt", "yuv420p", "-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2"}
	ProfileAVIToMP4  = MediaProfile{"-c:v", "libx264", "-c:a", "aac"}
	ProfileMP4ToAVI  = MediaProfile{"-c:v", "mpeg4", "-q:v", "5", "-c:a", "libmp3lame"}
	ProfileFLACToMP3 = MediaProfile{"-codec:a", "libmp3lame", "-q:a", "2"}
	ProfileMP3ToFLAC = MediaProfile{"-codec:a", "flac"}
	ProfileAACToMP3  = MediaProfile{"-codec:a", "libmp3lame", "-q:a", "2"}
	ProfileMP3ToAAC  = MediaProfile{"-codec:a", "aac", "-b:a", "192k"}
)

// ffmpeg runs `ffmpeg -y -i in [args...] out`
func (t *Toolchain) ffmpeg(ctx context.Context, in, out string, args ...string) error {
	if err := ensureParent(out); err != nil {
		return err
	}
	full := []string{"-y", "-i", in}
	full = append(full, args...)
	full = append(full, out)
	return t.run(ctx, t.tools.FFmpeg, full...)
}

// TranscodeMedia re-encodes audio/video with a fixed profile
func (t *Toolchain) TranscodeMedia(ctx context.Context, in, out string, profile MediaProfile) error {
	return t.ffmpeg(ctx, in, out, profile...)
}

// Trim cuts [start, end] seconds without re-encoding; used for both video and audio
func (t *Toolchain) Trim(ctx context.Context, in, out string, start, end float64) error {
	if end <= start {
		return errors.Errorf("end time %g must be after start time %g", end, start)
	}
	return t.ffmpeg(ctx, in, out, "-ss", formatFloat(start), "-to", formatFloat(end), "-c", "copy")
}

func (t *Toolchain) RemoveSound(ctx context.Context, in, out string) error {
	return t.ffmpeg(ctx, in, out, "-an", "-c:v", "copy")
}

// Concat joins media files in order using the concat demuxer
func (t *Toolchain) Concat(ctx context.Context, ins []string, out string) error {
	if len(ins) == 0 {
		return errors.New("no input files to merge")
	}
	if err := ensureParent(out); err != nil {
		return err
	}

	list, err := os.CreateTemp("", "convrt-concat-*.txt")
	if err != nil {
		return errors.Errorf("creating concat list: %w", err)
	}
	defer os.Remove(list.Name())

	for _, in := range ins {
		abs, err := filepath.Abs(in)
		if err != nil {
			list.Close()
			return errors.Errorf("resolving %s: %w", in, err)
		}
		if _, err := fmt.Fprintf(list, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`)); err != nil {
			list.Close()
			return errors.Errorf("writing concat list: %w", err)
		}
	}
	if err := list.Close(); err != nil {
		return errors.Errorf("closing concat list: %w", err)
	}

	return t.run(ctx, t.tools.FFmpeg, "-y", "-f", "concat", "-safe", "0", "-i", list.Name(), "-c", "copy", out)
}

// AddAudio replaces the audio track of a video
func (t *Toolchain) AddAudio(ctx context.Context, in, audio, out string) error {
	if err := ensureParent(out); err != nil {
		return err
	}
	return t.run(ctx, t.tools.FFmpeg,
		"-y", "-i", in, "-i", audio,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "copy", "-shortest",
		out,
	)
}

func (t *Toolchain) ChangeResolution(ctx context.Context, in, out string, width, height int) error {
	return t.ffmpeg(ctx, in, out, "-vf", fmt.Sprintf("scale=%d:%d", width, height), "-c:a", "copy")
}

// AddSubtitles burns an SRT file into the video
func (t *Toolchain) AddSubtitles(ctx context.Context, in, srt, out string) error {
	escaped := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`).Replace(srt)
	return t.ffmpeg(ctx, in, out, "-vf", "subtitles="+escaped)
}

// ExtractFrames writes PNG frames into outDir, either one per listed time or at a fixed rate
func (t *Toolchain) ExtractFrames(ctx context.Context, in, outDir string, times []float64, fps float64) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Errorf("creating output directory: %w", err)
	}

	if len(times) > 0 {
		for i, ts := range times {
			frame := filepath.Join(outDir, fmt.Sprintf("frame_%03d.png", i+1))
			if err := t.run(ctx, t.tools.FFmpeg, "-y", "-ss", formatFloat(ts), "-i", in, "-frames:v", "1", frame); err != nil {
				return errors.Errorf("extracting frame at %gs: %w", ts, err)
			}
		}
		return nil
	}

	if fps <= 0 {
		fps = 1
	}
	return t.run(ctx, t.tools.FFmpeg, "-y", "-i", in, "-vf", "fps="+formatFloat(fps), filepath.Join(outDir, "frame_%04d.png"))
}

func (t *Toolchain) RemoveNoise(ctx context.Context, in, out string, amount int) error {
	return t.ffmpeg(ctx, in, out, "-af", fmt.Sprintf("afftdn=nr=%d", amount))
}

// ChangeSpeed retimes audio; atempo only accepts [0.5, 2] so larger factors are chained
func (t *Toolchain) ChangeSpeed(ctx context.Context, in, out string, factor float64) error {
	if factor <= 0 {
		return errors.Errorf("speed factor must be positive, got %g", factor)
	}
	return t.ffmpeg(ctx, in, out, "-filter:a", atempoChain(factor))
}

func atempoChain(factor float64) string {
	var parts []string
	for factor > 2 {
		parts = append(parts, "atempo=2.0")
		factor /= 2
	}
	for factor < 0.5 {
		parts = append(parts, "atempo=0.5")
		factor /= 0.5
	}
	parts = append(parts, "atempo="+formatFloat(factor))
	return strings.Join(parts, ",")
}

func (t *Toolchain) ExtractAudio(ctx context.Context, in, out string) error {
	return t.ffmpeg(ctx, in, out, "-vn", "-codec:a", "libmp3lame", "-q:a", "2")
}
