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

package operation

import (
	"context"

	"github.com/walteh/convrt/pkg/leaf"
	"gitlab.com/tozd/go/errors"
)

// single unwraps the lone input of a one-to-one leaf
func single(inputs []string) (string, error) {
	if len(inputs) != 1 {
		return "", errors.Errorf("expected exactly one input, got %d", len(inputs))
	}
	return inputs[0], nil
}

type simpleFunc func(ctx context.Context, in, out string) error

// oneToOne adapts a leaf that takes no options
func oneToOne(fn simpleFunc) Leaf {
	return func(ctx context.Context, inputs []string, output string, _ OptionBag) error {
		in, err := single(inputs)
		if err != nil {
			return err
		}
		return fn(ctx, in, output)
	}
}

// withOptions adapts a one-to-one leaf that reads its positional args from the bag
func withOptions(fn func(ctx context.Context, in, out string, opts OptionBag) error) Leaf {
	return func(ctx context.Context, inputs []string, output string, opts OptionBag) error {
		in, err := single(inputs)
		if err != nil {
			return err
		}
		return fn(ctx, in, output, opts)
	}
}

func transcode(tc *leaf.Toolchain, profile leaf.MediaProfile) Leaf {
	return oneToOne(func(ctx context.Context, in, out string) error {
		return tc.TranscodeMedia(ctx, in, out, profile)
	})
}

func manyToOne(fn func(ctx context.Context, ins []string, out string) error) Leaf {
	return func(ctx context.Context, inputs []string, output string, _ OptionBag) error {
		if len(inputs) == 0 {
			return errors.New("no inputs given")
		}
		return fn(ctx, inputs, output)
	}
}

var trimOptions = []OptionSpec{
	{Key: "start_time", Kind: KindNumber, Required: true},
	{Key: "end_time", Kind: KindNumber, Required: true},
}

// 📚 DefaultTable binds every operation id to its leaf on the given toolchain
func DefaultTable(tc *leaf.Toolchain) []Spec {
	trim := withOptions(func(ctx context.Context, in, out string, o OptionBag) error {
		return tc.Trim(ctx, in, out, o.Float("start_time"), o.Float("end_time"))
	})

	return []Spec{
		// documents
		{ID: WordToPDF, Leaf: oneToOne(tc.WordToPDF), Extension: ".pdf"},
		{ID: PDFToWord, Leaf: oneToOne(tc.PDFToWord), Extension: ".docx"},
		{ID: ExcelToPDF, Leaf: oneToOne(tc.ExcelToPDF), Extension: ".pdf"},
		{ID: PDFToExcel, Leaf: oneToOne(tc.PDFToExcel), Extension: ".xlsx"},
		{ID: ExcelToWord, Leaf: oneToOne(tc.ExcelToWord), Extension: ".docx"},
		{ID: WordToExcel, Leaf: oneToOne(tc.WordToExcel), Extension: ".xlsx"},
		{ID: TxtToWord, Leaf: oneToOne(tc.TextToWord), Extension: ".docx"},
		{ID: WordToTxt, Leaf: oneToOne(tc.WordToText), Extension: ".txt"},
		{ID: CSVToExcel, Leaf: oneToOne(tc.CSVToExcel), Extension: ".xlsx"},
		{ID: ExcelToCSV, Leaf: oneToOne(tc.ExcelToCSV), Extension: ".csv"},
		{ID: PDFToHTML, Leaf: oneToOne(tc.PDFToHTML), Extension: ".html"},
		{ID: PDFToMD, Leaf: oneToOne(tc.PDFToMarkdown), Extension: ".md"},

		// images
		{ID: JPEGToPNG, Leaf: oneToOne(tc.ConvertImage), Extension: ".png"},
		{ID: PNGToJPEG, Leaf: oneToOne(tc.PNGToJPEG), Extension: ".jpg"},
		{ID: JPEGToBMP, Leaf: oneToOne(tc.ConvertImage), Extension: ".bmp"},
		{ID: BMPToPNG, Leaf: oneToOne(tc.ConvertImage), Extension: ".png"},
		{ID: PNGToWebP, Leaf: oneToOne(tc.ConvertImage), Extension: ".webp"},
		{ID: WebPToPNG, Leaf: oneToOne(tc.ConvertImage), Extension: ".png"},
		{ID: PDFToImages, Leaf: oneToOne(tc.PDFToImages), Output: OutputDirectory},
		{ID: ImagesToPDF, Leaf: manyToOne(tc.ImagesToPDF), Extension: ".pdf", ManyToOne: true},

		// media
		{ID: MP4ToMP3, Leaf: transcode(tc, leaf.ProfileMP4ToMP3), Extension: ".mp3"},
		{ID: MP3ToWAV, Leaf: transcode(tc, leaf.ProfileMP3ToWAV), Extension: ".wav"},
		{ID: WAVToMP3, Leaf: transcode(tc, leaf.ProfileWAVToMP3), Extension: ".mp3"},
		{ID: MP4ToGIF, Leaf: transcode(tc, leaf.ProfileMP4ToGIF), Extension: ".gif"},
		{ID: GIFToMP4, Leaf: transcode(tc, leaf.ProfileGIFToMP4), Extension: ".mp4"},
		{ID: AVIToMP4, Leaf: transcode(tc, leaf.ProfileAVIToMP4), Extension: ".mp4"},
		{ID: MP4ToAVI, Leaf: transcode(tc, leaf.ProfileMP4ToAVI), Extension: ".avi"},
		{ID: FLACToMP3, Leaf: transcode(tc, leaf.ProfileFLACToMP3), Extension: ".mp3"},
		{ID: MP3ToFLAC, Leaf: transcode(tc, leaf.ProfileMP3ToFLAC), Extension: ".flac"},
		{ID: AACToMP3, Leaf: transcode(tc, leaf.ProfileAACToMP3), Extension: ".mp3"},
		{ID: MP3ToAAC, Leaf: transcode(tc, leaf.ProfileMP3ToAAC), Extension: ".aac"},

		// data and markup
		{ID: JSONToCSV, Leaf: oneToOne(tc.JSONToCSV), Extension: ".csv"},
		{ID: CSVToJSON, Leaf: oneToOne(tc.CSVToJSON), Extension: ".json"},
		{ID: YAMLToJSON, Leaf: oneToOne(tc.YAMLToJSON), Extension: ".json"},
		{ID: JSONToYAML, Leaf: oneToOne(tc.JSONToYAML), Extension: ".yaml"},
		{ID: XMLToJSON, Leaf: oneToOne(tc.XMLToJSON), Extension: ".json"},
		{ID: JSONToXML, Leaf: oneToOne(tc.JSONToXML), Extension: ".xml"},
		{ID: HTMLToMarkdown, Leaf: oneToOne(tc.HTMLToMarkdown), Extension: ".md"},
		{ID: MarkdownToHTML, Leaf: oneToOne(tc.MarkdownToHTML), Extension: ".html"},

		// video edits
		{ID: TrimVideo, Leaf: trim, Options: trimOptions, Output: OutputSameExtension},
		{ID: RemoveSound, Leaf: oneToOne(tc.RemoveSound), Output: OutputSameExtension},
		{ID: MergeVideos, Leaf: manyToOne(tc.Concat), Extension: ".mp4", ManyToOne: true},
		{
			ID: AddAudio,
			Leaf: withOptions(func(ctx context.Context, in, out string, o OptionBag) error {
				return tc.AddAudio(ctx, in, o.String("audio_path"), out)
			}),
			Options: []OptionSpec{{Key: "audio_path", Kind: KindPath, Required: true}},
			Output:  OutputSameExtension,
		},
		{
			ID: ChangeResolution,
			Leaf: withOptions(func(ctx context.Context, in, out string, o OptionBag) error {
				p := o.Pair("new_resolution")
				return tc.ChangeResolution(ctx, in, out, p[0], p[1])
			}),
			Options: []OptionSpec{{Key: "new_resolution", Kind: KindPair, Sep: "x", Required: true}},
			Output:  OutputSameExtension,
		},
		{
			ID: AddSubtitles,
			Leaf: withOptions(func(ctx context.Context, in, out string, o OptionBag) error {
				return tc.AddSubtitles(ctx, in, o.String("srt_path"), out)
			}),
			Options: []OptionSpec{{Key: "srt_path", Kind: KindPath, Required: true}},
			Output:  OutputSameExtension,
		},
		{
			ID: ExtractFrames,
			Leaf: withOptions(func(ctx context.Context, in, out string, o OptionBag) error {
				return tc.ExtractFrames(ctx, in, out, o.Floats("frame_times"), o.Float("fps"))
			}),
			Options: []OptionSpec{
				{Key: "frame_times", Kind: KindNumberList},
				{Key: "fps", Kind: KindNumber},
			},
			Output: OutputDirectory,
		},

		// audio edits
		{ID: TrimAudio, Leaf: trim, Options: trimOptions, Output: OutputSameExtension},
		{
			ID: RemoveNoise,
			Leaf: withOptions(func(ctx context.Context, in, out string, o OptionBag) error {
				return tc.RemoveNoise(ctx, in, out, o.Int("noise_reduction_amount"))
			}),
			Options: []OptionSpec{{Key: "noise_reduction_amount", Kind: KindInteger, Required: true}},
			Output:  OutputSameExtension,
		},
		{
			ID: ChangeSpeed,
			Leaf: withOptions(func(ctx context.Context, in, out string, o OptionBag) error {
				return tc.ChangeSpeed(ctx, in, out, o.Float("speed_factor"))
			}),
			Options: []OptionSpec{{Key: "speed_factor", Kind: KindNumber, Required: true}},
			Output:  OutputSameExtension,
		},
		{ID: MergeAudioFiles, Leaf: manyToOne(tc.Concat), Extension: ".mp3", ManyToOne: true},
		{ID: ExtractAudioFromVideo, Leaf: oneToOne(tc.ExtractAudio), Extension: ".mp3"},

		// image edits
		{
			ID: ResizeImage,
			Leaf: withOptions(func(ctx context.Context, in, out string, o OptionBag) error {
				p := o.Pair("size")
				return tc.ResizeImage(ctx, in, out, p[0], p[1])
			}),
			Options: []OptionSpec{{Key: "size", Kind: KindPair, Sep: "x", Required: true}},
			Output:  OutputSameExtension,
		},
		{
			ID: CompressImage,
			Leaf: withOptions(func(ctx context.Context, in, out string, o OptionBag) error {
				return tc.CompressImage(ctx, in, out, o.Int("quality"))
			}),
			Options: []OptionSpec{{Key: "quality", Kind: KindInteger, Required: true}},
			Output:  OutputSameExtension,
		},
		{
			ID: RotateImage,
			Leaf: withOptions(func(ctx context.Context, in, out string, o OptionBag) error {
				return tc.RotateImage(ctx, in, out, o.Float("degrees"))
			}),
			Options: []OptionSpec{{Key: "degrees", Kind: KindNumber, Required: true}},
			Output:  OutputSameExtension,
		},
		{
			ID: FlipImage,
			Leaf: withOptions(func(ctx context.Context, in, out string, o OptionBag) error {
				return tc.FlipImage(ctx, in, out, o.String("direction"))
			}),
			Options: []OptionSpec{{Key: "direction", Kind: KindChoice, Choices: []string{"horizontal", "vertical"}, Required: true}},
			Output:  OutputSameExtension,
		},
		{
			ID: AddWatermark,
			Leaf: withOptions(func(ctx context.Context, in, out string, o OptionBag) error {
				pos := o.Pair("position")
				return tc.AddWatermark(ctx, in, out, o.String("watermark_text"), pos[0], pos[1], o.Int("font_size"), o.String("font_path"))
			}),
			Options: []OptionSpec{
				{Key: "watermark_text", Kind: KindString, Required: true},
				{Key: "position", Kind: KindPair, Sep: ",", Required: true},
				{Key: "font_size", Kind: KindInteger, Required: true},
				{Key: "font_path", Kind: KindPath},
			},
			Output: OutputSameExtension,
		},
		{ID: ConvertToGrayscale, Leaf: oneToOne(tc.Grayscale), Output: OutputSameExtension},
	}
}

// 🏭 NewDefaultRegistry builds the registry over the full operation table
func NewDefaultRegistry(tc *leaf.Toolchain) (*Registry, error) {
	return NewRegistry(DefaultTable(tc))
}
