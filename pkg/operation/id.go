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

// 🏷️ ID identifies one transformation
type ID string

func (id ID) String() string {
	return string(id)
}

// Documents
const (
	WordToPDF   ID = "word_to_pdf"
	PDFToWord   ID = "pdf_to_word"
	ExcelToPDF  ID = "excel_to_pdf"
	PDFToExcel  ID = "pdf_to_excel"
	ExcelToWord ID = "excel_to_word"
	WordToExcel ID = "word_to_excel"
	TxtToWord   ID = "txt_to_word"
	WordToTxt   ID = "word_to_txt"
	CSVToExcel  ID = "csv_to_excel"
	ExcelToCSV  ID = "excel_to_csv"
	PDFToHTML   ID = "pdf_to_html"
	PDFToMD     ID = "pdf_to_md"
)

// Images
const (
	JPEGToPNG   ID = "jpeg_to_png"
	PNGToJPEG   ID = "png_to_jpeg"
	JPEGToBMP   ID = "jpeg_to_bmp"
	BMPToPNG    ID = "bmp_to_png"
	PNGToWebP   ID = "png_to_webp"
	WebPToPNG   ID = "webp_to_png"
	PDFToImages ID = "pdf_to_images"
	ImagesToPDF ID = "images_to_pdf"
)

// Media
const (
	MP4ToMP3  ID = "mp4_to_mp3"
	MP3ToWAV  ID = "mp3_to_wav"
	WAVToMP3  ID = "wav_to_mp3"
	MP4ToGIF  ID = "mp4_to_gif"
	GIFToMP4  ID = "gif_to_mp4"
	AVIToMP4  ID = "avi_to_mp4"
	MP4ToAVI  ID = "mp4_to_avi"
	FLACToMP3 ID = "flac_to_mp3"
	MP3ToFLAC ID = "mp3_to_flac"
	AACToMP3  ID = "aac_to_mp3"
	MP3ToAAC  ID = "mp3_to_aac"
)

// Data and markup
const (
	JSONToCSV      ID = "json_to_csv"
	CSVToJSON      ID = "csv_to_json"
	YAMLToJSON     ID = "yaml_to_json"
	JSONToYAML     ID = "json_to_yaml"
	XMLToJSON      ID = "xml_to_json"
	JSONToXML      ID = "json_to_xml"
	HTMLToMarkdown ID = "html_to_markdown"
	MarkdownToHTML ID = "markdown_to_html"
)

// Video edits
const (
	TrimVideo        ID = "trim_video"
	RemoveSound      ID = "remove_sound"
	MergeVideos      ID = "merge_videos"
	AddAudio         ID = "add_audio"
	ChangeResolution ID = "change_resolution"
	AddSubtitles     ID = "add_subtitles"
	ExtractFrames    ID = "extract_frames"
)

// Audio edits
const (
	TrimAudio             ID = "trim_audio"
	RemoveNoise           ID = "remove_noise"
	ChangeSpeed           ID = "change_speed"
	MergeAudioFiles       ID = "merge_audio_files"
	ExtractAudioFromVideo ID = "extract_audio_from_video"
)

// Image edits
const (
	ResizeImage        ID = "resize_image"
	CompressImage      ID = "compress_image"
	RotateImage        ID = "rotate_image"
	FlipImage          ID = "flip_image"
	AddWatermark       ID = "add_watermark"
	ConvertToGrayscale ID = "convert_to_grayscale"
)
