package ffmpeg

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"mediaconv/internal/model"
)

const DefaultOutputDirName = "converted"

const (
	EncoderNVENC        = "h264_nvenc"
	EncoderQSV          = "h264_qsv"
	EncoderVAAPI        = "h264_vaapi"
	EncoderVideoToolbox = "h264_videotoolbox"
)

func HardwareEncoders() []string {
	return []string{EncoderNVENC, EncoderQSV, EncoderVAAPI, EncoderVideoToolbox}
}

// Encoding holds the quality knobs for each target format.
type Encoding struct {
	CRF               int    `json:"crf"`
	Preset            string `json:"preset"`
	VideoAudioBitrate string `json:"video_audio_bitrate"`
	HWEncoder         string `json:"hw_encoder"`
	VAAPIDevice       string `json:"vaapi_device,omitempty"`
	MP3Bitrate        string `json:"mp3_bitrate"`
	MP3SampleRate     int    `json:"mp3_sample_rate"`
	AC3Bitrate        string `json:"ac3_bitrate"`
	AC3SampleRate     int    `json:"ac3_sample_rate"`
}

func DefaultEncoding() Encoding {
	return Encoding{
		CRF:               18,
		Preset:            "medium",
		VideoAudioBitrate: "192k",
		HWEncoder:         EncoderNVENC,
		VAAPIDevice:       "/dev/dri/renderD128",
		MP3Bitrate:        "192k",
		MP3SampleRate:     44100,
		AC3Bitrate:        "448k",
		AC3SampleRate:     48000,
	}
}

// Normalize fills zero values from DefaultEncoding.
func (e Encoding) Normalize() Encoding {
	def := DefaultEncoding()
	if e.CRF <= 0 || e.CRF > 51 {
		e.CRF = def.CRF
	}
	if strings.TrimSpace(e.Preset) == "" {
		e.Preset = def.Preset
	}
	if strings.TrimSpace(e.VideoAudioBitrate) == "" {
		e.VideoAudioBitrate = def.VideoAudioBitrate
	}
	if strings.TrimSpace(e.HWEncoder) == "" {
		e.HWEncoder = def.HWEncoder
	}
	if strings.TrimSpace(e.VAAPIDevice) == "" {
		e.VAAPIDevice = def.VAAPIDevice
	}
	if strings.TrimSpace(e.MP3Bitrate) == "" {
		e.MP3Bitrate = def.MP3Bitrate
	}
	if e.MP3SampleRate <= 0 {
		e.MP3SampleRate = def.MP3SampleRate
	}
	if strings.TrimSpace(e.AC3Bitrate) == "" {
		e.AC3Bitrate = def.AC3Bitrate
	}
	if e.AC3SampleRate <= 0 {
		e.AC3SampleRate = def.AC3SampleRate
	}
	return e
}

// OutputPath places the converted file in a sibling directory named dirName,
// keeping the input stem.
func OutputPath(inputPath, dirName string, format model.TargetFormat) string {
	if strings.TrimSpace(dirName) == "" {
		dirName = DefaultOutputDirName
	}
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(inputPath), dirName, stem+"."+format.Extension())
}

// PlanOutputPaths assigns every job its own output file, keyed by input
// path. Inputs sharing a stem in one folder (clip.mkv, clip.avi) keep their
// full base name instead (clip.mkv.mp4, clip.avi.mp4); any remaining clash
// gets a numeric suffix.
func PlanOutputPaths(specs []model.JobSpec, dirName string) map[string]string {
	plain := make([]string, len(specs))
	uses := make(map[string]int, len(specs))
	for i, s := range specs {
		plain[i] = OutputPath(s.InputPath, dirName, s.Format)
		uses[outputKey(plain[i])]++
	}

	out := make(map[string]string, len(specs))
	taken := make(map[string]bool, len(specs))
	for i, s := range specs {
		if uses[outputKey(plain[i])] == 1 {
			out[s.InputPath] = plain[i]
			taken[outputKey(plain[i])] = true
		}
	}
	for i, s := range specs {
		if _, ok := out[s.InputPath]; ok {
			continue
		}
		dir := filepath.Dir(plain[i])
		stem := filepath.Base(s.InputPath)
		ext := "." + s.Format.Extension()
		candidate := filepath.Join(dir, stem+ext)
		for n := 2; taken[outputKey(candidate)]; n++ {
			candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
		}
		out[s.InputPath] = candidate
		taken[outputKey(candidate)] = true
	}
	return out
}

// outputKey folds case so clip.MP4 and clip.mp4 clash on case-insensitive
// filesystems too.
func outputKey(p string) string {
	return strings.ToLower(filepath.Clean(p))
}

// BuildArgs returns the ffmpeg argument list converting input into output.
// Progress is written as key=value blocks on stdout.
func BuildArgs(input, output string, spec model.JobSpec, enc Encoding) ([]string, error) {
	enc = enc.Normalize()
	args := []string{"-hide_banner", "-nostdin"}

	switch spec.Format {
	case model.FormatVideo:
		if spec.HardwareAccel && enc.HWEncoder == EncoderVAAPI {
			args = append(args, "-vaapi_device", enc.VAAPIDevice)
		}
		args = append(args, "-i", input)
		if spec.HardwareAccel {
			hw, err := hardwareVideoArgs(enc)
			if err != nil {
				return nil, err
			}
			args = append(args, hw...)
		} else {
			args = append(args,
				"-c:v", "libx264",
				"-crf", strconv.Itoa(enc.CRF),
				"-preset", enc.Preset,
			)
		}
		args = append(args,
			"-c:a", "aac",
			"-b:a", enc.VideoAudioBitrate,
			"-movflags", "+faststart",
			"-f", "mp4",
		)
	case model.FormatMP3:
		args = append(args,
			"-i", input,
			"-vn",
			"-acodec", "libmp3lame",
			"-ab", enc.MP3Bitrate,
			"-ar", strconv.Itoa(enc.MP3SampleRate),
			"-f", "mp3",
		)
	case model.FormatAC3:
		args = append(args,
			"-i", input,
			"-vn",
			"-acodec", "ac3",
			"-ab", enc.AC3Bitrate,
			"-ar", strconv.Itoa(enc.AC3SampleRate),
			"-f", "ac3",
		)
	default:
		return nil, fmt.Errorf("unsupported target format %q", spec.Format)
	}

	args = append(args, "-progress", "pipe:1", "-nostats", "-y", output)
	return args, nil
}

func hardwareVideoArgs(enc Encoding) ([]string, error) {
	q := strconv.Itoa(enc.CRF)
	switch enc.HWEncoder {
	case EncoderNVENC:
		return []string{"-c:v", EncoderNVENC, "-preset", "p5", "-rc", "vbr", "-cq", q, "-b:v", "0"}, nil
	case EncoderQSV:
		return []string{"-c:v", EncoderQSV, "-global_quality", q}, nil
	case EncoderVAAPI:
		return []string{"-vf", "format=nv12,hwupload", "-c:v", EncoderVAAPI, "-qp", q}, nil
	case EncoderVideoToolbox:
		return []string{"-c:v", EncoderVideoToolbox, "-q:v", "65"}, nil
	default:
		return nil, fmt.Errorf("unsupported hardware encoder %q (expected one of %s)", enc.HWEncoder, strings.Join(HardwareEncoders(), ", "))
	}
}
