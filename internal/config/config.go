package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"mediaconv/internal/discovery"
	"mediaconv/internal/dispatch"
	"mediaconv/internal/ffmpeg"
	"mediaconv/internal/logging"
	"mediaconv/internal/model"
	"mediaconv/internal/runstore"
)

const (
	appDirName     = "mediaconv"
	configFileName = "config.yaml"
	historyFile    = "history.db"
	EnvConfigPath  = "MEDIACONV_CONFIG"
)

type Settings struct {
	// Workers is the default pool size; 0 follows the recommendation for
	// this machine.
	Workers       int           `yaml:"workers" json:"workers"`
	Format        string        `yaml:"format" json:"format"`
	HardwareAccel bool          `yaml:"hardware_accel" json:"hardware_accel"`
	Extensions    []string      `yaml:"extensions" json:"extensions"`
	OutputDirName string        `yaml:"output_dir_name" json:"output_dir_name"`
	Recursive     bool          `yaml:"recursive" json:"recursive"`
	Video         VideoSettings `yaml:"video" json:"video"`
	Audio         AudioSettings `yaml:"audio" json:"audio"`
	LogLevel      string        `yaml:"log_level" json:"log_level"`
	LogDir        string        `yaml:"log_dir,omitempty" json:"log_dir,omitempty"`
	HistoryPath   string        `yaml:"history_path" json:"history_path"`
	NoHistory     bool          `yaml:"no_history,omitempty" json:"no_history,omitempty"`
}

type VideoSettings struct {
	CRF          int    `yaml:"crf" json:"crf"`
	Preset       string `yaml:"preset" json:"preset"`
	AudioBitrate string `yaml:"audio_bitrate" json:"audio_bitrate"`
	HWEncoder    string `yaml:"hw_encoder" json:"hw_encoder"`
	VAAPIDevice  string `yaml:"vaapi_device,omitempty" json:"vaapi_device,omitempty"`
}

type AudioSettings struct {
	MP3Bitrate    string `yaml:"mp3_bitrate" json:"mp3_bitrate"`
	MP3SampleRate int    `yaml:"mp3_sample_rate" json:"mp3_sample_rate"`
	AC3Bitrate    string `yaml:"ac3_bitrate" json:"ac3_bitrate"`
	AC3SampleRate int    `yaml:"ac3_sample_rate" json:"ac3_sample_rate"`
}

func Default() Settings {
	enc := ffmpeg.DefaultEncoding()
	return Settings{
		Workers:       0,
		Format:        string(model.FormatVideo),
		Extensions:    append([]string(nil), discovery.DefaultExtensions...),
		OutputDirName: ffmpeg.DefaultOutputDirName,
		Video: VideoSettings{
			CRF:          enc.CRF,
			Preset:       enc.Preset,
			AudioBitrate: enc.VideoAudioBitrate,
			HWEncoder:    enc.HWEncoder,
			VAAPIDevice:  enc.VAAPIDevice,
		},
		Audio: AudioSettings{
			MP3Bitrate:    enc.MP3Bitrate,
			MP3SampleRate: enc.MP3SampleRate,
			AC3Bitrate:    enc.AC3Bitrate,
			AC3SampleRate: enc.AC3SampleRate,
		},
		LogLevel:    logging.DefaultLevel,
		HistoryPath: DefaultHistoryPath(),
	}
}

// Normalize fills missing values from Default and canonicalises names.
func Normalize(raw Settings) Settings {
	def := Default()
	s := raw
	if s.Workers < 0 {
		s.Workers = 0
	}
	if f, err := model.ParseTargetFormat(s.Format); err == nil {
		s.Format = string(f)
	} else {
		s.Format = def.Format
	}
	s.Extensions = discovery.NormalizeExtensions(s.Extensions)
	s.OutputDirName = strings.TrimSpace(s.OutputDirName)
	if s.OutputDirName == "" || strings.ContainsAny(s.OutputDirName, `/\`) {
		s.OutputDirName = def.OutputDirName
	}
	enc := s.Encoding()
	s.Video.CRF = enc.CRF
	s.Video.Preset = enc.Preset
	s.Video.AudioBitrate = enc.VideoAudioBitrate
	s.Video.HWEncoder = enc.HWEncoder
	s.Video.VAAPIDevice = enc.VAAPIDevice
	s.Audio.MP3Bitrate = enc.MP3Bitrate
	s.Audio.MP3SampleRate = enc.MP3SampleRate
	s.Audio.AC3Bitrate = enc.AC3Bitrate
	s.Audio.AC3SampleRate = enc.AC3SampleRate
	if !logging.ValidLevel(s.LogLevel) {
		s.LogLevel = def.LogLevel
	} else {
		s.LogLevel = strings.ToLower(strings.TrimSpace(s.LogLevel))
	}
	s.HistoryPath = strings.TrimSpace(s.HistoryPath)
	if s.HistoryPath == "" {
		s.HistoryPath = def.HistoryPath
	}
	s.LogDir = strings.TrimSpace(s.LogDir)
	return s
}

func (s Settings) Encoding() ffmpeg.Encoding {
	return ffmpeg.Encoding{
		CRF:               s.Video.CRF,
		Preset:            s.Video.Preset,
		VideoAudioBitrate: s.Video.AudioBitrate,
		HWEncoder:         s.Video.HWEncoder,
		VAAPIDevice:       s.Video.VAAPIDevice,
		MP3Bitrate:        s.Audio.MP3Bitrate,
		MP3SampleRate:     s.Audio.MP3SampleRate,
		AC3Bitrate:        s.Audio.AC3Bitrate,
		AC3SampleRate:     s.Audio.AC3SampleRate,
	}.Normalize()
}

func (s Settings) TargetFormat() model.TargetFormat {
	f, err := model.ParseTargetFormat(s.Format)
	if err != nil {
		return model.FormatVideo
	}
	return f
}

// ResolvePath picks the settings file: explicit flag, then
// $MEDIACONV_CONFIG, then the user config directory.
func ResolvePath(flagPath string) string {
	if p := strings.TrimSpace(flagPath); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultPath()
}

func DefaultPath() string {
	return filepath.Join(userDir("XDG_CONFIG_HOME", ".config"), appDirName, configFileName)
}

func DefaultHistoryPath() string {
	return filepath.Join(userDir("XDG_DATA_HOME", filepath.Join(".local", "share")), appDirName, historyFile)
}

func userDir(env, homeRel string) string {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, homeRel)
}

// Load reads the settings file. A missing file yields defaults.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Settings{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return Normalize(s), nil
}

func Save(path string, s Settings) (Settings, error) {
	norm := Normalize(s)
	data, err := yaml.Marshal(norm)
	if err != nil {
		return Settings{}, fmt.Errorf("encode config: %w", err)
	}
	if err := runstore.WriteBytes(path, data); err != nil {
		return Settings{}, err
	}
	return norm, nil
}

// WorkerSource records which layer decided the pool size.
type WorkerSource string

const (
	WorkersFromFlag        WorkerSource = "flag"
	WorkersFromConfig      WorkerSource = "config"
	WorkersFromRecommended WorkerSource = "recommended"
)

// ResolveWorkers applies flag > config > recommendation and clamps any user
// supplied value into the allowed range.
func ResolveWorkers(override int, s Settings, units int) (int, WorkerSource) {
	if override > 0 {
		return dispatch.ClampWorkers(override), WorkersFromFlag
	}
	if s.Workers > 0 {
		return dispatch.ClampWorkers(s.Workers), WorkersFromConfig
	}
	return dispatch.RecommendedWorkers(units), WorkersFromRecommended
}
