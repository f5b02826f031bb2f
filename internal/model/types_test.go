package model

import "testing"

func TestParseTargetFormat(t *testing.T) {
	cases := []struct {
		in   string
		want TargetFormat
	}{
		{"", FormatVideo},
		{"video", FormatVideo},
		{"MP4", FormatVideo},
		{"mp3", FormatMP3},
		{" audio_ac3 ", FormatAC3},
	}
	for _, tc := range cases {
		got, err := ParseTargetFormat(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q: got %q want %q", tc.in, got, tc.want)
		}
	}
	if _, err := ParseTargetFormat("flac"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestTargetFormatExtension(t *testing.T) {
	if got := FormatVideo.Extension(); got != "mp4" {
		t.Fatalf("video extension: got %q", got)
	}
	if got := FormatMP3.Extension(); got != "mp3" {
		t.Fatalf("mp3 extension: got %q", got)
	}
	if got := FormatAC3.Extension(); got != "ac3" {
		t.Fatalf("ac3 extension: got %q", got)
	}
}

func TestBuildJobsDropsHardwareAccelForAudio(t *testing.T) {
	specs := BuildJobs([]string{"/a/one.mkv", "/a/two.avi"}, FormatMP3, true)
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	for _, s := range specs {
		if s.HardwareAccel {
			t.Fatalf("audio spec must not request hardware accel: %+v", s)
		}
	}
	if specs[1].Filename() != "two.avi" {
		t.Fatalf("unexpected filename %q", specs[1].Filename())
	}

	video := BuildJobs([]string{"/a/one.mkv"}, FormatVideo, true)
	if !video[0].HardwareAccel {
		t.Fatalf("video spec should keep hardware accel")
	}
}
