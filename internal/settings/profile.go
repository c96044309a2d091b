package settings

// EncodeProfile is the fully resolved set of encode parameters a job runs
// with. It is a value type; the pipeline captures it at admission so later
// settings edits don't affect a running job.
type EncodeProfile struct {
	Codec         string
	SpeedPreset   string
	Profile       string
	Level         string
	QualityQP     int
	ScaleHeight   int
	FPS           int
	AudioBitrate  string
	HardwareAccel bool
}

// IsHardware reports whether the profile targets a GPU encoder.
func (p EncodeProfile) IsHardware() bool {
	return isHardwareCodec(p.Codec)
}

// profileFromCustom builds a profile from the custom_compression base.
func profileFromCustom(c CompressionSettings) EncodeProfile {
	return EncodeProfile{
		Codec:         c.Codec,
		SpeedPreset:   c.SpeedPreset,
		Profile:       c.Profile,
		Level:         c.Level,
		QualityQP:     c.QualityQP,
		ScaleHeight:   c.ScaleHeight,
		FPS:           c.FPS,
		AudioBitrate:  c.AudioBitrate,
		HardwareAccel: c.HardwareAccel && isHardwareCodec(c.Codec),
	}
}

// overlayPreset applies a preset over the custom_compression base. The
// preset's codec, speed preset, quality and scale win; profile, level, fps
// and audio bitrate come from the base.
func overlayPreset(base CompressionSettings, p Preset) EncodeProfile {
	return EncodeProfile{
		Codec:         p.Codec,
		SpeedPreset:   p.SpeedPreset,
		Profile:       base.Profile,
		Level:         base.Level,
		QualityQP:     p.QualityQP,
		ScaleHeight:   p.ScaleHeight,
		FPS:           base.FPS,
		AudioBitrate:  base.AudioBitrate,
		HardwareAccel: isHardwareCodec(p.Codec),
	}
}
