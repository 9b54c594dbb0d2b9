package hass

// Feature is a bit in the supported_features bitmask of a media player.
type Feature uint32

// Media player feature bits.
const (
	FeaturePause           Feature = 1
	FeatureSeek            Feature = 2
	FeatureVolumeSet       Feature = 4
	FeatureVolumeMute      Feature = 8
	FeaturePreviousTrack   Feature = 16
	FeatureNextTrack       Feature = 32
	FeatureTurnOn          Feature = 128
	FeatureTurnOff         Feature = 256
	FeaturePlayMedia       Feature = 512
	FeatureVolumeStep      Feature = 1024
	FeatureSelectSource    Feature = 2048
	FeatureStop            Feature = 4096
	FeatureClearPlaylist   Feature = 8192
	FeaturePlay            Feature = 16384
	FeatureShuffleSet      Feature = 32768
	FeatureSelectSoundMode Feature = 65536
	FeatureBrowseMedia     Feature = 131072
	FeatureRepeatSet       Feature = 262144
	FeatureGrouping        Feature = 524288
)

// Has reports whether every bit of f is set.
func (s Feature) Has(f Feature) bool {
	return s&f == f
}

// With returns s with the bits of f set.
func (s Feature) With(f Feature) Feature {
	return s | f
}
