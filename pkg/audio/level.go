package audio

import "math"

// SilenceFloorDB is the decibel value reported for near-digital-silence
// signal, standing in for -inf when the RMS is effectively zero.
const SilenceFloorDB = -96.0

// fullScale is the normalisation divisor for int16 PCM.
const fullScale = 32768.0

// RMS computes the root-mean-square amplitude of the samples, normalised to
// [0, 1] full scale. Returns 0 for an empty slice.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / fullScale
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// WindowLevelDB returns the level of one interleaved analysis window in
// dBFS: the per-channel RMS is computed separately and the loudest channel
// wins, so a recording with one hot and one dead channel is not judged
// half-silent.
func WindowLevelDB(samples []int16, channels int) float64 {
	if channels <= 1 {
		return DB(RMS(samples))
	}

	frames := len(samples) / channels
	if frames == 0 {
		return SilenceFloorDB
	}

	maxRMS := 0.0
	for ch := range channels {
		var sum float64
		for i := range frames {
			v := float64(samples[i*channels+ch]) / fullScale
			sum += v * v
		}
		rms := math.Sqrt(sum / float64(frames))
		if rms > maxRMS {
			maxRMS = rms
		}
	}
	return DB(maxRMS)
}

// DB converts a normalised RMS amplitude to decibels relative to full scale,
// floored at [SilenceFloorDB] to avoid -inf on digital silence.
func DB(rms float64) float64 {
	if rms < 1e-10 {
		return SilenceFloorDB
	}
	db := 20 * math.Log10(rms)
	if db < SilenceFloorDB {
		return SilenceFloorDB
	}
	return db
}

// FadeIn applies a linear gain ramp from 0 to 1 over the first fadeFrames
// frames of the interleaved buffer, in place. Values beyond the buffer
// length are clamped.
func FadeIn(samples []int16, channels, fadeFrames int) {
	frames := len(samples) / channels
	if fadeFrames > frames {
		fadeFrames = frames
	}
	for i := range fadeFrames {
		gain := float64(i) / float64(fadeFrames)
		for ch := range channels {
			idx := i*channels + ch
			samples[idx] = int16(float64(samples[idx]) * gain)
		}
	}
}

// FadeOut applies a linear gain ramp from 1 to 0 over the last fadeFrames
// frames of the interleaved buffer, in place.
func FadeOut(samples []int16, channels, fadeFrames int) {
	frames := len(samples) / channels
	if fadeFrames > frames {
		fadeFrames = frames
	}
	start := frames - fadeFrames
	for i := range fadeFrames {
		gain := 1 - float64(i+1)/float64(fadeFrames)
		for ch := range channels {
			idx := (start+i)*channels + ch
			samples[idx] = int16(float64(samples[idx]) * gain)
		}
	}
}
