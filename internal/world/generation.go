// Spatial trait fields using layered simplex noise.
// Produces smooth [0,1] values per cell so that nearby households can share
// correlated attitudes when the generator asks for it.
package world

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// FieldConfig holds noise field parameters.
type FieldConfig struct {
	Seed        int64
	Octaves     int     // Number of noise layers
	Frequency   float64 // Base frequency in cycles per cell
	Persistence float64 // Amplitude falloff per octave
}

// DefaultFieldConfig returns settings that give neighborhood-sized blobs on a
// city-scale grid.
func DefaultFieldConfig(seed int64) FieldConfig {
	return FieldConfig{
		Seed:        seed,
		Octaves:     3,
		Frequency:   0.06,
		Persistence: 0.5,
	}
}

// NoiseField samples normalized simplex noise at cell coordinates.
type NoiseField struct {
	cfg   FieldConfig
	noise opensimplex.Noise
}

// NewNoiseField creates a field from cfg.
func NewNoiseField(cfg FieldConfig) *NoiseField {
	if cfg.Octaves <= 0 {
		cfg.Octaves = 1
	}
	return &NoiseField{
		cfg:   cfg,
		noise: opensimplex.NewNormalized(cfg.Seed),
	}
}

// At returns the field value at c, in [0, 1].
func (f *NoiseField) At(c Coord) float64 {
	v := octaveNoise(f.noise, float64(c.X), float64(c.Y), f.cfg.Octaves, f.cfg.Frequency, f.cfg.Persistence)
	return clamp01(v)
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
