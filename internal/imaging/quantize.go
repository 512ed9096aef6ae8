package imaging

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/muesli/clusters"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Pixel-count tier boundaries.
const (
	LargeImagePixels  = 10000
	MediumImagePixels = 2500
)

const (
	// DefaultColors is the centroid count used for large images.
	DefaultColors = 32

	// DefaultSeed seeds centroid initialization when none is given.
	DefaultSeed uint64 = 42

	maxClusterSamples = 12000
	maxIterations     = 24
	smoothingRadius   = 2
)

// Tier identifies which quantization policy was applied.
type Tier string

const (
	TierLarge  Tier = "large"
	TierMedium Tier = "medium"
	TierSmall  Tier = "small"
)

// QuantizeOptions controls color reduction.
type QuantizeOptions struct {
	// Colors is the centroid count for large images. Medium images use three
	// quarters of it. Zero means DefaultColors.
	Colors int

	// Seed drives centroid initialization. Equal seeds give equal output.
	Seed uint64
}

// QuantizeResult is the reduced image plus a description of what was done.
type QuantizeResult struct {
	Image     *image.NRGBA
	Tier      Tier
	Centroids int
}

// TierFor returns the policy tier and centroid count for an image with the
// given pixel count.
func TierFor(pixels, colors int) (Tier, int) {
	if colors <= 0 {
		colors = DefaultColors
	}
	switch {
	case pixels > LargeImagePixels:
		return TierLarge, colors
	case pixels > MediumImagePixels:
		return TierMedium, max(1, int(math.Round(float64(colors)*0.75)))
	default:
		return TierSmall, 0
	}
}

// Quantize bounds the number of distinct colors in img.
//
// Large images (more than LargeImagePixels) are clustered into opts.Colors
// centroids and medium images (more than MediumImagePixels) into three
// quarters of that; every pixel is replaced by its centroid's color. Small
// images skip clustering: an edge-preserving median filter is followed by a
// 3x3 sharpening convolution.
//
// Clustering is deterministic for a given image, color count and seed.
func Quantize(img *image.NRGBA, opts QuantizeOptions) *QuantizeResult {
	b := img.Bounds()
	tier, k := TierFor(b.Dx()*b.Dy(), opts.Colors)

	if tier == TierSmall {
		return &QuantizeResult{Image: smoothAndSharpen(img), Tier: tier}
	}

	out, centroids := kmeansQuantize(img, k, opts.Seed)
	return &QuantizeResult{Image: out, Tier: tier, Centroids: centroids}
}

// smoothAndSharpen applies a median filter then a sharpening kernel whose
// weights sum to one, so flat regions keep their color.
func smoothAndSharpen(img *image.NRGBA) *image.NRGBA {
	smoothed := effect.Median(img, smoothingRadius)

	kernel := convolution.Kernel{
		Matrix: []float64{
			-1, -1, -1,
			-1, 9, -1,
			-1, -1, -1,
		},
		Width:  3,
		Height: 3,
	}
	sharpened := convolution.Convolve(smoothed, &kernel, &convolution.Options{Bias: 0, Wrap: false, KeepAlpha: true})

	return imaging.Clone(sharpened)
}

// kmeansQuantize clusters a strided sample of the pixels and maps every
// pixel to its nearest centroid. It returns the new image and the number of
// distinct output colors.
func kmeansQuantize(img *image.NRGBA, k int, seed uint64) (*image.NRGBA, int) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	if distinct, ok := distinctWithin(img, k); ok {
		return imaging.Clone(img), distinct
	}

	sample := samplePixels(img, maxClusterSamples)
	cc := seedClusters(sample, k, seed)
	assign := make([]int, len(sample))
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < maxIterations; iter++ {
		cc.Reset()
		changed := false
		for i, obs := range sample {
			ci := cc.Nearest(obs)
			if ci != assign[i] {
				assign[i] = ci
				changed = true
			}
			cc[ci].Append(obs)
		}
		if !changed {
			break
		}
		cc.Recenter()
	}

	palette := make([]color.NRGBA, len(cc))
	for i, c := range cc {
		palette[i] = coordinatesToColor(c.Center)
	}

	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	memo := make(map[color.NRGBA]color.NRGBA)
	used := make(map[color.NRGBA]struct{})
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			src := img.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			dst, ok := memo[src]
			if !ok {
				dst = palette[cc.Nearest(colorToCoordinates(src))]
				memo[src] = dst
			}
			out.SetNRGBA(x, y, dst)
			used[dst] = struct{}{}
		}
	}

	return out, len(used)
}

// samplePixels collects at most limit pixels on a regular stride, in
// row-major order.
func samplePixels(img *image.NRGBA, limit int) clusters.Observations {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	step := 1
	if total > limit {
		step = int(math.Sqrt(float64(total)/float64(limit))) + 1
	}

	obs := make(clusters.Observations, 0, min(total, limit))
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			obs = append(obs, colorToCoordinates(img.NRGBAAt(x, y)))
		}
	}
	return obs
}

// seedClusters picks k initial centers with k-means++: the first uniformly,
// each following one with probability proportional to its squared distance
// from the nearest center chosen so far.
func seedClusters(sample clusters.Observations, k int, seed uint64) clusters.Clusters {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	rng := rand.New(src)

	cc := make(clusters.Clusters, 0, k)
	first := sample[rng.IntN(len(sample))].Coordinates()
	cc = append(cc, clusters.Cluster{Center: append(clusters.Coordinates(nil), first...)})

	weights := make([]float64, len(sample))
	for i, obs := range sample {
		weights[i] = obs.Distance(first)
	}
	sampler := sampleuv.NewWeighted(weights, src)

	for len(cc) < k {
		idx, ok := sampler.Take()
		if !ok {
			break
		}
		center := sample[idx].Coordinates()
		cc = append(cc, clusters.Cluster{Center: append(clusters.Coordinates(nil), center...)})

		for i, obs := range sample {
			if d := obs.Distance(center); d < weights[i] {
				weights[i] = d
			}
		}
		sampler.ReweightAll(weights)
	}
	return cc
}

// distinctWithin counts the distinct colors of img, giving up as soon as
// there are more than k.
func distinctWithin(img *image.NRGBA, k int) (int, bool) {
	b := img.Bounds()
	seen := make(map[color.NRGBA]struct{}, k+1)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			seen[img.NRGBAAt(x, y)] = struct{}{}
			if len(seen) > k {
				return 0, false
			}
		}
	}
	return len(seen), true
}

func colorToCoordinates(c color.NRGBA) clusters.Coordinates {
	return clusters.Coordinates{
		float64(c.R) / 255.0,
		float64(c.G) / 255.0,
		float64(c.B) / 255.0,
	}
}

func coordinatesToColor(c clusters.Coordinates) color.NRGBA {
	return color.NRGBA{
		R: unitToByte(c[0]),
		G: unitToByte(c[1]),
		B: unitToByte(c[2]),
		A: 255,
	}
}

func unitToByte(v float64) uint8 {
	return uint8(clamp(int(math.Round(v*255)), 0, 255))
}
