package genai

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Placeholders are rendered at a fraction of the model's output size.
const syntheticScale = 4

func (c *Client) syntheticImage(req ImageRequest) *ImageAsset {
	width, height := normalizeAspect(req.AspectRatio)
	width, height = width/syntheticScale, height/syntheticScale
	seed := syntheticSeed(req.RequestID, req.Prompt, req.AspectRatio, strconv.Itoa(len(req.Images)))

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Str("aspect_ratio", req.AspectRatio).
		Msg("genai: rendered placeholder image")

	return &ImageAsset{
		Format: "image/png",
		Width:  width,
		Height: height,
		Data:   renderPlaceholder(width, height, seed),
	}
}

// syntheticSeed folds the request fields into a stable 64-bit seed.
func syntheticSeed(fields ...string) uint64 {
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return binary.BigEndian.Uint64(sum[:8])
}

// renderPlaceholder paints a vertical two-color gradient sprinkled with
// confetti. The same seed always yields the same bytes.
func renderPlaceholder(width, height int, seed uint64) []byte {
	width, height = max(width, 1), max(height, 1)
	rng := rand.New(rand.NewPCG(seed, seed>>17|1))
	top, bottom := pastel(rng), pastel(rng)

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := blend(top, bottom, float64(y)/float64(max(height-1, 1)))
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, row)
		}
	}

	dots := width * height / 400
	radius := max(1, min(width, height)/40)
	for i := 0; i < dots; i++ {
		cx, cy := rng.IntN(width), rng.IntN(height)
		fill := confetti[rng.IntN(len(confetti))]
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				if dx*dx+dy*dy <= radius*radius {
					img.SetNRGBA(cx+dx, cy+dy, fill)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

var confetti = []color.NRGBA{
	{R: 0xf4, G: 0x3f, B: 0x5e, A: 0xff},
	{R: 0xfb, G: 0xbf, B: 0x24, A: 0xff},
	{R: 0x22, G: 0xc5, B: 0x5e, A: 0xff},
	{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff},
	{R: 0xa8, G: 0x55, B: 0xf7, A: 0xff},
}

func pastel(rng *rand.Rand) color.NRGBA {
	return color.NRGBA{
		R: uint8(160 + rng.IntN(96)),
		G: uint8(160 + rng.IntN(96)),
		B: uint8(160 + rng.IntN(96)),
		A: 0xff,
	}
}

func blend(a, b color.NRGBA, t float64) color.NRGBA {
	mix := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*t) }
	return color.NRGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 0xff}
}

var namedAspects = map[string][2]int{
	"":       {1024, 1024},
	"1:1":    {1024, 1024},
	"square": {1024, 1024},
	"16:9":   {1920, 1080},
	"9:16":   {1080, 1920},
}

// normalizeAspect maps an aspect ratio to the pixel size the model renders.
// Other "w:h" ratios keep a 1024 pixel width; anything unparsable is square.
func normalizeAspect(aspect string) (int, int) {
	aspect = strings.ToLower(strings.TrimSpace(aspect))
	if dims, ok := namedAspects[aspect]; ok {
		return dims[0], dims[1]
	}
	a, b, ok := strings.Cut(aspect, ":")
	if !ok {
		return 1024, 1024
	}
	w, errW := strconv.Atoi(strings.TrimSpace(a))
	h, errH := strconv.Atoi(strings.TrimSpace(b))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 1024, 1024
	}
	return 1024, 1024 * h / w
}
