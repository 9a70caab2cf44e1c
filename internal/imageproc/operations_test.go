package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/UnendingLoop/TextWatermark/internal/fonts"
	"github.com/UnendingLoop/TextWatermark/internal/model"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
)

var baseColor = color.NRGBA{R: 100, G: 100, B: 200, A: 255}

func testImage(t *testing.T, w, h int, c color.NRGBA) *image.NRGBA {
	t.Helper()
	return imaging.New(w, h, c)
}

func testCompositor(t *testing.T) *Compositor {
	t.Helper()
	reg := fonts.NewRegistry(nil, map[string]string{"Arial": "Go"})
	return NewCompositor(reg, model.DefaultStyle())
}

func mustSpec(t *testing.T, text, fontName, size, placement string) model.WatermarkSpec {
	t.Helper()
	spec, err := model.NewWatermarkSpec(text, fontName, size, placement)
	require.NoError(t, err)
	return spec
}

// changedPixels returns every point where a and b differ.
func changedPixels(t *testing.T, a, b *image.NRGBA) map[image.Point]bool {
	t.Helper()
	require.Equal(t, a.Bounds(), b.Bounds())

	res := make(map[image.Point]bool)
	for y := a.Bounds().Min.Y; y < a.Bounds().Max.Y; y++ {
		for x := a.Bounds().Min.X; x < a.Bounds().Max.X; x++ {
			if a.NRGBAAt(x, y) != b.NRGBAAt(x, y) {
				res[image.Pt(x, y)] = true
			}
		}
	}
	return res
}

func boundsOf(points map[image.Point]bool) image.Rectangle {
	var r image.Rectangle
	first := true
	for p := range points {
		pr := image.Rect(p.X, p.Y, p.X+1, p.Y+1)
		if first {
			r = pr
			first = false
			continue
		}
		r = r.Union(pr)
	}
	return r
}

func TestFontSize(t *testing.T) {
	tests := []struct {
		name   string
		height int
		want   map[model.SizeCategory]int
	}{
		{
			name:   "plain divisors",
			height: 300,
			want:   map[model.SizeCategory]int{model.SizeSmall: 15, model.SizeMedium: 20, model.SizeLarge: 30},
		},
		{
			name:   "floored",
			height: 599,
			want:   map[model.SizeCategory]int{model.SizeSmall: 29, model.SizeMedium: 39, model.SizeLarge: 59},
		},
		{
			name:   "tiny image clamps and stays monotonic",
			height: 1,
			want:   map[model.SizeCategory]int{model.SizeSmall: 1, model.SizeMedium: 2, model.SizeLarge: 3},
		},
		{
			name:   "collapsed floors are bumped",
			height: 40,
			want:   map[model.SizeCategory]int{model.SizeSmall: 2, model.SizeMedium: 3, model.SizeLarge: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for size, want := range tt.want {
				got, err := FontSize(tt.height, size)
				require.NoError(t, err)
				require.Equal(t, want, got, "size %s", size)
			}
		})
	}
}

func TestFontSize_StrictlyMonotonic(t *testing.T) {
	for h := 1; h <= 3000; h++ {
		s, err := FontSize(h, model.SizeSmall)
		require.NoError(t, err)
		m, err := FontSize(h, model.SizeMedium)
		require.NoError(t, err)
		l, err := FontSize(h, model.SizeLarge)
		require.NoError(t, err)

		require.GreaterOrEqual(t, s, 1)
		require.Less(t, s, m, "height %d", h)
		require.Less(t, m, l, "height %d", h)
	}
}

func TestFontSize_Invalid(t *testing.T) {
	_, err := FontSize(0, model.SizeSmall)
	require.ErrorIs(t, err, model.ErrInvalidParameter)

	_, err = FontSize(100, model.SizeCategory("huge"))
	require.ErrorIs(t, err, model.ErrInvalidParameter)
}

func TestCompositor_Render_Placements(t *testing.T) {
	c := testCompositor(t)

	for _, placement := range []string{"middle", "bottom", "both"} {
		t.Run(placement, func(t *testing.T) {
			base := testImage(t, 400, 300, baseColor)
			before := imaging.Clone(base)

			res, err := c.Render(base, mustSpec(t, "SAMPLE", "Arial", "medium", placement))
			require.NoError(t, err)
			require.NotNil(t, res)

			require.Equal(t, base.Bounds(), res.Bounds())
			require.Equal(t, before.Pix, base.Pix, "base image must not be modified")
			require.NotEmpty(t, changedPixels(t, base, res))
		})
	}
}

func TestCompositor_Render_Deterministic(t *testing.T) {
	c := testCompositor(t)
	base := testImage(t, 320, 240, baseColor)
	spec := mustSpec(t, "© ACME", "Go Bold", "large", "both")

	first, err := c.Render(base, spec)
	require.NoError(t, err)
	second, err := c.Render(base, spec)
	require.NoError(t, err)

	require.True(t, bytes.Equal(first.Pix, second.Pix))
}

func TestCompositor_Render_BottomAnchor(t *testing.T) {
	c := testCompositor(t)
	base := testImage(t, 400, 300, baseColor)

	res, err := c.Render(base, mustSpec(t, "SAMPLE", "Arial", "Medium", "Bottom"))
	require.NoError(t, err)

	changed := changedPixels(t, base, res)
	require.NotEmpty(t, changed)

	box := boundsOf(changed)
	// правый край текста упирается в x=390, линия descender-а - в y=290
	require.LessOrEqual(t, box.Max.X, 392)
	require.GreaterOrEqual(t, box.Max.X, 380)
	require.LessOrEqual(t, box.Max.Y, 292)
	require.Greater(t, box.Min.X, 200)
	require.Greater(t, box.Min.Y, 240)

	// альфа остается непрозрачной, цвет смещен к белому
	for p := range changed {
		px := res.NRGBAAt(p.X, p.Y)
		require.Equal(t, uint8(255), px.A)
		require.GreaterOrEqual(t, px.R, baseColor.R)
		require.GreaterOrEqual(t, px.G, baseColor.G)
	}
}

func TestCompositor_Render_MiddleAnchor(t *testing.T) {
	c := testCompositor(t)
	base := testImage(t, 400, 300, baseColor)

	res, err := c.Render(base, mustSpec(t, "SAMPLE", "Go", "small", "middle"))
	require.NoError(t, err)

	box := boundsOf(changedPixels(t, base, res))
	require.True(t, box.Overlaps(image.Rect(195, 145, 205, 155)))

	// центр bounding-box около центра картинки
	center := image.Pt((box.Min.X+box.Max.X)/2, (box.Min.Y+box.Max.Y)/2)
	require.InDelta(t, 200, center.X, 3)
	require.InDelta(t, 150, center.Y, 5)
}

func TestCompositor_Render_BothIsSuperset(t *testing.T) {
	c := testCompositor(t)
	base := testImage(t, 400, 300, baseColor)

	render := func(placement string) map[image.Point]bool {
		res, err := c.Render(base, mustSpec(t, "SAMPLE", "Arial", "medium", placement))
		require.NoError(t, err)
		return changedPixels(t, base, res)
	}

	middle := render("middle")
	bottom := render("bottom")
	both := render("both")

	require.NotEmpty(t, middle)
	require.NotEmpty(t, bottom)
	for p := range middle {
		require.True(t, both[p], "middle pixel %v missing in both", p)
	}
	for p := range bottom {
		require.True(t, both[p], "bottom pixel %v missing in both", p)
	}
	require.Equal(t, len(middle)+len(bottom), len(both))
}

func TestCompositor_Render_EmptyText(t *testing.T) {
	c := testCompositor(t)
	base := testImage(t, 100, 80, baseColor)

	res, err := c.Render(base, mustSpec(t, "", "Go", "small", "both"))
	require.NoError(t, err)
	require.Equal(t, base.Pix, res.Pix)
	require.NotSame(t, base, res)
}

func TestCompositor_Render_TransparentBase(t *testing.T) {
	c := testCompositor(t)
	base := testImage(t, 200, 200, color.NRGBA{})

	res, err := c.Render(base, mustSpec(t, "WM", "Go", "large", "middle"))
	require.NoError(t, err)

	var maxAlpha uint8
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			maxAlpha = max(maxAlpha, res.NRGBAAt(x, y).A)
		}
	}
	require.Equal(t, uint8(model.DefaultAlpha), maxAlpha)
}

func TestCompositor_Render_NonZeroOrigin(t *testing.T) {
	c := testCompositor(t)
	full := testImage(t, 300, 300, baseColor)
	sub := full.SubImage(image.Rect(50, 50, 250, 200))

	res, err := c.Render(sub, mustSpec(t, "SUB", "Go", "medium", "bottom"))
	require.NoError(t, err)
	require.Equal(t, 200, res.Bounds().Dx())
	require.Equal(t, 150, res.Bounds().Dy())
}

func TestCompositor_Render_Errors(t *testing.T) {
	c := testCompositor(t)
	base := testImage(t, 100, 100, baseColor)

	tests := []struct {
		name    string
		base    image.Image
		spec    model.WatermarkSpec
		wantErr error
	}{
		{
			name:    "unknown font",
			base:    base,
			spec:    model.WatermarkSpec{Text: "x", FontName: "Baskerville", Size: model.SizeSmall, Placement: model.PlacementBoth},
			wantErr: model.ErrFontResolution,
		},
		{
			name:    "invalid size",
			base:    base,
			spec:    model.WatermarkSpec{Text: "x", FontName: "Go", Size: "huge", Placement: model.PlacementMiddle},
			wantErr: model.ErrInvalidParameter,
		},
		{
			name:    "invalid placement",
			base:    base,
			spec:    model.WatermarkSpec{Text: "x", FontName: "Go", Size: model.SizeSmall, Placement: "top"},
			wantErr: model.ErrInvalidParameter,
		},
		{
			name:    "empty image",
			base:    image.NewNRGBA(image.Rect(0, 0, 0, 0)),
			spec:    model.WatermarkSpec{Text: "x", FontName: "Go", Size: model.SizeSmall, Placement: model.PlacementMiddle},
			wantErr: model.ErrInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Render(tt.base, tt.spec)
			require.ErrorIs(t, err, tt.wantErr)
			require.Nil(t, res)
		})
	}

	_, err := c.Render(nil, mustSpec(t, "x", "Go", "small", "middle"))
	require.Error(t, err)
}

func TestCompositor_Render_FontSizeFollowsHeight(t *testing.T) {
	var got []int
	c := NewCompositor(resolverFunc(func(name string, size int) (font.Face, error) {
		got = append(got, size)
		return fonts.NewRegistry(nil, nil).Resolve("Go", size)
	}), model.DefaultStyle())

	_, err := c.Render(testImage(t, 50, 300, baseColor), mustSpec(t, "a", "Go", "large", "both"))
	require.NoError(t, err)
	_, err = c.Render(testImage(t, 50, 600, baseColor), mustSpec(t, "a", "Go", "large", "both"))
	require.NoError(t, err)

	require.Equal(t, []int{30, 60}, got)
}

type resolverFunc func(name string, size int) (font.Face, error)

func (f resolverFunc) Resolve(name string, size int) (font.Face, error) {
	return f(name, size)
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, testImage(t, 30, 20, baseColor), imaging.PNG))

	img, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 30, 20), img.Bounds())
	require.Equal(t, baseColor, img.NRGBAAt(5, 5))

	_, err = Decode(bytes.NewReader([]byte("not-an-image")))
	require.Error(t, err)

	_, err = Decode(nil)
	require.Error(t, err)
}

func TestEncode_JPEGIsFlattened(t *testing.T) {
	img := testImage(t, 40, 40, color.NRGBA{R: 0, G: 0, B: 0, A: 0})

	r, size, err := EncodeToBuffer(img, imaging.JPEG, 90, model.JPEGBackground)
	require.NoError(t, err)
	require.Greater(t, size, int64(0))

	decoded, err := jpeg.Decode(r)
	require.NoError(t, err)

	cr, cg, cb, ca := decoded.At(20, 20).RGBA()
	require.Equal(t, uint32(0xffff), ca)
	require.Greater(t, cr>>8, uint32(250))
	require.Greater(t, cg>>8, uint32(250))
	require.Greater(t, cb>>8, uint32(250))
}

func TestEncode_Formats(t *testing.T) {
	img := testImage(t, 10, 10, baseColor)

	for _, name := range []string{"png", ".jpg", "JPEG", "gif", "tiff", "bmp"} {
		t.Run(name, func(t *testing.T) {
			f, err := ParseFormat(name)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, img, f, 0, nil))
			require.NotZero(t, buf.Len())
		})
	}

	_, err := ParseFormat("webp")
	require.ErrorIs(t, err, model.ErrUnsupportedFmt)

	_, err = FormatFromPath("/tmp/out.xcf")
	require.ErrorIs(t, err, model.ErrUnsupportedFmt)

	f, err := FormatFromPath("/tmp/OUT.JPEG")
	require.NoError(t, err)
	require.Equal(t, imaging.JPEG, f)
}

func TestEncodableName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "wm_photo.jpg", want: "wm_photo.jpg"},
		{in: "wm_scan.TIFF", want: "wm_scan.TIFF"},
		{in: "wm_photo.webp", want: "wm_photo.png"},
		{in: "wm_photo", want: "wm_photo.png"},
		{in: "/tmp/wm_a.b.psd", want: "/tmp/wm_a.b.png"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, EncodableName(tt.in))
		})
	}
}

func TestFlatten(t *testing.T) {
	img := testImage(t, 4, 4, color.NRGBA{R: 0, G: 0, B: 0, A: 128})

	flat := Flatten(img, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	require.True(t, flat.Opaque())

	px := flat.NRGBAAt(1, 1)
	require.InDelta(t, 127, int(px.R), 2)
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name       string
		w, h, side int
		wantW      int
		wantH      int
	}{
		{name: "landscape is capped", w: 1000, h: 500, side: 500, wantW: 500, wantH: 250},
		{name: "portrait is capped", w: 300, h: 600, side: 500, wantW: 250, wantH: 500},
		{name: "small image is not upscaled", w: 200, h: 100, side: 500, wantW: 200, wantH: 100},
		{name: "default side", w: 1000, h: 1000, side: 0, wantW: 500, wantH: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testImage(t, tt.w, tt.h, baseColor)

			res, err := Preview(src, tt.side)
			require.NoError(t, err)
			require.Equal(t, tt.wantW, res.Bounds().Dx())
			require.Equal(t, tt.wantH, res.Bounds().Dy())
			require.NotSame(t, src, res)
		})
	}

	_, err := Preview(nil, 10)
	require.Error(t, err)
}
