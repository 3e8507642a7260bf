package headless

import (
	m "math"
)

// Kernel computes the color of one fragment.
type Kernel func(f *Fragment) [4]float32

var gaussianWeights = [5]float32{0.227027, 0.1945946, 0.1216216, 0.054054, 0.016216}

func builtinKernels() map[string]Kernel {
	return map[string]Kernel{
		"passthrough":      kernelPassthrough,
		"copy":             kernelPassthrough,
		"material":         kernelMaterial,
		"lava":             kernelLava,
		"water":            kernelWater,
		"gbuffer":          kernelGBuffer,
		"deferred_resolve": kernelDeferredResolve,
		"light_accum":      kernelLightAccum,
		"lpp_material":     kernelLPPMaterial,
		"blur":             kernelBlur,
		"bright_extract":   kernelBrightExtract,
		"composite":        kernelComposite,
		"ao":               kernelAmbientOcclusion,
		"ao_composite":     kernelAOComposite,
		"fog":              kernelFog,
		"tonemap":          kernelTonemap,
		"colorgrade":       kernelColorGrade,
		"fxaa":             kernelFXAA,
		"temporal_resolve": kernelTemporalResolve,
		"glyph":            kernelGlyph,
	}
}

func luminance(c [4]float32) float32 {
	return 0.2126*c[0] + 0.7152*c[1] + 0.0722*c[2]
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

func saturate(f float32) float32 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func kernelPassthrough(f *Fragment) [4]float32 {
	if f.HasInput(0) {
		return f.Sample(0, f.UV.X, f.UV.Y)
	}
	return f.Param(0)
}

// albedo: base_color (slot 0) times the diffuse texture (input 0) sampled with
// tiling and offset (slot 1).
func albedo(f *Fragment, u, v float32) [4]float32 {
	base := f.Param(0)
	to := f.Param(1)
	if !f.HasInput(0) {
		return base
	}
	tu := u*to[0] + to[2]
	tv := v*to[1] + to[3]
	tu -= float32(m.Floor(float64(tu)))
	tv -= float32(m.Floor(float64(tv)))
	tex := f.Sample(0, tu, tv)
	return [4]float32{base[0] * tex[0], base[1] * tex[1], base[2] * tex[2], base[3] * tex[3]}
}

func lit(c [4]float32, light [4]float32) [4]float32 {
	if light == [4]float32{} {
		return c
	}
	return [4]float32{c[0] * light[0] * light[3], c[1] * light[1] * light[3], c[2] * light[2] * light[3], c[3]}
}

func kernelMaterial(f *Fragment) [4]float32 {
	return lit(albedo(f, f.UV.X, f.UV.Y), f.Param(3))
}

// slot 2: time, glow, flow speed.
func kernelLava(f *Fragment) [4]float32 {
	p := f.Param(2)
	c := albedo(f, f.UV.X, f.UV.Y-p[0]*p[2])
	pulse := 0.5 + 0.5*float32(m.Sin(float64(p[0]*p[2]+f.UV.Y*10)))
	for i := 0; i < 3; i++ {
		c[i] += c[i] * p[1] * pulse
	}
	return lit(c, f.Param(3))
}

// slot 2: time, wave amplitude, wave frequency.
func kernelWater(f *Fragment) [4]float32 {
	p := f.Param(2)
	u := f.UV.X + p[1]*float32(m.Sin(float64(p[2]*f.UV.Y+p[0])))
	return lit(albedo(f, u, f.UV.Y), f.Param(3))
}

func kernelGBuffer(f *Fragment) [4]float32 {
	c := albedo(f, f.UV.X, f.UV.Y)
	c[3] = 1
	return c
}

// input 0: albedo buffer. slot 0: light, slot 1.x: ambient.
func kernelDeferredResolve(f *Fragment) [4]float32 {
	a := f.Sample(0, f.UV.X, f.UV.Y)
	light := f.Param(0)
	ambient := f.Param(1)[0]
	var out [4]float32
	for i := 0; i < 3; i++ {
		out[i] = a[i]*light[i]*light[3] + a[i]*ambient
	}
	out[3] = a[3]
	return out
}

func kernelLightAccum(f *Fragment) [4]float32 {
	l := f.Param(0)
	return [4]float32{l[0] * l[3], l[1] * l[3], l[2] * l[3], 1}
}

// input 0: diffuse texture, input 1: light buffer sampled in screen space.
func kernelLPPMaterial(f *Fragment) [4]float32 {
	c := albedo(f, f.UV.X, f.UV.Y)
	if f.HasInput(1) {
		l := f.Sample(1, f.ScreenUV.X, f.ScreenUV.Y)
		c[0] *= l[0]
		c[1] *= l[1]
		c[2] *= l[2]
	}
	return c
}

// slot 0: direction x, direction y, radius in texels.
func kernelBlur(f *Fragment) [4]float32 {
	p := f.Param(0)
	tx, ty := f.InputTexel(0)
	radius := p[2]
	if radius == 0 {
		radius = 1
	}
	dx, dy := p[0]*tx*radius, p[1]*ty*radius

	c := f.Sample(0, f.UV.X, f.UV.Y)
	var out [4]float32
	for i := 0; i < 4; i++ {
		out[i] = c[i] * gaussianWeights[0]
	}
	for k := 1; k < len(gaussianWeights); k++ {
		fk := float32(k)
		a := f.Sample(0, f.UV.X+dx*fk, f.UV.Y+dy*fk)
		b := f.Sample(0, f.UV.X-dx*fk, f.UV.Y-dy*fk)
		for i := 0; i < 4; i++ {
			out[i] += (a[i] + b[i]) * gaussianWeights[k]
		}
	}
	return out
}

// slot 0.x: threshold.
func kernelBrightExtract(f *Fragment) [4]float32 {
	c := f.Sample(0, f.UV.X, f.UV.Y)
	lum := luminance(c)
	if lum <= 0 {
		return [4]float32{0, 0, 0, 1}
	}
	k := max(lum-f.Param(0)[0], 0) / lum
	return [4]float32{c[0] * k, c[1] * k, c[2] * k, 1}
}

// input 0 + input 1 * slot 0.x
func kernelComposite(f *Fragment) [4]float32 {
	a := f.Sample(0, f.UV.X, f.UV.Y)
	b := f.Sample(1, f.UV.X, f.UV.Y)
	k := f.Param(0)[0]
	return [4]float32{a[0] + b[0]*k, a[1] + b[1]*k, a[2] + b[2]*k, a[3]}
}

// slot 0: radius in texels, intensity, sample count, mode (0 ssao, 1 obscurance).
// slots 1..6: two sample offsets each.
func kernelAmbientOcclusion(f *Fragment) [4]float32 {
	p := f.Param(0)
	tx, ty := f.InputTexel(0)
	center := luminance(f.Sample(0, f.UV.X, f.UV.Y))
	count := int(p[2])
	if count > 12 {
		count = 12
	}
	occlusion := float32(0)
	for i := 0; i < count; i++ {
		s := f.Param(1 + i/2)
		ox, oy := s[0], s[1]
		if i%2 == 1 {
			ox, oy = s[2], s[3]
		}
		l := luminance(f.Sample(0, f.UV.X+ox*p[0]*tx, f.UV.Y+oy*p[0]*ty))
		diff := l - center
		if p[3] >= 1 {
			// obscurance: any difference occludes, attenuated with distance
			dist := float32(m.Sqrt(float64(ox*ox + oy*oy)))
			occlusion += float32(m.Abs(float64(diff))) / (1 + dist)
		} else if diff > 0.02 {
			occlusion += diff
		}
	}
	if count > 0 {
		occlusion /= float32(count)
	}
	ao := saturate(1 - occlusion*p[1])
	return [4]float32{ao, ao, ao, 1}
}

// input 0 scene, input 1 occlusion.
func kernelAOComposite(f *Fragment) [4]float32 {
	c := f.Sample(0, f.UV.X, f.UV.Y)
	ao := f.Sample(1, f.UV.X, f.UV.Y)[0]
	if !f.HasInput(1) {
		ao = 1
	}
	return [4]float32{c[0] * ao, c[1] * ao, c[2] * ao, c[3]}
}

// slot 0: mode (0 linear, 1 exp, 2 exp2), density, start, end. slot 1: color.
// Depth comes from input 1 when bound, otherwise from the screen height.
func kernelFog(f *Fragment) [4]float32 {
	p := f.Param(0)
	fog := f.Param(1)
	c := f.Sample(0, f.UV.X, f.UV.Y)
	depth := 1 - f.ScreenUV.Y
	if f.HasInput(1) {
		depth = f.Sample(1, f.UV.X, f.UV.Y)[0]
	}
	var visibility float32
	switch int(p[0]) {
	case 1:
		visibility = float32(m.Exp(float64(-p[1] * depth)))
	case 2:
		d := p[1] * depth
		visibility = float32(m.Exp(float64(-d * d)))
	default:
		if p[3] == p[2] {
			visibility = 1
		} else {
			visibility = (p[3] - depth) / (p[3] - p[2])
		}
	}
	visibility = saturate(visibility)
	return [4]float32{
		lerp(fog[0], c[0], visibility),
		lerp(fog[1], c[1], visibility),
		lerp(fog[2], c[2], visibility),
		c[3],
	}
}

// slot 0: exposure, gamma, operator (0 reinhard, 1 aces, 2 filmic).
func kernelTonemap(f *Fragment) [4]float32 {
	p := f.Param(0)
	c := f.Sample(0, f.UV.X, f.UV.Y)
	exposure := p[0]
	if exposure == 0 {
		exposure = 1
	}
	gamma := p[1]
	if gamma == 0 {
		gamma = 2.2
	}
	var out [4]float32
	for i := 0; i < 3; i++ {
		x := c[i] * exposure
		switch int(p[2]) {
		case 1:
			x = saturate((x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14))
		case 2:
			x = max(0, x-0.004)
			x = (x * (6.2*x + 0.5)) / (x*(6.2*x+1.7) + 0.06)
		default:
			x = x / (1 + x)
		}
		if int(p[2]) != 2 {
			x = float32(m.Pow(float64(x), float64(1/gamma)))
		}
		out[i] = x
	}
	out[3] = c[3]
	return out
}

// slot 0: grayscale, sepia, invert, vignette weights. slot 1: contrast,
// saturation, brightness, vignette radius.
func kernelColorGrade(f *Fragment) [4]float32 {
	w := f.Param(0)
	g := f.Param(1)
	c := f.Sample(0, f.UV.X, f.UV.Y)
	rgb := [3]float32{c[0], c[1], c[2]}

	contrast, sat, bright := g[0], g[1], g[2]
	if contrast == 0 {
		contrast = 1
	}
	if sat == 0 {
		sat = 1
	}
	lum := luminance(c)
	for i := 0; i < 3; i++ {
		v := lerp(lum, rgb[i], sat)
		v = (v-0.5)*contrast + 0.5 + bright
		rgb[i] = v
	}

	if w[0] > 0 {
		l := 0.2126*rgb[0] + 0.7152*rgb[1] + 0.0722*rgb[2]
		for i := 0; i < 3; i++ {
			rgb[i] = lerp(rgb[i], l, w[0])
		}
	}
	if w[1] > 0 {
		r := 0.393*rgb[0] + 0.769*rgb[1] + 0.189*rgb[2]
		gg := 0.349*rgb[0] + 0.686*rgb[1] + 0.168*rgb[2]
		b := 0.272*rgb[0] + 0.534*rgb[1] + 0.131*rgb[2]
		rgb[0] = lerp(rgb[0], r, w[1])
		rgb[1] = lerp(rgb[1], gg, w[1])
		rgb[2] = lerp(rgb[2], b, w[1])
	}
	if w[2] > 0 {
		for i := 0; i < 3; i++ {
			rgb[i] = lerp(rgb[i], 1-rgb[i], w[2])
		}
	}
	if w[3] > 0 {
		radius := g[3]
		if radius == 0 {
			radius = 0.75
		}
		dx, dy := f.UV.X-0.5, f.UV.Y-0.5
		d := float32(m.Sqrt(float64(dx*dx+dy*dy))) / radius
		v := saturate(1 - d*d*w[3])
		for i := 0; i < 3; i++ {
			rgb[i] *= v
		}
	}
	return [4]float32{saturate(rgb[0]), saturate(rgb[1]), saturate(rgb[2]), c[3]}
}

// slot 0.x: edge threshold.
func kernelFXAA(f *Fragment) [4]float32 {
	tx, ty := f.InputTexel(0)
	c := f.Sample(0, f.UV.X, f.UV.Y)
	n := f.Sample(0, f.UV.X, f.UV.Y-ty)
	s := f.Sample(0, f.UV.X, f.UV.Y+ty)
	e := f.Sample(0, f.UV.X+tx, f.UV.Y)
	w := f.Sample(0, f.UV.X-tx, f.UV.Y)
	lc, ln, ls, le, lw := luminance(c), luminance(n), luminance(s), luminance(e), luminance(w)
	lmin := min(lc, min(min(ln, ls), min(le, lw)))
	lmax := max(lc, max(max(ln, ls), max(le, lw)))
	threshold := f.Param(0)[0]
	if threshold == 0 {
		threshold = 0.125
	}
	if lmax-lmin < threshold {
		return c
	}
	var out [4]float32
	for i := 0; i < 4; i++ {
		out[i] = c[i]*0.5 + (n[i]+s[i]+e[i]+w[i])*0.125
	}
	return out
}

// input 0 current frame, input 1 history, slot 0.x feedback.
func kernelTemporalResolve(f *Fragment) [4]float32 {
	cur := f.Sample(0, f.UV.X, f.UV.Y)
	if !f.HasInput(1) {
		return cur
	}
	hist := f.Sample(1, f.UV.X, f.UV.Y)
	k := saturate(f.Param(0)[0])
	return [4]float32{
		lerp(cur[0], hist[0], k),
		lerp(cur[1], hist[1], k),
		lerp(cur[2], hist[2], k),
		cur[3],
	}
}

// input 0 glyph atlas, slot 0 text color.
func kernelGlyph(f *Fragment) [4]float32 {
	color := f.Param(0)
	a := f.Sample(0, f.UV.X, f.UV.Y)
	coverage := a[3]
	if coverage == 1 && a[0] < 1 {
		// atlases without alpha store coverage in red
		coverage = a[0]
	}
	return [4]float32{color[0], color[1], color[2], color[3] * coverage}
}
