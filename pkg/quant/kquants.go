package quant

import "math"

const (
	qkK         = 256
	kScaleSize  = 12
	groupMaxEps = 1e-15
)

// nearestInt rounds half to even, matching ggml's float trick.
func nearestInt(v float32) int {
	return int(math.RoundToEven(float64(v)))
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// makeQKX2Quants fits x ~ scale*L + min with levels L in [0, nmax], searching
// nstep candidate scales around the min/max estimate. It returns the scale
// and the negated minimum.
func makeQKX2Quants(nmax int, x, weights []float32, levels, aux []uint8, rmin, rdelta float32, nstep int) (scale, negMin float32) {
	n := len(x)
	lo, hi := x[0], x[0]
	sumW := weights[0]
	sumX := sumW * x[0]
	for i := 1; i < n; i++ {
		lo = min(lo, x[i])
		hi = max(hi, x[i])
		sumW += weights[i]
		sumX += weights[i] * x[i]
	}
	if lo > 0 {
		lo = 0
	}
	if hi == lo {
		clear(levels[:n])
		return 0, -lo
	}

	fmax := float32(nmax)
	iscale := fmax / (hi - lo)
	scale = 1 / iscale
	var bestErr float32
	for i := range n {
		l := clampInt(nearestInt(iscale*(x[i]-lo)), 0, nmax)
		levels[i] = uint8(l)
		diff := scale*float32(l) + lo - x[i]
		bestErr += weights[i] * diff * diff
	}
	if nstep < 1 {
		return scale, -lo
	}

	for is := 0; is <= nstep; is++ {
		iscale = (rmin + rdelta*float32(is) + fmax) / (hi - lo)
		var sumL, sumL2, sumXL float32
		for i := range n {
			l := clampInt(nearestInt(iscale*(x[i]-lo)), 0, nmax)
			aux[i] = uint8(l)
			w := weights[i]
			fl := float32(l)
			sumL += w * fl
			sumL2 += w * fl * fl
			sumXL += w * fl * x[i]
		}
		D := sumW*sumL2 - sumL*sumL
		if D <= 0 {
			continue
		}
		thisScale := (sumW*sumXL - sumX*sumL) / D
		thisMin := (sumL2*sumX - sumL*sumXL) / D
		if thisMin > 0 {
			thisMin = 0
			thisScale = sumXL / sumL2
		}
		var e float32
		for i := range n {
			diff := thisScale*float32(aux[i]) + thisMin - x[i]
			e += weights[i] * diff * diff
		}
		if e < bestErr {
			copy(levels[:n], aux[:n])
			bestErr = e
			scale = thisScale
			lo = thisMin
		}
	}
	return scale, -lo
}

// makeQXQuants fits symmetric levels (stored biased by nmax) in [-nmax, nmax-1], weighting
// each value by its square, and returns the scale.
func makeQXQuants(nmax int, x []float32, levels []uint8) float32 {
	maxv, amax := absMax(x)
	if amax < groupMaxEps {
		clear(levels[:len(x)])
		return 0
	}
	fmax := float32(nmax)
	iscale := -fmax / maxv
	var sumLX, sumL2 float32
	for i, v := range x {
		l := clampInt(nearestInt(iscale*v), -nmax, nmax-1)
		levels[i] = uint8(l + nmax)
		w := v * v
		fl := float32(l)
		sumLX += w * v * fl
		sumL2 += w * fl * fl
	}
	var scale float32
	if sumL2 != 0 {
		scale = sumLX / sumL2
	}
	best := scale * sumLX
	for is := -9; is <= 9; is++ {
		if is == 0 {
			continue
		}
		iscale = -(fmax + 0.1*float32(is)) / maxv
		sumLX, sumL2 = 0, 0
		for _, v := range x {
			l := float32(clampInt(nearestInt(iscale*v), -nmax, nmax-1))
			w := v * v
			sumLX += w * v * l
			sumL2 += w * l * l
		}
		if sumL2 > 0 && sumLX*sumLX > best*sumL2 {
			for i, v := range x {
				levels[i] = uint8(nmax + clampInt(nearestInt(iscale*v), -nmax, nmax-1))
			}
			scale = sumLX / sumL2
			best = scale * sumLX
		}
	}
	return scale
}

// scaleMinK4 unpacks the 6-bit scale and min of sub-block j.
func scaleMinK4(j int, q []byte) (sc, m uint8) {
	if j < 4 {
		return q[j] & 63, q[j+4] & 63
	}
	sc = q[j+4]&0x0F | (q[j-4]>>6)<<4
	m = q[j+4]>>4 | (q[j]>>6)<<4
	return sc, m
}

// packScalesK4 quantizes eight sub-block scales and mins to 6 bits each and
// packs them into 12 bytes. It returns the super-block scale and min.
func packScalesK4(dst []byte, scales, mins *[qkK / 32]float32) (d, dmin float32) {
	var maxScale, maxMin float32
	for j := range scales {
		maxScale = max(maxScale, scales[j])
		maxMin = max(maxMin, mins[j])
	}
	var invScale, invMin float32
	if maxScale > 0 {
		invScale = 63 / maxScale
	}
	if maxMin > 0 {
		invMin = 63 / maxMin
	}
	clear(dst[:kScaleSize])
	for j := range scales {
		ls := uint8(clampInt(nearestInt(invScale*scales[j]), 0, 63))
		lm := uint8(clampInt(nearestInt(invMin*mins[j]), 0, 63))
		if j < 4 {
			dst[j] = ls
			dst[j+4] = lm
			continue
		}
		dst[j+4] = ls&0x0F | (lm&0x0F)<<4
		dst[j-4] |= (ls >> 4) << 6
		dst[j] |= (lm >> 4) << 6
	}
	return maxScale / 63, maxMin / 63
}

// quantizeK fits the 8 sub-blocks of one super-block with an asymmetric
// scale and min, writes d, dmin and the packed scales to dst, and returns
// the final levels in L.
func quantizeK(dst []byte, x []float32, L *[qkK]uint8, nmax int, rmin float32, nstep int) {
	var (
		weights [32]float32
		laux    [32]uint8
		scales  [qkK / 32]float32
		mins    [qkK / 32]float32
	)
	for j := range qkK / 32 {
		sub := x[32*j : 32*j+32]
		var sumX2 float32
		for _, v := range sub {
			sumX2 += v * v
		}
		avX := float32(math.Sqrt(float64(sumX2 / 32)))
		for l, v := range sub {
			weights[l] = avX + abs32(v)
		}
		scales[j], mins[j] = makeQKX2Quants(nmax, sub, weights[:], L[32*j:32*j+32], laux[:], rmin, 0.1, nstep)
	}

	d, dmin := packScalesK4(dst[4:], &scales, &mins)
	putF16(dst, d)
	putF16(dst[2:], dmin)
	d, dmin = roundF16(d), roundF16(dmin)

	for j := range qkK / 32 {
		sc, m := scaleMinK4(j, dst[4:])
		ds := d * float32(sc)
		if ds == 0 {
			continue
		}
		dm := dmin * float32(m)
		for i := range 32 {
			L[32*j+i] = uint8(clampInt(nearestInt((x[32*j+i]+dm)/ds), 0, nmax))
		}
	}
}

// Q4_K: d, dmin, scales[12], qs[128]. Each 64-value group stores its first
// 32 levels in low nibbles and the next 32 in high nibbles.
func quantizeQ4_K(dst []byte, x []float32) {
	var L [qkK]uint8
	quantizeK(dst, x, &L, 15, -1, 20)
	qs := dst[4+kScaleSize:]
	for j := 0; j < qkK; j += 64 {
		for l := range 32 {
			qs[l] = L[j+l] | L[j+l+32]<<4
		}
		qs = qs[32:]
	}
}

func dequantizeQ4_K(y []float32, src []byte) {
	d := getF16(src)
	dmin := getF16(src[2:])
	scales := src[4 : 4+kScaleSize]
	qs := src[4+kScaleSize:]
	is := 0
	for j := 0; j < qkK; j += 64 {
		sc, m := scaleMinK4(is, scales)
		d1, m1 := d*float32(sc), dmin*float32(m)
		sc, m = scaleMinK4(is+1, scales)
		d2, m2 := d*float32(sc), dmin*float32(m)
		for l := range 32 {
			y[j+l] = d1*float32(qs[l]&0x0F) - m1
			y[j+l+32] = d2*float32(qs[l]>>4) - m2
		}
		qs = qs[32:]
		is += 2
	}
}

// Q5_K: d, dmin, scales[12], qh[32], qs[128]. The fifth bit of each level
// lives in qh, two bits per 64-value group.
func quantizeQ5_K(dst []byte, x []float32) {
	var L [qkK]uint8
	quantizeK(dst, x, &L, 31, -0.5, 15)
	qh := dst[4+kScaleSize : 4+kScaleSize+qkK/8]
	ql := dst[4+kScaleSize+qkK/8:]
	clear(qh)
	m1, m2 := uint8(1), uint8(2)
	for n := 0; n < qkK; n += 64 {
		for j := range 32 {
			l1 := L[n+j]
			if l1 > 15 {
				l1 -= 16
				qh[j] |= m1
			}
			l2 := L[n+j+32]
			if l2 > 15 {
				l2 -= 16
				qh[j] |= m2
			}
			ql[j] = l1 | l2<<4
		}
		m1 <<= 2
		m2 <<= 2
		ql = ql[32:]
	}
}

func dequantizeQ5_K(y []float32, src []byte) {
	d := getF16(src)
	dmin := getF16(src[2:])
	scales := src[4 : 4+kScaleSize]
	qh := src[4+kScaleSize : 4+kScaleSize+qkK/8]
	ql := src[4+kScaleSize+qkK/8:]
	is := 0
	u1, u2 := uint8(1), uint8(2)
	for j := 0; j < qkK; j += 64 {
		sc, m := scaleMinK4(is, scales)
		d1, m1 := d*float32(sc), dmin*float32(m)
		sc, m = scaleMinK4(is+1, scales)
		d2, m2 := d*float32(sc), dmin*float32(m)
		for l := range 32 {
			lo := ql[l] & 0x0F
			if qh[l]&u1 != 0 {
				lo += 16
			}
			hi := ql[l] >> 4
			if qh[l]&u2 != 0 {
				hi += 16
			}
			y[j+l] = d1*float32(lo) - m1
			y[j+l+32] = d2*float32(hi) - m2
		}
		ql = ql[32:]
		is += 2
		u1 <<= 2
		u2 <<= 2
	}
}

// Q6_K: ql[128], qh[64], scales[16] (int8), d. Levels are stored biased by
// 32; each 128-value half splits its 6-bit levels across ql nibbles and qh
// bit pairs.
func quantizeQ6_K(dst []byte, x []float32) {
	const (
		qlOff = 0
		qhOff = qkK / 2
		scOff = qhOff + qkK/4
		dOff  = scOff + qkK/16
	)
	var (
		L      [qkK]uint8
		scales [qkK / 16]float32
	)
	var maxScale, maxAbsScale float32
	for ib := range qkK / 16 {
		s := makeQXQuants(32, x[16*ib:16*ib+16], L[16*ib:16*ib+16])
		scales[ib] = s
		if a := abs32(s); a > maxAbsScale {
			maxAbsScale = a
			maxScale = s
		}
	}
	if maxAbsScale < groupMaxEps {
		clear(dst[:dOff+2])
		return
	}

	iscale := -128 / maxScale
	putF16(dst[dOff:], 1/iscale)
	d := getF16(dst[dOff:])
	sc := dst[scOff:dOff]
	for ib := range qkK / 16 {
		sc[ib] = uint8(int8(min(127, nearestInt(iscale*scales[ib]))))
	}
	for j := range qkK / 16 {
		ds := d * float32(int8(sc[j]))
		if ds == 0 {
			continue
		}
		for i := range 16 {
			l := clampInt(nearestInt(x[16*j+i]/ds), -32, 31)
			L[16*j+i] = uint8(l + 32)
		}
	}

	ql := dst[qlOff:qhOff]
	qh := dst[qhOff:scOff]
	for j := 0; j < qkK; j += 128 {
		for l := range 32 {
			q1 := L[j+l] & 0x0F
			q2 := L[j+l+32] & 0x0F
			q3 := L[j+l+64] & 0x0F
			q4 := L[j+l+96] & 0x0F
			ql[l] = q1 | q3<<4
			ql[l+32] = q2 | q4<<4
			qh[l] = L[j+l]>>4 | (L[j+l+32]>>4)<<2 | (L[j+l+64]>>4)<<4 | (L[j+l+96]>>4)<<6
		}
		ql = ql[64:]
		qh = qh[32:]
	}
}

func dequantizeQ6_K(y []float32, src []byte) {
	ql := src[:qkK/2]
	qh := src[qkK/2 : qkK/2+qkK/4]
	sc := src[qkK/2+qkK/4 : qkK/2+qkK/4+qkK/16]
	d := getF16(src[qkK/2+qkK/4+qkK/16:])
	for n := 0; n < qkK; n += 128 {
		for l := range 32 {
			is := l / 16
			q1 := int(ql[l]&0x0F|(qh[l]&3)<<4) - 32
			q2 := int(ql[l+32]&0x0F|(qh[l]>>2&3)<<4) - 32
			q3 := int(ql[l]>>4|(qh[l]>>4&3)<<4) - 32
			q4 := int(ql[l+32]>>4|(qh[l]>>6&3)<<4) - 32
			y[n+l] = d * float32(int8(sc[is])) * float32(q1)
			y[n+l+32] = d * float32(int8(sc[is+2])) * float32(q2)
			y[n+l+64] = d * float32(int8(sc[is+4])) * float32(q3)
			y[n+l+96] = d * float32(int8(sc[is+6])) * float32(q4)
		}
		ql = ql[64:]
		qh = qh[32:]
		sc = sc[8:]
	}
}
