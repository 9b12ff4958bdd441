package proj

import "math"

// transverseMercator projects geographic coordinates onto a Transverse
// Mercator plane and back, using the standard series expansion on the
// GRS80 ellipsoid. Accuracy is sub-millimetre within a zone's width.
type transverseMercator struct {
	a             float64 // semi-major axis, metres
	e2            float64 // first eccentricity squared
	k0            float64 // scale factor at the central meridian
	lon0          float64 // central meridian, radians
	falseEasting  float64
	falseNorthing float64
}

func newTransverseMercator(centralMeridianDeg, scale, falseEasting, falseNorthing float64) *transverseMercator {
	const (
		a          = 6378137.0
		invFlatten = 298.257222101
	)
	f := 1 / invFlatten
	return &transverseMercator{
		a:             a,
		e2:            f * (2 - f),
		k0:            scale,
		lon0:          centralMeridianDeg * math.Pi / 180,
		falseEasting:  falseEasting,
		falseNorthing: falseNorthing,
	}
}

// Forward maps longitude/latitude in degrees to easting/northing in metres.
func (t *transverseMercator) Forward(lon, lat float64) (float64, float64) {
	phi := lat * math.Pi / 180
	lam := lon * math.Pi / 180

	ep2 := t.e2 / (1 - t.e2)
	sinPhi, cosPhi := math.Sincos(phi)
	tanPhi := math.Tan(phi)

	n := t.a / math.Sqrt(1-t.e2*sinPhi*sinPhi)
	tt := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a1 := (lam - t.lon0) * cosPhi
	m := t.meridianArc(phi)

	a2 := a1 * a1
	a3 := a2 * a1
	a4 := a3 * a1
	a5 := a4 * a1
	a6 := a5 * a1

	x := t.falseEasting + t.k0*n*(a1+(1-tt+c)*a3/6+
		(5-18*tt+tt*tt+72*c-58*ep2)*a5/120)
	y := t.falseNorthing + t.k0*(m+n*tanPhi*(a2/2+
		(5-tt+9*c+4*c*c)*a4/24+
		(61-58*tt+tt*tt+600*c-330*ep2)*a6/720))
	return x, y
}

// Inverse maps easting/northing in metres back to longitude/latitude in
// degrees.
func (t *transverseMercator) Inverse(x, y float64) (float64, float64) {
	ep2 := t.e2 / (1 - t.e2)

	m := (y - t.falseNorthing) / t.k0
	mu := m / (t.a * (1 - t.e2/4 - 3*t.e2*t.e2/64 - 5*t.e2*t.e2*t.e2/256))

	sqrtOneMinusE2 := math.Sqrt(1 - t.e2)
	e1 := (1 - sqrtOneMinusE2) / (1 + sqrtOneMinusE2)
	e1p2 := e1 * e1
	e1p3 := e1p2 * e1
	e1p4 := e1p3 * e1

	phi1 := mu +
		(3*e1/2-27*e1p3/32)*math.Sin(2*mu) +
		(21*e1p2/16-55*e1p4/32)*math.Sin(4*mu) +
		(151*e1p3/96)*math.Sin(6*mu) +
		(1097*e1p4/512)*math.Sin(8*mu)

	sinPhi1, cosPhi1 := math.Sincos(phi1)
	tanPhi1 := math.Tan(phi1)

	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	oneMinusE2Sin2 := 1 - t.e2*sinPhi1*sinPhi1
	n1 := t.a / math.Sqrt(oneMinusE2Sin2)
	r1 := t.a * (1 - t.e2) / math.Pow(oneMinusE2Sin2, 1.5)
	d := (x - t.falseEasting) / (n1 * t.k0)

	d2 := d * d
	d3 := d2 * d
	d4 := d3 * d
	d5 := d4 * d
	d6 := d5 * d

	phi := phi1 - (n1*tanPhi1/r1)*(d2/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*d4/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d6/720)
	lam := t.lon0 + (d-(1+2*t1+c1)*d3/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d5/120)/cosPhi1

	return lam * 180 / math.Pi, phi * 180 / math.Pi
}

// meridianArc is the ellipsoidal arc length from the equator to phi.
func (t *transverseMercator) meridianArc(phi float64) float64 {
	e2 := t.e2
	e4 := e2 * e2
	e6 := e4 * e2
	return t.a * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}
