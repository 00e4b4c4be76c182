package spatial

import (
	"errors"
	"math"

	"github.com/golang/geo/s2"
)

// WGS-84 ellipsoid
const (
	WGS84SemiMajorAxis = 6378137.0    // a, meters
	WGS84SemiMinorAxis = 6356752.3142 // b, meters
	WGS84Flattening    = (WGS84SemiMajorAxis - WGS84SemiMinorAxis) / WGS84SemiMajorAxis

	vincentyMaxIterations = 20
	vincentyTolerance     = 1e-12
)

const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
	EarthRadiusKm     = 6371.0    // Earth's mean radius in kilometers
)

// ErrNoConvergence is returned by VincentyDistance for nearly antipodal points
var ErrNoConvergence = errors.New("vincenty formula failed to converge")

// ValidCoordinate reports whether lat/lon are finite and within range
func ValidCoordinate(lat, lon float64) bool {
	return s2.LatLngFromDegrees(lat, lon).IsValid()
}

// GreatCircleDistance calculates the great-circle distance between two points in meters
// on a sphere with the Earth's mean radius
func GreatCircleDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// VincentyDistance calculates the geodesic distance in meters between two points on the
// WGS-84 ellipsoid using the Vincenty inverse formula.
// The result is the straight ("bird's-eye") separation, not a travelled path length.
func VincentyDistance(lat1, lon1, lat2, lon2 float64) (float64, error) {
	const a, b, f = WGS84SemiMajorAxis, WGS84SemiMinorAxis, WGS84Flattening

	l := toRadians(lon2 - lon1)
	u1 := math.Atan((1 - f) * math.Tan(toRadians(lat1)))
	u2 := math.Atan((1 - f) * math.Tan(toRadians(lat2)))
	sinU1, cosU1 := math.Sincos(u1)
	sinU2, cosU2 := math.Sincos(u2)

	lambda := l
	var sinSigma, cosSigma, sigma, cosSqAlpha, cos2SigmaM float64
	converged := false

	for i := 0; i < vincentyMaxIterations; i++ {
		sinLambda, cosLambda := math.Sincos(lambda)

		sinSigma = math.Sqrt((cosU2*sinLambda)*(cosU2*sinLambda) +
			(cosU1*sinU2-sinU1*cosU2*cosLambda)*(cosU1*sinU2-sinU1*cosU2*cosLambda))
		if sinSigma == 0 {
			// coincident points
			return 0, nil
		}

		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cosSqAlpha = 1 - sinAlpha*sinAlpha

		// equatorial line: cosSqAlpha = 0
		cos2SigmaM = 0
		if cosSqAlpha != 0 {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cosSqAlpha
		}

		c := f / 16 * cosSqAlpha * (4 + f*(4-3*cosSqAlpha))
		prev := lambda
		lambda = l + (1-c)*f*sinAlpha*
			(sigma+c*sinSigma*(cos2SigmaM+c*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))

		if math.Abs(lambda-prev) < vincentyTolerance {
			converged = true
			break
		}
	}

	if !converged {
		return 0, ErrNoConvergence
	}

	uSq := cosSqAlpha * (a*a - b*b) / (b * b)
	bigA := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	bigB := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	deltaSigma := bigB * sinSigma * (cos2SigmaM + bigB/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
		bigB/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))

	return b * bigA * (sigma - deltaSigma), nil
}

// GeodesicDistance returns the WGS-84 distance between two points in meters,
// falling back to the great-circle distance when Vincenty does not converge
func GeodesicDistance(lat1, lon1, lat2, lon2 float64) float64 {
	d, err := VincentyDistance(lat1, lon1, lat2, lon2)
	if err != nil {
		return GreatCircleDistance(lat1, lon1, lat2, lon2)
	}
	return d
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
