package checkin

import (
	"math"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
)

const earthRadiusM = 6371000.0

// WithinGeofence 活动未设置围栏时总是通过，定位精度计入半径
func WithinGeofence(event *model.Event, loc model.Geolocation) bool {
	if event == nil || !event.HasGeofence() {
		return true
	}
	d := DistanceMeters(*event.VenueLat, *event.VenueLng, loc.Lat, loc.Lng)
	return d <= float64(event.GeofenceRadiusM)+math.Max(loc.AccuracyM, 0)
}

// DistanceMeters haversine 球面距离
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Min(1, math.Sqrt(a)))
}
