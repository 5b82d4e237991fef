package transit

import (
	"archive/zip"
	"bytes"
	"testing"
)

// testBundleFiles is a small Vancouver GTFS feed: two routes, four stops and
// one shaped trip per route. Stop 9999 is a station and carries no number.
var testBundleFiles = map[string]string{
	"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n" +
		"TL,TransLink,https://www.translink.ca,America/Vancouver\n",
	"routes.txt": "route_id,agency_id,route_short_name,route_long_name,route_type,route_color\n" +
		"6641,TL,099,Commercial-Broadway/UBC (B-Line),3,F5A623\n" +
		"37807,TL,R4,41st Ave,3,\n",
	"stops.txt": "stop_id,stop_code,stop_name,stop_lat,stop_lon,location_type\n" +
		"1,51479,Granville Stn Bay 2,49.2832,-123.1164,0\n" +
		"2,50001,W Broadway @ Granville,49.2635,-123.1385,0\n" +
		"3,50002,W 41 Ave @ Granville,49.2339,-123.1398,0\n" +
		"9999,,Waterfront Station,49.2859,-123.1115,1\n",
	"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
		"WKDY,1,1,1,1,1,0,0,20250101,20261231\n",
	"shapes.txt": "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
		"S099,49.2832,-123.1164,1\n" +
		"S099,49.2700,-123.1300,2\n" +
		"S099,49.2635,-123.1385,3\n" +
		"SR4,49.2635,-123.1385,1\n" +
		"SR4,49.2339,-123.1398,2\n",
	"trips.txt": "route_id,service_id,trip_id,trip_headsign,direction_id,shape_id\n" +
		"6641,WKDY,T1,UBC,0,S099\n" +
		"37807,WKDY,T2,Joyce Stn,1,SR4\n",
	"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"T1,08:00:00,08:00:00,1,1\n" +
		"T1,08:10:00,08:10:00,2,2\n" +
		"T2,08:20:00,08:20:00,2,1\n" +
		"T2,08:30:00,08:30:00,3,2\n",
}

// BuildTestBundle zips a small Vancouver GTFS feed into an in-memory bundle.
// Other packages use it to exercise bundle loading end to end.
func BuildTestBundle(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range testBundleFiles {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to create %s in test bundle: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write %s in test bundle: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close test bundle: %v", err)
	}
	return buf.Bytes()
}
