package types

import "fmt"

// Server is a bonk.io game server region. APIName is the hostname label
// the room protocol connects to; the geo fields are echoed in the room
// creation payload.
type Server struct {
	APIName   string
	Latitude  float64
	Longitude float64
	Country   string
}

var (
	ServerWarsaw       = Server{APIName: "b2warsaw1", Latitude: 52.2370, Longitude: 21.0175, Country: "PL"}
	ServerParis        = Server{APIName: "b2paris1", Latitude: 48.8647, Longitude: 2.3490, Country: "FR"}
	ServerStockholm    = Server{APIName: "b2stockholm1", Latitude: 59.3346, Longitude: 18.0632, Country: "SE"}
	ServerFrankfurt    = Server{APIName: "b2frankfurt1", Latitude: 50.1109, Longitude: 8.6821, Country: "GE"}
	ServerAmsterdam    = Server{APIName: "b2amsterdam1", Latitude: 52.3779, Longitude: 4.897, Country: "NL"}
	ServerLondon       = Server{APIName: "b2london1", Latitude: 51.5098, Longitude: -0.1180, Country: "UK"}
	ServerSeoul        = Server{APIName: "b2seoul1", Latitude: 37.5326, Longitude: 127.0246, Country: "KR"}
	ServerSeattle      = Server{APIName: "b2seattle1", Latitude: 47.6080, Longitude: -122.3352, Country: "US"}
	ServerSanFrancisco = Server{APIName: "b2sanfrancisco1", Latitude: 37.7740, Longitude: -122.4312, Country: "US"}
	ServerMississippi  = Server{APIName: "b2river1", Latitude: 35.5147, Longitude: -89.9125, Country: "US"}
	ServerDallas       = Server{APIName: "b2dallas1", Latitude: 32.7792, Longitude: -96.8089, Country: "US"}
	ServerNewYork      = Server{APIName: "b2ny1", Latitude: 40.7306, Longitude: -73.9352, Country: "US"}
	ServerAtlanta      = Server{APIName: "b2atlanta1", Latitude: 33.7537, Longitude: -84.3863, Country: "US"}
	ServerSydney       = Server{APIName: "b2sydney1", Latitude: -33.8651, Longitude: 151.2099, Country: "AU"}
	ServerBrazil       = Server{APIName: "b2brazil1", Latitude: -22.9083, Longitude: -43.1963, Country: "BR"}
)

// AllServers lists every known server region.
var AllServers = []Server{
	ServerWarsaw, ServerParis, ServerStockholm, ServerFrankfurt, ServerAmsterdam,
	ServerLondon, ServerSeoul, ServerSeattle, ServerSanFrancisco, ServerMississippi,
	ServerDallas, ServerNewYork, ServerAtlanta, ServerSydney, ServerBrazil,
}

// String returns the API hostname label for the server.
func (s Server) String() string { return s.APIName }

// Valid reports whether s is one of the known server regions.
func (s Server) Valid() bool {
	for _, known := range AllServers {
		if known == s {
			return true
		}
	}
	return false
}

// ServerFromAPIName maps a hostname label like "b2warsaw1" to a Server.
func ServerFromAPIName(apiName string) (Server, error) {
	for _, s := range AllServers {
		if s.APIName == apiName {
			return s, nil
		}
	}
	return Server{}, fmt.Errorf("unknown server %q", apiName)
}
