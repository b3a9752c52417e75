package classifier

// Known noise that is never a toponym. These take priority over any ontology rule.
var staticIgnoreRules = []map[string]string{
	{"public_transport": "stop_position"},
	{"place": "subdivision"},
	{"pipeline": "inspection_chamber"},
	{"amenity": "postbox"},
	{"amenity": "charging_station"},
	{"amenity": "vending_machine"},
	{"entrance": "residence"},
	{"building": "entrance"},
	{"amenity": "dog_agility_obstacle"},
	{"wpt_symbol": "Crossing"},
	{"wpt_symbol": "Waypoint"},
	{"power": "line"},
	{"route": "road"},
	{"route": "tram"},
	{"route": "ferry"},
	{"route": "mtb"},
	{"route": "hiking"},
	{"route": "bicycle"},
	{"route": "railway"},
	{"route": "bus"},
	{"route": "foot"},
	{"route": "train"},
	{"boundary": "toll"},
	{"boundary": "protected_area"},
	{"boundary": "statistical"},
	{"boundary": "police"},
	{"boundary": "administrative", "admin_level": "5"},
	{"boundary": "political"},
	{"boundary": "vice_county"},
	{"public_transport": "pay_scale_area"},
}

// Tags that never help to tell toponym types apart.
var cosmeticKeys = []string{
	"name", "phone", "wikipedia", "route_name", "route_pref_color", "way_area", "building:part",
	"website", "wheelchair", "postal_code", "license_notice", "description", "operator", "alt_name",
	"email", "old_name", "date", "opening_hours", "genus", "inscription", "url", "height", "ref",
	"direction", "is_in", "species", "wpt_description", "wpt_symbol", "ele", "capacity", "occupier",
	"polling_station", "layer",
}

var cosmeticPrefixes = []string{
	"addr:", "name:", "building:", "roof:", "disused:", "ref:", "is_in:", "contact:", "date:",
	"genus:", "seamark:",
}
