package pcf

import "github.com/wolfeidau/pcfhub/internal/apperr"

// wireUnits maps internal unit codes to declared unit names on the wire.
var wireUnits = map[string]string{
	"l":   "liter",
	"kg":  "kilogram",
	"m3":  "cubic meter",
	"kWh": "kilowatt hour",
	"MJ":  "megajoule",
	"tkm": "ton kilometer",
	"m2":  "square meter",
}

var internalUnits = invert(wireUnits)

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// UnitToWire returns the declared unit name for an internal unit code.
func UnitToWire(unit string) (string, error) {
	w, ok := wireUnits[unit]
	if !ok {
		return "", apperr.Request("unsupported unit %q", unit)
	}
	return w, nil
}

// UnitFromWire returns the internal unit code for a declared unit name.
func UnitFromWire(declared string) (string, error) {
	u, ok := internalUnits[declared]
	if !ok {
		return "", apperr.Request("unsupported declared unit %q", declared)
	}
	return u, nil
}
