package xdr

import "fmt"

// unitNames indexes DLMS UA 1000-1 table 4 (physical units); index 0 and the
// reserved codes 58, 59, 68, 69 all read "unknown".
var unitNames = [...]string{"unknown",
	// 1
	"a", "mo", "wk", "d", "h", "min.", "s", "°", "°C",
	// 10
	"currency", "m", "m/s", "m³", "m³", "m³/h", "m³/h", "m³/d", "m³/d", "l",
	// 20
	"kg", "N", "Nm", "Pa", "bar", "J", "J/h", "W", "VA", "var",
	// 30
	"Wh", "VAh", "varh", "A", "C", "V", "V/m", "F", "Ω", "Ωm²/m",
	// 40
	"Wb", "T", "A/m", "H", "Hz", "1/(Wh)", "1/(varh)", "1/(VAh)", "V²h", "A²h",
	// 50
	"kg/s", "S", "K", "1/(V²h)", "1/(A²h)", "1/m³", "%", "Ah", "unknown", "unknown",
	// 60
	"Wh/m³", "J/m³", "Mol %", "g/m³", "Pa s", "J/kg", "g/cm²", "atm", "unknown", "unknown",
	// 70
	"dBm", "dbµV", "dB",
}

// UnitName resolves a DLMS unit code to its display string, returning
// "unknown" for anything out of range or reserved.
func UnitName(code uint8) string {
	if int(code) >= len(unitNames) {
		return unitNames[0]
	}
	return unitNames[code]
}

// ScalerUnit is the {scaler, unit} structure attached to Register/Extended-
// Register/Demand-Register scaler_unit attributes (clause 4.3.2): the raw
// register value is multiplied by 10^Scaler to obtain the value in Unit.
type ScalerUnit struct {
	Scaler int8
	Unit   uint8
}

func (s ScalerUnit) String() string {
	return fmt.Sprintf("10^%d %s", s.Scaler, UnitName(s.Unit))
}

// Apply scales raw by 10^Scaler, returning the physical value in s.Unit.
func (s ScalerUnit) Apply(raw float64) float64 {
	scale := 1.0
	if s.Scaler >= 0 {
		for i := int8(0); i < s.Scaler; i++ {
			scale *= 10
		}
	} else {
		for i := int8(0); i < -s.Scaler; i++ {
			scale /= 10
		}
	}
	return raw * scale
}

// ScalerUnitFromData extracts a ScalerUnit from its on-wire Structure{Integer
// scaler, Enum unit} representation, as returned by a GET of a scaler_unit
// attribute.
func ScalerUnitFromData(d Data) (ScalerUnit, error) {
	items, ok := d.Value.([]Data)
	if !ok || d.Tag != TagStructure || len(items) != 2 {
		return ScalerUnit{}, fmt.Errorf("xdr: scaler_unit requires a 2-element structure, got %v", d.Tag)
	}
	scaler, err := asInt64(items[0].Value)
	if err != nil {
		return ScalerUnit{}, fmt.Errorf("xdr: scaler_unit scaler field: %w", err)
	}
	unit, ok := items[1].Value.(uint8)
	if !ok {
		return ScalerUnit{}, fmt.Errorf("xdr: scaler_unit unit field: unsupported payload %T", items[1].Value)
	}
	return ScalerUnit{Scaler: int8(scaler), Unit: unit}, nil
}

// Encode renders s as the on-wire Structure{Integer, Enum}.
func (s ScalerUnit) Encode() Data {
	return Data{Tag: TagStructure, Value: []Data{
		{Tag: TagInteger, Value: s.Scaler},
		{Tag: TagEnum, Value: s.Unit},
	}}
}
