package mapdoc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Map is the top-level save document. It is assembled exactly once and
// serialized exactly once; nothing mutates it afterwards.
type Map struct {
	GameVersion string     `json:"GameVersion"`
	Singletons  Singletons `json:"Singletons"`
	Entities    []Entity   `json:"Entities"`
}

type Singletons struct {
	MapSize               MapSize               `json:"MapSize"`
	SoilMoistureSimulator SoilMoistureSimulator `json:"SoilMoistureSimulator"`
	TerrainMap            TerrainMap            `json:"TerrainMap"`
	WaterMap              WaterMap              `json:"WaterMap"`
}

type MapSize struct {
	Size Size `json:"Size"`
}

type Size struct {
	X int `json:"X"`
	Y int `json:"Y"`
}

type TerrainMap struct {
	Heights IntArray `json:"Heights"`
}

type SoilMoistureSimulator struct {
	MoistureLevels FloatArray `json:"MoistureLevels"`
}

type WaterMap struct {
	WaterDepths FloatArray  `json:"WaterDepths"`
	Outflows    StringArray `json:"Outflows"`
}

// NoOutflow is the constant outflow token emitted once per cell.
const NoOutflow = "0:0:0:0"

// The save format stores per-cell grids as a single space-joined token
// string under an "Array" key, row-major with width fastest. IntArray,
// FloatArray and StringArray marshal to and from that encoding.

type IntArray []int

func (a IntArray) MarshalJSON() ([]byte, error) {
	tokens := make([]string, len(a))
	for i, v := range a {
		tokens[i] = strconv.Itoa(v)
	}
	return marshalTokens(tokens)
}

func (a *IntArray) UnmarshalJSON(b []byte) error {
	tokens, err := unmarshalTokens(b)
	if err != nil {
		return err
	}
	out := make(IntArray, len(tokens))
	for i, tok := range tokens {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return fmt.Errorf("mapdoc: token %d: %w", i, err)
		}
		out[i] = v
	}
	*a = out
	return nil
}

type FloatArray []float64

func (a FloatArray) MarshalJSON() ([]byte, error) {
	tokens := make([]string, len(a))
	for i, v := range a {
		tokens[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return marshalTokens(tokens)
}

func (a *FloatArray) UnmarshalJSON(b []byte) error {
	tokens, err := unmarshalTokens(b)
	if err != nil {
		return err
	}
	out := make(FloatArray, len(tokens))
	for i, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("mapdoc: token %d: %w", i, err)
		}
		out[i] = v
	}
	*a = out
	return nil
}

type StringArray []string

func (a StringArray) MarshalJSON() ([]byte, error) {
	return marshalTokens(a)
}

func (a *StringArray) UnmarshalJSON(b []byte) error {
	tokens, err := unmarshalTokens(b)
	if err != nil {
		return err
	}
	*a = tokens
	return nil
}

type arrayEnvelope struct {
	Array string `json:"Array"`
}

func marshalTokens(tokens []string) ([]byte, error) {
	return json.Marshal(arrayEnvelope{Array: strings.Join(tokens, " ")})
}

func unmarshalTokens(b []byte) ([]string, error) {
	var env arrayEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	if env.Array == "" {
		return nil, nil
	}
	return strings.Split(env.Array, " "), nil
}

// Entity is one placed map object: a fresh unique id, the species
// template it instantiates, and its component bag.
type Entity struct {
	ID           string     `json:"Id"`
	TemplateName string     `json:"TemplateName"`
	Components   Components `json:"Components"`
}

// Components mirrors the component set the map editor expects on a
// natural resource. The two optional members are only present for
// species with a secondary gatherable yield.
type Components struct {
	BlockObject                    BlockObject           `json:"BlockObject"`
	BuilderJob                     struct{}              `json:"BuilderJob"`
	CoordinatesOffseter            CoordinatesOffseter   `json:"CoordinatesOffseter"`
	Demolishable                   struct{}              `json:"Demolishable"`
	Growable                       Growable              `json:"Growable"`
	LivingNaturalResource          LivingNaturalResource `json:"LivingNaturalResource"`
	NaturalResourceModelRandomizer ModelRandomizer       `json:"NaturalResourceModelRandomizer"`
	Prioritizable                  Prioritizable         `json:"Prioritizable"`
	WateredObject                  WateredObject         `json:"WateredObject"`
	YielderCuttable                Yielder               `json:"Yielder:Cuttable"`
	Inventory                      GoodStack             `json:"Inventory:GoodStack"`
	GatherableYieldGrower          *YieldGrower          `json:"GatherableYieldGrower,omitempty"`
	YielderGatherable              *Yielder              `json:"Yielder:Gatherable,omitempty"`
}

type BlockObject struct {
	Coordinates Coordinates `json:"Coordinates"`
	Orientation Orientation `json:"Orientation"`
}

type Coordinates struct {
	X int `json:"X"`
	Y int `json:"Y"`
	Z int `json:"Z"`
}

type Orientation struct {
	Value string `json:"Value"`
}

type CoordinatesOffseter struct {
	CoordinatesOffset Offset `json:"CoordinatesOffset"`
}

type Offset struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
}

type Growable struct {
	GrowthProgress float64 `json:"GrowthProgress"`
}

type LivingNaturalResource struct {
	IsDead bool `json:"IsDead"`
}

type ModelRandomizer struct {
	Rotation      float64 `json:"Rotation"`
	DiameterScale float64 `json:"DiameterScale"`
	HeightScale   float64 `json:"HeightScale"`
}

type Prioritizable struct {
	Priority Priority `json:"Priority"`
}

type Priority struct {
	Value string `json:"Value"`
}

type WateredObject struct {
	IsDry bool `json:"IsDry"`
}

type Yielder struct {
	Yield Yield `json:"Yield"`
}

type Yield struct {
	Good   Good `json:"Good"`
	Amount int  `json:"Amount"`
}

type Good struct {
	ID string `json:"Id"`
}

type YieldGrower struct {
	GrowthProgress float64 `json:"GrowthProgress"`
}

type GoodStack struct {
	Storage Storage `json:"Storage"`
}

type Storage struct {
	Goods []Good `json:"Goods"`
}
