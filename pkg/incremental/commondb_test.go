package incremental_test

import (
	"github.com/aardwolf-sfl/increcache/pkg/increxample"
	"github.com/aardwolf-sfl/increcache/pkg/incremental"
	"github.com/aardwolf-sfl/increcache/pkg/incremental/input"
)

// Param is the parametrized-input key used by scenarios S1-S3, mirroring
// the reference test suite's four-valued enum.
type Param int

const (
	ParamFoo Param = iota
	ParamBar
	ParamBaz
	ParamQux
)

// commonStorage is the shared fixture storage group for scenarios S1, S2,
// S3, S5 and S6: three plain integer inputs (a, b, c), one parametrized
// integer input, and one optional integer input that is deliberately never
// set by newCommonSystem.
type commonStorage struct {
	a            *input.Table[struct{}, int]
	b            *input.Table[struct{}, int]
	c            *input.Table[struct{}, int]
	parametrized *input.Table[Param, int]
	optional     *input.Table[struct{}, int]
}

func newCommonStorage() commonStorage {
	return commonStorage{
		a:            input.NewTable[struct{}, int](),
		b:            input.NewTable[struct{}, int](),
		c:            input.NewTable[struct{}, int](),
		parametrized: input.NewTable[Param, int](),
		optional:     input.NewTable[struct{}, int](),
	}
}

var aInput = input.NewKind[struct{}, int, commonStorage](0, func(g *commonStorage) *input.Table[struct{}, int] { return g.a })
var bInput = input.NewKind[struct{}, int, commonStorage](1, func(g *commonStorage) *input.Table[struct{}, int] { return g.b })
var cInput = input.NewKind[struct{}, int, commonStorage](2, func(g *commonStorage) *input.Table[struct{}, int] { return g.c })
var parametrizedInput = input.NewKind[Param, int, commonStorage](3, func(g *commonStorage) *input.Table[Param, int] { return g.parametrized })
var optionalInput = input.NewKind[struct{}, int, commonStorage](4, func(g *commonStorage) *input.Table[struct{}, int] { return g.optional })

type commonSystem[K comparable] = increxample.System[commonStorage, K]

// newCommonSystem builds a commonSystem[K] with a, b, c, and every
// parametrized value seeded to zero (optional is deliberately left unset),
// matching RealSystem::new in the reference test suite.
func newCommonSystem[K comparable](useLock bool) *commonSystem[K] {
	sys := increxample.New[commonStorage, K](newCommonStorage(), useLock)
	setA(sys, 0)
	setB(sys, 0)
	setC(sys, 0)
	for _, p := range []Param{ParamFoo, ParamBar, ParamBaz, ParamQux} {
		setParametrized(sys, p, 0)
	}
	return sys
}

func setA[K comparable](sys *commonSystem[K], value int) {
	incremental.SetInput(sys.Runtime, aInput, struct{}{}, value)
}

func setB[K comparable](sys *commonSystem[K], value int) {
	incremental.SetInput(sys.Runtime, bInput, struct{}{}, value)
}

func setC[K comparable](sys *commonSystem[K], value int) {
	incremental.SetInput(sys.Runtime, cInput, struct{}{}, value)
}

// removeA removes a's value entirely, exercising Runtime.RemoveInput: any
// cached query that read a through getA must be invalidated by this, same
// as a plain setA overwrite would.
func removeA[K comparable](sys *commonSystem[K]) {
	incremental.RemoveInput(sys.Runtime, aInput, struct{}{})
}

func setParametrized[K comparable](sys *commonSystem[K], param Param, value int) {
	incremental.SetInput(sys.Runtime, parametrizedInput, param, value)
}

func setOptional[K comparable](sys *commonSystem[K], value int) {
	incremental.SetInput(sys.Runtime, optionalInput, struct{}{}, value)
}

func getA(ctx *incremental.QueryContext[commonStorage]) int {
	v, _ := incremental.UseInput(ctx, aInput, struct{}{})
	return v
}

func getB(ctx *incremental.QueryContext[commonStorage]) int {
	v, _ := incremental.UseInput(ctx, bInput, struct{}{})
	return v
}

func getC(ctx *incremental.QueryContext[commonStorage]) int {
	v, _ := incremental.UseInput(ctx, cInput, struct{}{})
	return v
}

func getParametrized(ctx *incremental.QueryContext[commonStorage], param Param) int {
	v, _ := incremental.UseInput(ctx, parametrizedInput, param)
	return v
}
