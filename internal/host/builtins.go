package host

import (
	"fmt"
	"math"
	"strconv"
)

// Builtin returns the canonical host builtin with the given name, or nil.
// The same pointer is returned for every lookup so identity comparisons
// work the way they do in the host runtime.
func Builtin(name string) *Function {
	return builtinRegistry[name]
}

// MathFunc returns a function from the host math module, or nil.
func MathFunc(name string) *Function {
	return mathRegistry[name]
}

var builtinRegistry = map[string]*Function{}
var mathRegistry = map[string]*Function{}

func newBuiltin(name string, impl func([]Value, map[string]Value) (Value, error)) *Function {
	fn := &Function{FnName: name, Module: "builtins", Impl: impl}
	builtinRegistry[name] = fn
	return fn
}

func newMathFunc(name string, impl func(float64) float64) *Function {
	fn := &Function{
		FnName: name,
		Module: "math",
		Impl: func(args []Value, kwargs map[string]Value) (Value, error) {
			if len(args) != 1 || len(kwargs) != 0 {
				return nil, fmt.Errorf("math.%s expects one argument", name)
			}
			f, ok := toFloat(args[0])
			if !ok {
				return nil, fmt.Errorf("math.%s: %s is not a number", name, Repr(args[0]))
			}
			return impl(f), nil
		},
	}
	mathRegistry[name] = fn
	return fn
}

func toFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func toInt(v Value) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func one(args []Value, kwargs map[string]Value) (Value, error) {
	if len(args) != 1 || len(kwargs) != 0 {
		return nil, fmt.Errorf("expected exactly one argument")
	}
	return args[0], nil
}

// Builtin singletons the engine special-cases by identity. Entries without
// an Impl are never constant-folded; their semantics live in the engine's
// builtin variable.
var (
	RangeFn      = newBuiltin("range", nil)
	SliceFn      = newBuiltin("slice", nil)
	IterFn       = newBuiltin("iter", nil)
	NextFn       = newBuiltin("next", nil)
	ZipFn        = newBuiltin("zip", nil)
	EnumerateFn  = newBuiltin("enumerate", nil)
	IsinstanceFn = newBuiltin("isinstance", nil)
	SuperFn      = newBuiltin("super", nil)
	HasattrFn    = newBuiltin("hasattr", nil)
	GetattrFn    = newBuiltin("getattr", nil)

	LenFn = newBuiltin("len", func(args []Value, kwargs map[string]Value) (Value, error) {
		v, err := one(args, kwargs)
		if err != nil {
			return nil, err
		}
		switch x := v.(type) {
		case string:
			return len(x), nil
		case Tuple:
			return len(x), nil
		case List:
			return len(x), nil
		case SetLit:
			return len(x), nil
		case FrozenSet:
			return len(x), nil
		case Range:
			return x.Len(), nil
		default:
			return nil, fmt.Errorf("object of type %s has no len()", TypeOf(v).TypeName())
		}
	})

	AbsFn = newBuiltin("abs", func(args []Value, kwargs map[string]Value) (Value, error) {
		v, err := one(args, kwargs)
		if err != nil {
			return nil, err
		}
		switch x := v.(type) {
		case int:
			if x < 0 {
				return -x, nil
			}
			return x, nil
		case float64:
			return math.Abs(x), nil
		default:
			return nil, fmt.Errorf("bad operand type for abs(): %s", TypeOf(v).TypeName())
		}
	})

	BoolFn = newBuiltin("bool", func(args []Value, kwargs map[string]Value) (Value, error) {
		if len(args) == 0 {
			return false, nil
		}
		v, err := one(args, kwargs)
		if err != nil {
			return nil, err
		}
		return Truthy(v), nil
	})

	AllFn = newBuiltin("all", func(args []Value, kwargs map[string]Value) (Value, error) {
		v, err := one(args, kwargs)
		if err != nil {
			return nil, err
		}
		seq, err := asSequence(v)
		if err != nil {
			return nil, err
		}
		for _, e := range seq {
			if !Truthy(e) {
				return false, nil
			}
		}
		return true, nil
	})

	AnyFn = newBuiltin("any", func(args []Value, kwargs map[string]Value) (Value, error) {
		v, err := one(args, kwargs)
		if err != nil {
			return nil, err
		}
		seq, err := asSequence(v)
		if err != nil {
			return nil, err
		}
		for _, e := range seq {
			if Truthy(e) {
				return true, nil
			}
		}
		return false, nil
	})

	CallableFn = newBuiltin("callable", func(args []Value, kwargs map[string]Value) (Value, error) {
		v, err := one(args, kwargs)
		if err != nil {
			return nil, err
		}
		switch v.(type) {
		case *Function, *Class, *BuiltinType:
			return true, nil
		default:
			return false, nil
		}
	})

	ChrFn = newBuiltin("chr", func(args []Value, kwargs map[string]Value) (Value, error) {
		v, err := one(args, kwargs)
		if err != nil {
			return nil, err
		}
		i, ok := toInt(v)
		if !ok {
			return nil, fmt.Errorf("chr() requires an integer")
		}
		return string(rune(i)), nil
	})

	OrdFn = newBuiltin("ord", func(args []Value, kwargs map[string]Value) (Value, error) {
		v, err := one(args, kwargs)
		if err != nil {
			return nil, err
		}
		s, ok := v.(string)
		if !ok || len([]rune(s)) != 1 {
			return nil, fmt.Errorf("ord() expects a one-character string")
		}
		return int([]rune(s)[0]), nil
	})

	DivmodFn = newBuiltin("divmod", func(args []Value, kwargs map[string]Value) (Value, error) {
		if len(args) != 2 || len(kwargs) != 0 {
			return nil, fmt.Errorf("divmod expects two arguments")
		}
		a, aok := toInt(args[0])
		b, bok := toInt(args[1])
		if !aok || !bok || b == 0 {
			return nil, fmt.Errorf("divmod(%s, %s) unsupported", Repr(args[0]), Repr(args[1]))
		}
		q := int(math.Floor(float64(a) / float64(b)))
		return Tuple{q, a - q*b}, nil
	})

	FloatFn = newBuiltin("float", func(args []Value, kwargs map[string]Value) (Value, error) {
		if len(args) == 0 {
			return 0.0, nil
		}
		v, err := one(args, kwargs)
		if err != nil {
			return nil, err
		}
		if s, ok := v.(string); ok {
			return strconv.ParseFloat(s, 64)
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("float() argument must be a number, not %s", TypeOf(v).TypeName())
		}
		return f, nil
	})

	IntFn = newBuiltin("int", func(args []Value, kwargs map[string]Value) (Value, error) {
		if len(args) == 0 {
			return 0, nil
		}
		v, err := one(args, kwargs)
		if err != nil {
			return nil, err
		}
		switch x := v.(type) {
		case string:
			return strconv.Atoi(x)
		case float64:
			return int(x), nil
		default:
			i, ok := toInt(v)
			if !ok {
				return nil, fmt.Errorf("int() argument must be a number, not %s", TypeOf(v).TypeName())
			}
			return i, nil
		}
	})

	ListFn = newBuiltin("list", func(args []Value, kwargs map[string]Value) (Value, error) {
		if len(args) == 0 {
			return List{}, nil
		}
		v, err := one(args, kwargs)
		if err != nil {
			return nil, err
		}
		seq, err := asSequence(v)
		if err != nil {
			return nil, err
		}
		return List(append([]Value{}, seq...)), nil
	})

	TupleFn = newBuiltin("tuple", func(args []Value, kwargs map[string]Value) (Value, error) {
		if len(args) == 0 {
			return Tuple{}, nil
		}
		v, err := one(args, kwargs)
		if err != nil {
			return nil, err
		}
		seq, err := asSequence(v)
		if err != nil {
			return nil, err
		}
		return Tuple(append([]Value{}, seq...)), nil
	})

	DictFn = newBuiltin("dict", nil)

	MaxFn = newBuiltin("max", extremum(1))
	MinFn = newBuiltin("min", extremum(-1))

	PowFn = newBuiltin("pow", func(args []Value, kwargs map[string]Value) (Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("pow expects two arguments")
		}
		if a, ok := args[0].(int); ok {
			if b, ok := args[1].(int); ok && b >= 0 {
				r := 1
				for i := 0; i < b; i++ {
					r *= a
				}
				return r, nil
			}
		}
		a, aok := toFloat(args[0])
		b, bok := toFloat(args[1])
		if !aok || !bok {
			return nil, fmt.Errorf("pow() arguments must be numbers")
		}
		return math.Pow(a, b), nil
	})

	ReprFn = newBuiltin("repr", func(args []Value, kwargs map[string]Value) (Value, error) {
		v, err := one(args, kwargs)
		if err != nil {
			return nil, err
		}
		return Repr(v), nil
	})

	RoundFn = newBuiltin("round", func(args []Value, kwargs map[string]Value) (Value, error) {
		v, err := one(args, kwargs)
		if err != nil {
			return nil, err
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("round() argument must be a number")
		}
		return int(math.RoundToEven(f)), nil
	})

	StrFn = newBuiltin("str", func(args []Value, kwargs map[string]Value) (Value, error) {
		if len(args) == 0 {
			return "", nil
		}
		v, err := one(args, kwargs)
		if err != nil {
			return nil, err
		}
		if s, ok := v.(string); ok {
			return s, nil
		}
		return Repr(v), nil
	})

	SumFn = newBuiltin("sum", func(args []Value, kwargs map[string]Value) (Value, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("sum expects one or two arguments")
		}
		seq, err := asSequence(args[0])
		if err != nil {
			return nil, err
		}
		intSum, floatSum := 0, 0.0
		isFloat := false
		if len(args) == 2 {
			switch s := args[1].(type) {
			case int:
				intSum = s
			case float64:
				floatSum, isFloat = s, true
			default:
				return nil, fmt.Errorf("sum() start must be a number")
			}
		}
		for _, e := range seq {
			switch x := e.(type) {
			case int:
				intSum += x
			case float64:
				floatSum += x
				isFloat = true
			default:
				return nil, fmt.Errorf("sum() over non-numeric %s", Repr(e))
			}
		}
		if isFloat {
			return floatSum + float64(intSum), nil
		}
		return intSum, nil
	})

	TypeFn = newBuiltin("type", func(args []Value, kwargs map[string]Value) (Value, error) {
		v, err := one(args, kwargs)
		if err != nil {
			return nil, err
		}
		return TypeOf(v), nil
	})
)

func extremum(sign int) func([]Value, map[string]Value) (Value, error) {
	return func(args []Value, kwargs map[string]Value) (Value, error) {
		var seq []Value
		if len(args) == 1 {
			var err error
			seq, err = asSequence(args[0])
			if err != nil {
				return nil, err
			}
		} else {
			seq = args
		}
		if len(seq) == 0 {
			return nil, fmt.Errorf("empty extremum")
		}
		best := seq[0]
		for _, e := range seq[1:] {
			bf, bok := toFloat(best)
			ef, eok := toFloat(e)
			if !bok || !eok {
				return nil, fmt.Errorf("extremum over non-numeric %s", Repr(e))
			}
			if sign > 0 && ef > bf || sign < 0 && ef < bf {
				best = e
			}
		}
		return best, nil
	}
}

// Math module functions; all are pure and foldable.
var (
	MathSqrt  = newMathFunc("sqrt", math.Sqrt)
	MathSin   = newMathFunc("sin", math.Sin)
	MathCos   = newMathFunc("cos", math.Cos)
	MathTan   = newMathFunc("tan", math.Tan)
	MathExp   = newMathFunc("exp", math.Exp)
	MathLog   = newMathFunc("log", math.Log)
	MathLog2  = newMathFunc("log2", math.Log2)
	MathLog10 = newMathFunc("log10", math.Log10)
	MathFloorF = newMathFunc("floor", math.Floor)
	MathCeilF  = newMathFunc("ceil", math.Ceil)
	MathFabs   = newMathFunc("fabs", math.Abs)
	MathAsin   = newMathFunc("asin", math.Asin)
	MathAcos   = newMathFunc("acos", math.Acos)
	MathAtan   = newMathFunc("atan", math.Atan)
)
