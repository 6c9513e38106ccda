package registry

import (
	"fmt"
	"io"
	"strings"

	"github.com/chazu/ifa/pkg/value"
)

// ArgError reports a native called with unsuitable arguments.
type ArgError struct {
	Call string
	Msg  string
}

func (e *ArgError) Error() string {
	return e.Call + ": " + e.Msg
}

// Standard returns a table holding the core Irosu, Obara, Ika and Ogunda
// methods. Console output goes to out.
func Standard(out io.Writer) *Table {
	t := NewTable()
	t.registerIrosu(out)
	t.registerObara()
	t.registerIka()
	t.registerOgunda()
	return t
}

// alias registers fn under every name.
func (t *Table) alias(d Domain, fn Func, names ...string) {
	for _, n := range names {
		t.Register(d, n, fn)
	}
}

func want(call string, args []value.Value, n int) error {
	if len(args) != n {
		return &ArgError{Call: call, Msg: fmt.Sprintf("expected %d arguments, got %d", n, len(args))}
	}
	return nil
}

func strArg(call string, args []value.Value, i int) (string, error) {
	s, ok := args[i].(value.Str)
	if !ok {
		return "", &ArgError{Call: call, Msg: fmt.Sprintf("argument %d must be str, got %s", i, args[i].Kind())}
	}
	return string(s), nil
}

func listArg(call string, args []value.Value, i int) (*value.List, error) {
	l, ok := args[i].(*value.List)
	if !ok {
		return nil, &ArgError{Call: call, Msg: fmt.Sprintf("argument %d must be list, got %s", i, args[i].Kind())}
	}
	return l, nil
}

func (t *Table) registerIrosu(out io.Writer) {
	t.alias(Irosu, func(args []value.Value) (value.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.String()
		}
		_, err := fmt.Fprintln(out, strings.Join(parts, " "))
		return value.Null{}, err
	}, "fo", "sọ", "print", "println")
}

func (t *Table) registerObara() {
	fold := func(call string, op func(a, b value.Value) (value.Value, error)) Func {
		return func(args []value.Value) (value.Value, error) {
			if len(args) == 0 {
				return nil, &ArgError{Call: call, Msg: "expected at least 1 argument"}
			}
			acc := args[0]
			for _, a := range args[1:] {
				var err error
				if acc, err = op(acc, a); err != nil {
					return nil, err
				}
			}
			return acc, nil
		}
	}
	t.alias(Obara, fold("Obara.fikun", value.Add), "fikun", "add")
	t.alias(Obara, fold("Obara.isodipupo", value.Mul), "isodipupo", "mul", "multiply")
	t.alias(Obara, func(args []value.Value) (value.Value, error) {
		if err := want("Obara.agbara", args, 2); err != nil {
			return nil, err
		}
		return value.Pow(args[0], args[1])
	}, "agbara", "pow", "power")
	t.alias(Obara, func(args []value.Value) (value.Value, error) {
		if err := want("Obara.abs", args, 1); err != nil {
			return nil, err
		}
		if c, err := value.Compare(args[0], value.Int(0)); err != nil {
			return nil, err
		} else if c < 0 {
			return value.Neg(args[0])
		}
		return args[0], nil
	}, "abs")
	pick := func(call string, keep int) Func {
		return func(args []value.Value) (value.Value, error) {
			if len(args) == 0 {
				return nil, &ArgError{Call: call, Msg: "expected at least 1 argument"}
			}
			best := args[0]
			for _, a := range args[1:] {
				c, err := value.Compare(a, best)
				if err != nil {
					return nil, err
				}
				if c == keep {
					best = a
				}
			}
			return best, nil
		}
	}
	t.alias(Obara, pick("Obara.max", 1), "max")
	t.alias(Obara, pick("Obara.min", -1), "min")
}

func (t *Table) registerIka() {
	t.alias(Ika, func(args []value.Value) (value.Value, error) {
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(a.String())
		}
		return value.Str(sb.String()), nil
	}, "so", "concat")
	t.alias(Ika, func(args []value.Value) (value.Value, error) {
		if err := want("Ika.gigun", args, 1); err != nil {
			return nil, err
		}
		n, err := value.Len(args[0])
		return value.Int(n), err
	}, "gigun", "len")
	strFn := func(call string, fn func(string) string) Func {
		return func(args []value.Value) (value.Value, error) {
			if err := want(call, args, 1); err != nil {
				return nil, err
			}
			s, err := strArg(call, args, 0)
			if err != nil {
				return nil, err
			}
			return value.Str(fn(s)), nil
		}
	}
	t.alias(Ika, strFn("Ika.nla", strings.ToUpper), "nla", "uppercase", "upper")
	t.alias(Ika, strFn("Ika.kekere", strings.ToLower), "kekere", "lowercase", "lower")
	t.alias(Ika, strFn("Ika.trim", strings.TrimSpace), "trim")
	t.alias(Ika, func(args []value.Value) (value.Value, error) {
		if err := want("Ika.ni", args, 2); err != nil {
			return nil, err
		}
		s, err := strArg("Ika.ni", args, 0)
		if err != nil {
			return nil, err
		}
		sub, err := strArg("Ika.ni", args, 1)
		if err != nil {
			return nil, err
		}
		return value.Bool(strings.Contains(s, sub)), nil
	}, "ni", "contains", "has")
	t.alias(Ika, func(args []value.Value) (value.Value, error) {
		if err := want("Ika.pin", args, 2); err != nil {
			return nil, err
		}
		s, err := strArg("Ika.pin", args, 0)
		if err != nil {
			return nil, err
		}
		sep, err := strArg("Ika.pin", args, 1)
		if err != nil {
			return nil, err
		}
		parts := strings.Split(s, sep)
		items := make([]value.Value, len(parts))
		for i, p := range parts {
			items[i] = value.Str(p)
		}
		return value.NewList(items...), nil
	}, "pin", "split")
	t.alias(Ika, func(args []value.Value) (value.Value, error) {
		if err := want("Ika.dapo", args, 2); err != nil {
			return nil, err
		}
		l, err := listArg("Ika.dapo", args, 0)
		if err != nil {
			return nil, err
		}
		sep, err := strArg("Ika.dapo", args, 1)
		if err != nil {
			return nil, err
		}
		parts := make([]string, len(l.Items))
		for i, item := range l.Items {
			parts[i] = item.String()
		}
		return value.Str(strings.Join(parts, sep)), nil
	}, "dapo", "join")
}

func (t *Table) registerOgunda() {
	t.alias(Ogunda, func(args []value.Value) (value.Value, error) {
		return value.NewList(append([]value.Value(nil), args...)...), nil
	}, "da", "create", "new")
	t.alias(Ogunda, func(args []value.Value) (value.Value, error) {
		if err := want("Ogunda.gigun", args, 1); err != nil {
			return nil, err
		}
		l, err := listArg("Ogunda.gigun", args, 0)
		if err != nil {
			return nil, err
		}
		return value.Int(len(l.Items)), nil
	}, "iwon", "gigun", "len")
	t.alias(Ogunda, func(args []value.Value) (value.Value, error) {
		if err := want("Ogunda.fi", args, 2); err != nil {
			return nil, err
		}
		return value.Append(args[0], args[1])
	}, "fi", "fikun", "push", "append")
	t.alias(Ogunda, func(args []value.Value) (value.Value, error) {
		if err := want("Ogunda.mu", args, 1); err != nil {
			return nil, err
		}
		l, err := listArg("Ogunda.mu", args, 0)
		if err != nil {
			return nil, err
		}
		if len(l.Items) == 0 {
			return value.Null{}, nil
		}
		return l.Items[len(l.Items)-1], nil
	}, "mu", "yọ", "pop")
	edge := func(call string, first bool) Func {
		return func(args []value.Value) (value.Value, error) {
			if err := want(call, args, 1); err != nil {
				return nil, err
			}
			l, err := listArg(call, args, 0)
			if err != nil {
				return nil, err
			}
			if len(l.Items) == 0 {
				return value.Null{}, nil
			}
			if first {
				return l.Items[0], nil
			}
			return l.Items[len(l.Items)-1], nil
		}
	}
	t.alias(Ogunda, edge("Ogunda.akọkọ", true), "akọkọ", "first")
	t.alias(Ogunda, edge("Ogunda.ikẹhin", false), "ikẹhin", "last")
}
