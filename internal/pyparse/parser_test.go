package pyparse

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const serverSource = `from mcp.server.fastmcp import FastMCP

mcp = FastMCP("demo")

@mcp.tool()
async def scan_page(url: str, timeout: int = 30) -> str:
    """Scan a web page.

    Returns the text.
    """
    return url
`

func TestParse_ToolFunction(t *testing.T) {
	mod, err := Parse(serverSource)
	require.NoError(t, err)
	require.Len(t, mod.Funcs, 1)

	fn := mod.Funcs[0]
	require.Equal(t, "scan_page", fn.Name)
	require.True(t, fn.Async)
	require.Equal(t, 6, fn.Pos.Line)
	require.Equal(t, []Expr{
		Call{Func: Attribute{Value: Name{ID: "mcp"}, Attr: "tool"}},
	}, fn.Decorators)

	require.Len(t, fn.Args.Args, 2)
	require.Equal(t, "url", fn.Args.Args[0].Name)
	require.Equal(t, Name{ID: "str"}, fn.Args.Args[0].Annotation)
	require.Equal(t, "timeout", fn.Args.Args[1].Name)
	require.Equal(t, []Expr{Constant{Kind: ConstNumber, Value: "30"}}, fn.Args.Defaults)
	require.Equal(t, Name{ID: "str"}, fn.Returns)

	require.NotNil(t, fn.Docstring)
	require.Equal(t, "Scan a web page.\n\nReturns the text.", CleanDoc(*fn.Docstring))
}

func TestParse_DecoratorArguments(t *testing.T) {
	src := "@server.tool(name=\"x\", tags=[1, 2])\n@other\ndef f(): pass\n"
	mod, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, mod.Funcs, 1)
	require.Equal(t, []Expr{
		Call{Func: Attribute{Value: Name{ID: "server"}, Attr: "tool"}, Args: []string{`name="x"`, "tags=[1, 2]"}},
		Name{ID: "other"},
	}, mod.Funcs[0].Decorators)
	require.Equal(t, 3, mod.Funcs[0].Pos.Line)
}

func TestParse_NestedDefinitions(t *testing.T) {
	src := `class Server:
    @mcp.tool()
    def method(self, x):
        pass

def outer():
    def inner():
        pass
    return inner

if True:
    def conditional():
        pass
else:
    pass
`
	mod, err := Parse(src)
	require.NoError(t, err)

	var names []string
	for _, fn := range mod.Funcs {
		names = append(names, fn.Name)
	}
	require.Equal(t, []string{"method", "outer", "inner", "conditional"}, names)
	require.Equal(t, []string{"self", "x"}, []string{mod.Funcs[0].Args.Args[0].Name, mod.Funcs[0].Args.Args[1].Name})
}

func TestParse_ParameterKinds(t *testing.T) {
	mod, err := Parse("def f(a, b=1, /, c=-2, *args, d, e=None, **kw): pass\n")
	require.NoError(t, err)
	args := mod.Funcs[0].Args

	names := func(list []Arg) []string {
		var out []string
		for _, a := range list {
			out = append(out, a.Name)
		}
		return out
	}
	require.Equal(t, []string{"a", "b"}, names(args.PosOnly))
	require.Equal(t, []string{"c"}, names(args.Args))
	require.Equal(t, []string{"a", "b", "c"}, names(args.Positional()))
	require.Equal(t, []Expr{
		Constant{Kind: ConstNumber, Value: "1"},
		UnaryOp{Op: "-", Operand: Constant{Kind: ConstNumber, Value: "2"}},
	}, args.Defaults)
	require.NotNil(t, args.VarArg)
	require.Equal(t, "args", args.VarArg.Name)
	require.Equal(t, []string{"d", "e"}, names(args.KwOnly))
	require.Equal(t, []Expr{nil, Constant{Kind: ConstNone, Value: "None"}}, args.KwDefaults)
	require.NotNil(t, args.KwArg)
	require.Equal(t, "kw", args.KwArg.Name)
}

func TestParse_OpaqueExpressions(t *testing.T) {
	src := "def f(x: Optional[str] = None, y: int | None = None, z=[1, 2]) -> dict[str, int]:\n    pass\n"
	mod, err := Parse(src)
	require.NoError(t, err)
	fn := mod.Funcs[0]

	require.Equal(t, Opaque{Text: "Optional[str]"}, fn.Args.Args[0].Annotation)
	require.Equal(t, Opaque{Text: "int | None"}, fn.Args.Args[1].Annotation)
	require.Equal(t, Opaque{Text: "[1, 2]"}, fn.Args.Defaults[2])
	require.Equal(t, Opaque{Text: "dict[str, int]"}, fn.Returns)
}

func TestParse_LambdaDefaults(t *testing.T) {
	src := "def f(x=lambda a, b: a, y=2, z=lambda: (1, 2), w=lambda p, q=1: lambda r, s: r):\n    pass\n"
	mod, err := Parse(src)
	require.NoError(t, err)
	fn := mod.Funcs[0]

	require.Len(t, fn.Args.Args, 4)
	require.Equal(t, []Expr{
		Opaque{Text: "lambda a, b: a"},
		Constant{Kind: ConstNumber, Value: "2"},
		Opaque{Text: "lambda: (1, 2)"},
		Opaque{Text: "lambda p, q=1: lambda r, s: r"},
	}, fn.Args.Defaults)
}

func TestParse_TypeParameters(t *testing.T) {
	src := "@mcp.tool()\ndef first[T](items: list[T]) -> T:\n    return items[0]\n\ndef pair[K: str, *Ts, **P](k: K):\n    pass\n"
	mod, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, mod.Funcs, 2)
	require.Equal(t, "first", mod.Funcs[0].Name)
	require.Equal(t, "items", mod.Funcs[0].Args.Args[0].Name)
	require.Equal(t, Name{ID: "T"}, mod.Funcs[0].Returns)
	require.Equal(t, "pair", mod.Funcs[1].Name)
	require.Equal(t, "k", mod.Funcs[1].Args.Args[0].Name)
}

func TestParse_Constants(t *testing.T) {
	src := "def f(a='hi', b=True, c=0x10, d=..., e=\"x\" 'y', g=mod.CONST): pass\n"
	mod, err := Parse(src)
	require.NoError(t, err)
	require.Equal(t, []Expr{
		Constant{Kind: ConstString, Value: "hi"},
		Constant{Kind: ConstBool, Value: "True"},
		Constant{Kind: ConstNumber, Value: "16"},
		Constant{Kind: ConstEllipsis, Value: "..."},
		Constant{Kind: ConstString, Value: "xy"},
		Attribute{Value: Name{ID: "mod"}, Attr: "CONST"},
	}, mod.Funcs[0].Args.Defaults)
}

func TestParse_Docstrings(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want *string
	}{
		{"single quoted", "def f():\n    'single'\n", strPtr("single")},
		{"concatenated", "def f():\n    \"a\" \"b\"\n", strPtr("ab")},
		{"same line", "def f(): \"\"\"inline\"\"\"\n", strPtr("inline")},
		{"raw", "def f():\n    r\"a\\nb\"\n", strPtr(`a\nb`)},
		{"escaped", "def f():\n    \"a\\tb\"\n", strPtr("a\tb")},
		{"followed by semicolon", "def f():\n    \"doc\"; x = 1\n", strPtr("doc")},
		{"f-string", "def f():\n    f\"not {x}\"\n", nil},
		{"bytes", "def f():\n    b\"raw\"\n", nil},
		{"method call", "def f():\n    \"doc\".strip()\n", nil},
		{"not first", "def f():\n    x = 1\n    \"\"\"late\"\"\"\n", nil},
		{"none", "def f():\n    return 1\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, err := Parse(tt.src)
			require.NoError(t, err)
			require.Len(t, mod.Funcs, 1)
			require.Equal(t, tt.want, mod.Funcs[0].Docstring)
		})
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"bad parameter", "def f(:): pass\n", "invalid syntax in parameter list"},
		{"missing colon", "def f()\n    pass\n", "expected ':'"},
		{"missing block", "def f():\nreturn 1\n", "expected an indented block"},
		{"compound without colon", "if x\n    pass\n", "expected ':'"},
		{"default order", "def f(a=1, b): pass\n", "parameter without a default follows parameter with a default"},
		{"duplicate argument", "def f(a, a): pass\n", "duplicate argument 'a'"},
		{"bare star", "def f(*): pass\n", "named arguments must follow bare *"},
		{"decorator target", "@mcp.tool()\nx = 1\n", "expected function or class definition after decorator"},
		{"keyword name", "def class(): pass\n", "invalid function name"},
		{"unexpected indent", "  x = 1\n", "unexpected indent"},
		{"unclosed bracket", "x = (1\n", "'(' was never closed"},
		{"kwargs not last", "def f(**kw, a): pass\n", "arguments cannot follow var-keyword argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.ErrorContains(t, err, tt.want)

			var se *SyntaxError
			require.True(t, stderrors.As(err, &se))
		})
	}
}

func TestParse_EmptySource(t *testing.T) {
	mod, err := Parse("")
	require.NoError(t, err)
	require.Empty(t, mod.Funcs)
}

func strPtr(s string) *string {
	return &s
}
