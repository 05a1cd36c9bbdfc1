package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/dxtcheck/internal/errors"
)

func strp(s string) *string {
	return &s
}

func TestSignatures_ScanPage(t *testing.T) {
	src := `import asyncio
from mcp.server.fastmcp import FastMCP

mcp = FastMCP("vibetest")

@mcp.tool()
async def scan_page(url: str, timeout: int = 30) -> str:
    """Scan a web page for errors and warnings.

    Args:
        url: page to scan
    """
    await asyncio.sleep(0)
    return url
`
	set, err := Signatures(src, "")
	require.NoError(t, err)
	require.Len(t, set.Signatures, 1)
	require.Empty(t, set.Duplicates)

	sig := set.Signatures[0]
	require.Equal(t, "scan_page", sig.Name)
	require.True(t, sig.Async)
	require.Equal(t, 7, sig.Line)
	require.Equal(t, []Parameter{
		{Name: "url", Type: strp("str"), Kind: KindPositional},
		{Name: "timeout", Type: strp("int"), Default: &Literal{Kind: LiteralNumber, Text: "30"}, Kind: KindPositional},
	}, sig.Parameters)
	require.Equal(t, "Scan a web page for errors and warnings.\n\nArgs:\n    url: page to scan", sig.Docstring)
	require.Equal(t, "Scan a web page for errors and warnings.", sig.Summary())
}

func TestSignatures_OnlyMarkedFunctions(t *testing.T) {
	src := `@mcp.tool()
def a(): pass

@mcp.tool
def bare_attribute(): pass

@tool()
def bare_call(): pass

@mcp.resource("x://y")
def other(): pass

def plain(): pass

@server.tool(name="renamed")
def b(): pass
`
	set, err := Signatures(src, DefaultMarker)
	require.NoError(t, err)

	var names []string
	for _, s := range set.Signatures {
		names = append(names, s.Name)
	}
	require.Equal(t, []string{"a", "b"}, names)

	_, ok := set.Lookup("b")
	require.True(t, ok)
	_, ok = set.Lookup("plain")
	require.False(t, ok)
}

func TestSignatures_Parameters(t *testing.T) {
	src := `class Browser:
    @mcp.tool()
    def click(self, selector, count: "int" = 1, *, delay: float = -0.5, mode=MODE, cb=lambda: 0, **opts: Any):
        pass
`
	set, err := Signatures(src, "")
	require.NoError(t, err)
	require.Len(t, set.Signatures, 1)

	sig := set.Signatures[0]
	require.Equal(t, "", sig.Docstring)
	require.Equal(t, []Parameter{
		{Name: "selector", Kind: KindPositional},
		{Name: "count", Type: strp("int"), Default: &Literal{Kind: LiteralNumber, Text: "1"}, Kind: KindPositional},
		{Name: "delay", Type: strp("float"), Default: &Literal{Kind: LiteralNumber, Text: "-0.5"}, Kind: KindKeywordOnly},
		{Name: "mode", Default: &Literal{Kind: LiteralName, Text: "MODE"}, Kind: KindKeywordOnly},
		{Name: "cb", Kind: KindKeywordOnly},
		{Name: "opts", Type: strp("Any"), Kind: KindVarKeyword},
	}, sig.Parameters)

	var rendered []string
	for _, p := range sig.Parameters {
		rendered = append(rendered, p.String())
	}
	require.Equal(t, []string{"selector:any", "count:int=1", "delay:float=-0.5", "mode:any=MODE", "cb:any", "**opts:Any"}, rendered)
}

func TestSignatures_ComplexAnnotationsLeftUntyped(t *testing.T) {
	src := `@mcp.tool()
def f(a: Optional[str] = None, b: list[int] = [], c: None = "x", *args: int):
    """Doc."""
`
	set, err := Signatures(src, "")
	require.NoError(t, err)
	require.Equal(t, []Parameter{
		{Name: "a", Default: &Literal{Kind: LiteralNone, Text: "None"}, Kind: KindPositional},
		{Name: "b", Kind: KindPositional},
		{Name: "c", Type: strp("None"), Default: &Literal{Kind: LiteralString, Text: "x"}, Kind: KindPositional},
		{Name: "args", Type: strp("int"), Kind: KindVarPositional},
	}, set.Signatures[0].Parameters)
}

func TestSignatures_PositionalDefaultsFromRight(t *testing.T) {
	set, err := Signatures("@mcp.tool()\ndef f(a, b=1, c=2):\n    pass\n", "")
	require.NoError(t, err)

	params := set.Signatures[0].Parameters
	require.Nil(t, params[0].Default)
	require.Equal(t, "1", params[1].Default.Text)
	require.Equal(t, "2", params[2].Default.Text)
}

func TestSignatures_LambdaDefaultAndTypeParameters(t *testing.T) {
	src := `@mcp.tool()
def sort_items(key=lambda a, b: a, limit: int = 2):
    """Sort items."""

@mcp.tool()
def first[T](items: list[T]) -> T:
    """Return the first item."""
`
	set, err := Signatures(src, "")
	require.NoError(t, err)
	require.Len(t, set.Signatures, 2)

	params := set.Signatures[0].Parameters
	require.Len(t, params, 2)
	require.Equal(t, "key", params[0].Name)
	require.Nil(t, params[0].Default)
	require.Equal(t, "limit", params[1].Name)
	require.Equal(t, "2", params[1].Default.Text)

	require.Equal(t, "first", set.Signatures[1].Name)
	require.Equal(t, "Return the first item.", set.Signatures[1].Docstring)
	require.Len(t, set.Signatures[1].Parameters, 1)
}

func TestSignatures_Duplicates(t *testing.T) {
	src := `@mcp.tool()
def a():
    """First."""

@mcp.tool()
def a():
    """Second."""

@mcp.tool()
def a():
    """Third."""
`
	set, err := Signatures(src, "")
	require.NoError(t, err)
	require.Len(t, set.Signatures, 1)
	require.Equal(t, "First.", set.Signatures[0].Docstring)
	require.Equal(t, []string{"a"}, set.Duplicates)
}

func TestSignatures_ParseFailure(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unterminated string", "@mcp.tool()\ndef a():\n    \"\"\"Doc\n"},
		{"unbalanced bracket", "@mcp.tool()\ndef a(x:\n    pass\n"},
		{"bad indentation", "@mcp.tool()\ndef a():\n        x = 1\n    y = 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Signatures(tt.src, "")
			require.Error(t, err)
			require.True(t, errors.Is(err, errors.ErrParseFailure))
			require.Empty(t, set.Signatures)
		})
	}
}

func TestExtract(t *testing.T) {
	res := Extract("@mcp.tool()\ndef a():\n    \"\"\"Doc.\"\"\"\n", "")
	require.NoError(t, res.ParseErr)
	require.Len(t, res.Tools, 1)
	require.Equal(t, 1, res.Signatures.Len())

	broken := Extract("@mcp.tool()\ndef a():\n    \"\"\"Doc.\"\"\"\nx = (\n", "")
	require.Error(t, broken.ParseErr)
	require.Len(t, broken.Tools, 1)
	require.Equal(t, 0, broken.Signatures.Len())
}
