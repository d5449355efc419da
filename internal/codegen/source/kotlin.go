package source

import (
	"strings"

	"github.com/okra-platform/kgql/internal/decl"
)

// keywords are hard keywords that must be escaped with backticks when used
// as identifiers.
var keywords = map[string]bool{
	"as": true, "break": true, "class": true, "continue": true, "do": true,
	"else": true, "false": true, "for": true, "fun": true, "if": true,
	"in": true, "interface": true, "is": true, "null": true, "object": true,
	"package": true, "return": true, "super": true, "this": true, "throw": true,
	"true": true, "try": true, "typealias": true, "typeof": true, "val": true,
	"var": true, "when": true, "while": true,
}

func ident(name string) string {
	if keywords[name] {
		return "`" + name + "`"
	}
	return name
}

// qualified escapes every segment of a dotted name.
func qualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = ident(p)
	}
	return strings.Join(parts, ".")
}

// implicitPackages are imported into every source file.
var implicitPackages = []string{"kotlin.collections.", "kotlin."}

func className(name string) string {
	for _, pkg := range implicitPackages {
		if rest, ok := strings.CutPrefix(name, pkg); ok && !strings.Contains(rest, ".") {
			return rest
		}
	}
	return qualified(name)
}

func typeName(t decl.TypeRef) string {
	var sb strings.Builder
	writeType(&sb, t)
	return sb.String()
}

func writeType(sb *strings.Builder, t decl.TypeRef) {
	if t.IsParam() {
		sb.WriteString(decl.ParamName(t.Param))
	} else {
		sb.WriteString(className(t.Class))
	}
	if len(t.Args) > 0 {
		sb.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			if a.Type == nil {
				sb.WriteByte('*')
				continue
			}
			if a.Variance != decl.Invariant {
				sb.WriteString(a.Variance.String())
				sb.WriteByte(' ')
			}
			writeType(sb, *a.Type)
		}
		sb.WriteByte('>')
	}
	if t.Nullable {
		sb.WriteByte('?')
	}
}

func typeParameters(params []decl.TypeParameter) string {
	if len(params) == 0 {
		return ""
	}
	out := make([]string, len(params))
	for i, p := range params {
		var sb strings.Builder
		if p.Variance != decl.Invariant {
			sb.WriteString(p.Variance.String())
			sb.WriteByte(' ')
		}
		sb.WriteString(decl.ParamName(i))
		if p.UpperBound != nil {
			sb.WriteString(" : ")
			writeType(&sb, *p.UpperBound)
		}
		out[i] = sb.String()
	}
	return "<" + strings.Join(out, ", ") + ">"
}

func params(ps []decl.Param) string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = ident(p.Name) + ": " + typeName(p.Type)
	}
	return strings.Join(out, ", ")
}

// quote renders a string literal. `$` starts a template, so it is escaped
// along with the usual characters.
func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\', '$':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// zeroValues initialize non-null properties that are not constructor
// parameters.
var zeroValues = map[string]string{
	decl.String:  `""`,
	decl.Int:     "0",
	decl.Long:    "0L",
	decl.Double:  "0.0",
	decl.Boolean: "false",
}

// initializer returns the initial value of a stored property, or "" when
// the property has to be lateinit.
func initializer(t decl.TypeRef) string {
	if t.Nullable {
		return "null"
	}
	if t.IsParam() || len(t.Args) > 0 {
		return ""
	}
	return zeroValues[t.Class]
}

func modifier(v decl.Visibility) string {
	if v == decl.Public {
		return ""
	}
	return v.String() + " "
}

// sourcePath is the file a top-level declaration renders into.
func sourcePath(pkg, file string) string {
	if pkg == "" {
		return file + ".kt"
	}
	return strings.ReplaceAll(pkg, ".", "/") + "/" + file + ".kt"
}
