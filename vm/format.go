package vm

import (
	"strconv"
	"strings"
)

// formatMessage renders an error-message format string with the
// placeholder set of the original ABI, reproduced verbatim for message
// compatibility with existing tooling:
//
//	%d  int
//	%i  int64
//	%f  float64
//	%s  string
//	%q  quoted string view
//	%v  string view
//	%c  char
//	%p  pointer/handle
//	%t  type id (rendered as the type name)
//	%n  name id (rendered as the interned string)
func (vm *VM) formatMessage(format string, args ...any) string {
	var b strings.Builder
	argi := 0
	next := func() any {
		if argi >= len(args) {
			return nil
		}
		a := args[argi]
		argi++
		return a
	}

	for i := 0; i < len(format); i++ {
		ch := format[i]
		if ch != '%' || i+1 >= len(format) {
			b.WriteByte(ch)
			continue
		}
		i++
		switch format[i] {
		case '%':
			b.WriteByte('%')
		case 'd':
			b.WriteString(strconv.FormatInt(toInt64(next()), 10))
		case 'i':
			b.WriteString(strconv.FormatInt(toInt64(next()), 10))
		case 'f':
			f, _ := next().(float64)
			b.WriteString(formatFloat(f))
		case 's':
			b.WriteString(toString(next()))
		case 'q':
			b.WriteByte('\'')
			b.WriteString(escapeString(toString(next())))
			b.WriteByte('\'')
		case 'v':
			b.WriteString(toString(next()))
		case 'c':
			switch c := next().(type) {
			case byte:
				b.WriteByte(c)
			case rune:
				b.WriteRune(c)
			case int:
				b.WriteRune(rune(c))
			}
		case 'p':
			b.WriteString("0x" + strconv.FormatUint(toUint64(next()), 16))
		case 't':
			if t, ok := next().(Type); ok {
				b.WriteString(vm.TypeName(t))
			} else {
				b.WriteString("?")
			}
		case 'n':
			if n, ok := next().(Name); ok {
				b.WriteString(NameStr(n))
			} else {
				b.WriteString("?")
			}
		default:
			// Unknown verb: emit as-is.
			b.WriteByte('%')
			b.WriteByte(format[i])
		}
	}
	return b.String()
}

func toInt64(a any) int64 {
	switch v := a.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	case uint16:
		return int64(v)
	case Name:
		return int64(v)
	case Type:
		return int64(v)
	}
	return 0
}

func toUint64(a any) uint64 {
	switch v := a.(type) {
	case Handle:
		return uint64(v)
	case uint64:
		return v
	case uintptr:
		return uint64(v)
	case int:
		return uint64(v)
	}
	return 0
}

func toString(a any) string {
	switch v := a.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return "?"
}

// formatFloat renders a float the way the language does: always with a
// decimal point or exponent so it cannot be mistaken for an int.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func escapeString(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString("\\'")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\t':
			b.WriteString("\\t")
		case '\r':
			b.WriteString("\\r")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
