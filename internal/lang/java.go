package lang

import (
	"github.com/smacker/go-tree-sitter/java"
)

func init() {
	Languages["java"] = &Language{
		Name:       "java",
		Extensions: []string{".java"},
		lang:       java.GetLanguage(),
		Primitives: map[string]string{
			"boolean": "Z",
			"byte":    "B",
			"char":    "C",
			"short":   "S",
			"int":     "I",
			"long":    "J",
			"float":   "F",
			"double":  "D",
			"void":    "V",
		},
		ImplicitImports: javaLang(
			"Object", "String", "Class", "Enum", "Record", "Throwable", "Exception",
			"RuntimeException", "Error", "Iterable", "Comparable", "Runnable",
			"CharSequence", "Cloneable", "AutoCloseable", "Boolean", "Byte",
			"Character", "Short", "Integer", "Long", "Float", "Double", "Number",
			"Void", "Math", "StringBuilder", "System", "Thread",
		),
	}
}

func javaLang(names ...string) map[string]string {
	m := make(map[string]string, len(names))
	for _, n := range names {
		m[n] = "java/lang/" + n
	}
	return m
}
