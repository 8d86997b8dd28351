package materialize

import "github.com/codegraph/indexer/internal/store/model"

// LabelMap derives a node's primary Neo4j label from (language, kind)
// (spec §4.7: "the materializer must not contain language-specific
// branches beyond consulting this map"). DefaultLabelMap covers the
// closed kind set; a caller may pass its own map in Config.Labels. The
// project configuration has no label option.
type LabelMap map[string]string // "language:kind" -> label

func key(language, kind string) string { return language + ":" + kind }

// DefaultLabelMap returns the built-in language+kind -> label mapping.
func DefaultLabelMap() LabelMap {
	m := LabelMap{}
	for _, lang := range []string{"php", "javascript", "typescript", "python"} {
		prefix := langPrefix(lang)
		m[key(lang, model.KindClass)] = prefix + "Class"
		m[key(lang, model.KindInterface)] = prefix + "Interface"
		m[key(lang, model.KindTrait)] = prefix + "Trait"
		m[key(lang, model.KindEnum)] = prefix + "Enum"
		m[key(lang, model.KindFunction)] = prefix + "Function"
		m[key(lang, model.KindMethod)] = prefix + "Method"
		m[key(lang, model.KindProperty)] = prefix + "Property"
		m[key(lang, model.KindConstant)] = prefix + "Constant"
		m[key(lang, model.KindField)] = prefix + "Field"
		m[key(lang, model.KindParameter)] = prefix + "Parameter"
		m[key(lang, model.KindNamespace)] = prefix + "Namespace"
		m[key(lang, model.KindModule)] = prefix + "Module"
	}
	// React/JSX components are a reference pattern, not a distinct symbol
	// kind, so this map has no "ReactComponent" label.
	m[key("meta", model.KindFile)] = "File"
	m[key("meta", model.KindDirectory)] = "Directory"
	m[key("meta", model.KindConfigFile)] = "ConfigFile"
	m[key("meta", model.KindAPIEndpoint)] = "ApiEndpoint"
	m[key("meta", model.KindExternalPlaceholder)] = "External"
	for _, lang := range []string{"php", "javascript", "typescript", "python"} {
		m[key(lang, model.KindFile)] = "File"
		m[key(lang, model.KindDirectory)] = "Directory"
		m[key(lang, model.KindExternalPlaceholder)] = "External"
	}
	return m
}

func langPrefix(lang string) string {
	switch lang {
	case "php":
		return "Php"
	case "javascript":
		return "Js"
	case "typescript":
		return "Ts"
	case "python":
		return "Py"
	}
	return "Meta"
}

// Label returns the primary label for a symbol, falling back to the
// generic "Symbol" coarse label (still applied as a second label by the
// caller) if (language, kind) has no explicit entry.
func (m LabelMap) Label(language, kind string) string {
	if l, ok := m[key(language, kind)]; ok {
		return l
	}
	return "Symbol"
}
