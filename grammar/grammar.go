// Package grammar compiles a normalised JSON Schema into a GBNF-style
// grammar, the constrained-decoding representation a local engine uses to
// guarantee a generation can only produce schema-valid JSON.
package grammar

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dlclark/regexp2/v2"
)

// Rule is one named production in the grammar, in GBNF's `name ::= body`
// form.
type Rule struct {
	Name string
	Body string
}

// Grammar is an ordered set of rules, in the order they were first added:
// the shared "space" rule comes first and the "root" rule comes last, after
// the rules it references.
type Grammar struct {
	Rules []Rule
}

// String renders the grammar in GBNF text form, one rule per line.
func (g *Grammar) String() string {
	var b strings.Builder
	for _, r := range g.Rules {
		fmt.Fprintf(&b, "%s ::= %s\n", r.Name, r.Body)
	}
	return b.String()
}

// genericJSON is the fixed grammar llama.cpp ships for "any JSON value",
// used when a generation targets JSON but carries no schema to compile
// against. The string rule disallows a raw newline inside a quoted string,
// matching every other string production this package emits.
const genericJSON = `root   ::= object
value  ::= object | array | string | number | ("true" | "false" | "null") ws

object ::=
  "{" ws (
            string ":" ws value
    ("," ws string ":" ws value)*
  )? "}" ws

array  ::=
  "[" ws (
            value
    ("," ws value)*
  )? "]" ws

string ::=
  "\"" (
    [^"\\\x7F\x00-\x1F] |
    "\\" (["\\/bfnrt] | "u" [0-9a-fA-F] [0-9a-fA-F] [0-9a-fA-F] [0-9a-fA-F])
  )* "\"" ws

number ::= ("-"? ([0-9] | [1-9] [0-9]*)) ("." [0-9]+)? ([eE] [-+]? [0-9]+)? ws

ws ::= ([ \t\n] ws)?
`

// GenericJSON returns the fixed grammar accepting any JSON value, for a
// generation that targets JSON but has no schema to compile.
func GenericJSON() string { return genericJSON }

const spaceRule = `" "?`

var primitiveRules = map[string]string{
	"boolean": `("true" | "false") space`,
	"number":  `("-"? ([0-9] | [1-9] [0-9]*)) ("." [0-9]+)? ([eE] [-+]? [0-9]+)? space`,
	"integer": `("-"? ([0-9] | [1-9] [0-9]*)) space`,
	"string": `"\"" (
    [^"\\\x7F\x00-\x1F] |
    "\\" (["\\/bfnrt] | "u" [0-9a-fA-F] [0-9a-fA-F] [0-9a-fA-F] [0-9a-fA-F])
  )* "\"" space`,
	"null": `"null" space`,
}

var (
	invalidRuleCharsRe = regexp2.MustCompile(`[^a-zA-Z0-9-]+`, regexp2.None)
	literalEscapeRe    = regexp2.MustCompile(`[\r\n"]`, regexp2.None)
)

// Compile translates a schema (the wire-level map produced by
// schema.Schema.ToMap) into a Grammar. propOrder, when non-empty, reorders
// an object's properties before emission (required properties are always
// emitted first regardless).
func Compile(schemaMap map[string]any, propOrder []string) (*Grammar, error) {
	c := &converter{
		rules:     map[string]string{"space": spaceRule},
		order:     []string{"space"},
		propOrder: indexOf(propOrder),
		defs:      map[string]any{},
	}
	if _, err := c.visit(schemaMap, ""); err != nil {
		return nil, err
	}
	g := &Grammar{}
	for _, name := range c.order {
		g.Rules = append(g.Rules, Rule{Name: name, Body: c.rules[name]})
	}
	return g, nil
}

func indexOf(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for i, n := range names {
		m[n] = i
	}
	return m
}

type converter struct {
	rules     map[string]string
	order     []string
	propOrder map[string]int
	defs      map[string]any
}

func (c *converter) addRule(name, rule string) string {
	escaped, _ := invalidRuleCharsRe.Replace(name, "-", -1, -1)
	key := escaped
	if existing, ok := c.rules[key]; !ok || existing == rule {
		// fall through: key stays escaped name
	} else {
		i := 0
		for {
			candidate := fmt.Sprintf("%s%d", escaped, i)
			if _, taken := c.rules[candidate]; !taken {
				key = candidate
				break
			}
			i++
		}
	}
	if _, exists := c.rules[key]; !exists {
		c.order = append(c.order, key)
	}
	c.rules[key] = rule
	return key
}

func (c *converter) formatLiteral(v any) (string, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("grammar: encode literal: %w", err)
	}
	escaped, _ := literalEscapeRe.ReplaceFunc(string(encoded), func(m regexp2.Match) string {
		switch m.String() {
		case "\r":
			return `\r`
		case "\n":
			return `\n`
		case `"`:
			return `\"`
		default:
			return m.String()
		}
	}, -1, -1)
	return `"` + escaped + `"`, nil
}

func (c *converter) visit(schema map[string]any, name string) (string, error) {
	ruleName := name
	if ruleName == "" {
		ruleName = "root"
	}

	if defs, ok := schema["$defs"].(map[string]any); ok {
		for defName, defSchema := range defs {
			c.defs[defName] = defSchema
		}
	}

	if alts, ok := firstUnion(schema); ok {
		var parts []string
		for i, alt := range alts {
			altSchema, ok := alt.(map[string]any)
			if !ok {
				return "", fmt.Errorf("grammar: union member %d is not an object", i)
			}
			sub, err := c.visit(altSchema, subName(name, fmt.Sprintf("%d", i)))
			if err != nil {
				return "", err
			}
			parts = append(parts, sub)
		}
		return c.addRule(ruleName, strings.Join(parts, " | ")), nil
	}

	if constVal, ok := schema["const"]; ok {
		lit, err := c.formatLiteral(constVal)
		if err != nil {
			return "", err
		}
		return c.addRule(ruleName, lit), nil
	}

	if enumVals, ok := schema["enum"].([]any); ok {
		var parts []string
		for _, v := range enumVals {
			lit, err := c.formatLiteral(v)
			if err != nil {
				return "", err
			}
			parts = append(parts, lit)
		}
		return c.addRule(ruleName, strings.Join(parts, " | ")), nil
	}

	if ref, ok := schema["$ref"].(string); ok {
		const prefix = "#/$defs/"
		if !strings.HasPrefix(ref, prefix) {
			return "", fmt.Errorf("grammar: unsupported $ref %q", ref)
		}
		defName := strings.TrimPrefix(ref, prefix)
		defSchema, ok := c.defs[defName].(map[string]any)
		if !ok {
			return "", fmt.Errorf("grammar: unresolved $ref %q", ref)
		}
		if name == "" {
			// A $ref at the document root still produces the "root" rule.
			return c.visit(defSchema, "")
		}
		return c.visit(defSchema, subName(name, defName))
	}

	schemaType, _ := schema["type"].(string)
	if schemaType == "" {
		return "", fmt.Errorf("grammar: schema has no recognisable type: %v", schema)
	}

	switch {
	case schemaType == "object" && schema["properties"] != nil:
		return c.visitObject(schema, name, ruleName)
	case schemaType == "array" && schema["items"] != nil:
		return c.visitArray(schema, name, ruleName)
	default:
		rule, ok := primitiveRules[schemaType]
		if !ok {
			return "", fmt.Errorf("grammar: unrecognised schema type %q", schemaType)
		}
		key := schemaType
		if ruleName == "root" {
			key = "root"
		}
		return c.addRule(key, rule), nil
	}
}

func firstUnion(schema map[string]any) ([]any, bool) {
	if oneOf, ok := schema["oneOf"].([]any); ok {
		return oneOf, true
	}
	if anyOf, ok := schema["anyOf"].([]any); ok {
		return anyOf, true
	}
	return nil, false
}

func subName(name, suffix string) string {
	if name == "" {
		return suffix
	}
	return name + "-" + suffix
}

func (c *converter) visitObject(schema map[string]any, name, ruleName string) (string, error) {
	props, _ := schema["properties"].(map[string]any)
	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	if len(c.propOrder) > 0 {
		sort.Slice(names, func(i, j int) bool {
			oi, iok := c.propOrder[names[i]]
			oj, jok := c.propOrder[names[j]]
			if !iok {
				oi = len(c.propOrder)
			}
			if !jok {
				oj = len(c.propOrder)
			}
			if oi != oj {
				return oi < oj
			}
			return names[i] < names[j]
		})
	} else {
		sort.Strings(names)
	}

	requiredList, _ := toStringSlice(schema["required"])
	required := map[string]bool{}
	for _, r := range requiredList {
		required[r] = true
	}
	var requiredNames, optionalNames []string
	for _, n := range names {
		if required[n] {
			requiredNames = append(requiredNames, n)
		} else {
			optionalNames = append(optionalNames, n)
		}
	}
	// A grammar with only optional properties would emit a leading comma
	// before the first present one; force everything required instead.
	if len(requiredNames) == 0 {
		requiredNames = optionalNames
		optionalNames = nil
	}

	var rule strings.Builder
	rule.WriteString(`"{" space`)
	index := 0
	emit := func(propName string, isRequired bool) error {
		propSchema, _ := props[propName].(map[string]any)
		sub, err := c.visit(propSchema, subName(name, propName))
		if err != nil {
			return err
		}
		lit, err := c.formatLiteral(propName)
		if err != nil {
			return err
		}
		if !isRequired {
			rule.WriteString(" (")
		}
		if index > 0 {
			rule.WriteString(` "," space`)
		}
		fmt.Fprintf(&rule, ` %s space ":" space %s`, lit, sub)
		if !isRequired {
			rule.WriteString(" )?")
		}
		index++
		return nil
	}
	for _, n := range requiredNames {
		if err := emit(n, true); err != nil {
			return "", err
		}
	}
	for _, n := range optionalNames {
		if err := emit(n, false); err != nil {
			return "", err
		}
	}
	rule.WriteString(` "}" space`)
	return c.addRule(ruleName, rule.String()), nil
}

func (c *converter) visitArray(schema map[string]any, name, ruleName string) (string, error) {
	items, _ := schema["items"].(map[string]any)
	itemRule, err := c.visit(items, subName(name, "item"))
	if err != nil {
		return "", err
	}
	rule := fmt.Sprintf(`"[" space (%s ("," space %s)*)? "]" space`, itemRule, itemRule)
	return c.addRule(ruleName, rule), nil
}

func toStringSlice(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}
