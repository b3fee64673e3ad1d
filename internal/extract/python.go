package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"phio/internal/contract"
)

// constantName matches module-level ALL_CAPS invariant declarations,
// e.g. ZONE_THRESHOLDS or AGG_TAU_DEFAULT.
var constantName = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// dunder metadata names that become metadata invariants.
var dunderNames = map[string]bool{
	"__version__":       true,
	"__instrument_id__": true,
}

// scan accumulates extraction state over one AST walk.
type scan struct {
	src []byte

	// parser variable -> subcommand name ("" is the root parser)
	parserVars map[string]string
	// variables holding add_subparsers() results
	subparserVars map[string]bool
	// subcommand name -> surface entry
	subs map[string]*contract.Subcommand

	invariants []contract.Invariant
	invSeen    map[string]bool

	entryPoint bool
	funcDepth  int
	chainDone  bool
}

func newScan(src []byte) *scan {
	return &scan{
		src:           src,
		parserVars:    make(map[string]string),
		subparserVars: make(map[string]bool),
		subs:          make(map[string]*contract.Subcommand),
		invSeen:       make(map[string]bool),
	}
}

func (s *scan) text(n *sitter.Node) string {
	return string(s.src[n.StartByte():n.EndByte()])
}

func (s *scan) walk(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "assignment":
			s.assignment(child)
		case "call":
			s.call(child)
		case "function_definition":
			s.function(child)
		default:
			s.walk(child)
		}
	}
}

// function handles get_spec detection and if-chain invariants, then
// recurses: argparse surfaces are usually built inside build_parser().
func (s *scan) function(n *sitter.Node) {
	if name := n.ChildByFieldName("name"); name != nil {
		if s.text(name) == "get_spec" {
			s.entryPoint = true
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		if !s.chainDone {
			s.findIfChain(body)
		}
		s.funcDepth++
		s.walk(body)
		s.funcDepth--
	}
}

func (s *scan) assignment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil {
		return
	}
	if left.Type() != "identifier" {
		// Tuple targets and attribute targets carry no contract signal.
		s.walk(n)
		return
	}
	target := s.text(left)

	// SPEC counts as the entry point regardless of what produces it,
	// including `SPEC = build()`.
	if target == "SPEC" {
		s.entryPoint = true
	}

	if right.Type() == "call" {
		s.assignedCall(target, right)
		return
	}

	if s.funcDepth > 0 {
		return
	}
	s.moduleConstant(target, right)
}

// moduleConstant records ALL_CAPS numeric constants and dunder metadata
// as invariants. First declaration wins.
func (s *scan) moduleConstant(name string, value *sitter.Node) {
	if s.invSeen[name] {
		return
	}
	if dunderNames[name] {
		if v, ok := literalValue(value, s.src); ok && v.Kind == contract.ValueString {
			s.addInvariant(contract.Invariant{Name: name, Kind: contract.InvariantMetadata, Value: v})
		}
		return
	}
	if !constantName.MatchString(name) {
		return
	}
	if v, ok := literalValue(value, s.src); ok && (v.Kind == contract.ValueInt || v.Kind == contract.ValueFloat) {
		s.addInvariant(contract.Invariant{Name: name, Kind: contract.InvariantScalar, Value: v})
		return
	}
	if vals, ok := numericSeries(value, s.src); ok {
		s.addInvariant(contract.Invariant{Name: name, Kind: contract.InvariantSeries, Values: vals})
	}
}

func (s *scan) addInvariant(inv contract.Invariant) {
	s.invSeen[inv.Name] = true
	s.invariants = append(s.invariants, inv)
}

// assignedCall handles `x = <receiver>.<method>(...)` forms that build
// the argparse surface.
func (s *scan) assignedCall(target string, call *sitter.Node) {
	fn := call.ChildByFieldName("function")
	args := call.ChildByFieldName("arguments")
	if fn == nil {
		return
	}

	method, receiver := callee(fn, s.src)
	switch method {
	case "ArgumentParser":
		s.parserVars[target] = ""
		sub := s.subcommand("")
		if help, ok := keywordString(args, "description", s.src); ok {
			sub.Help = help
		}
	case "add_subparsers":
		s.subparserVars[target] = true
	case "add_parser":
		if !s.subparserVars[receiver] {
			return
		}
		name, ok := firstPositionalString(args, s.src)
		if !ok {
			return
		}
		s.parserVars[target] = name
		sub := s.subcommand(name)
		if help, ok := keywordString(args, "help", s.src); ok {
			sub.Help = help
		}
	default:
		// Assignment result unused for the surface; still inspect the
		// call itself (e.g. chained add_argument).
		s.call(call)
	}
}

// call handles bare statement calls such as p.add_argument(...).
func (s *scan) call(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil {
		return
	}
	method, receiver := callee(fn, s.src)
	switch method {
	case "add_argument":
		subName, ok := s.parserVars[receiver]
		if !ok {
			return
		}
		s.addFlag(subName, args)
	case "add_parser":
		if s.subparserVars[receiver] {
			if name, ok := firstPositionalString(args, s.src); ok {
				sub := s.subcommand(name)
				if help, ok := keywordString(args, "help", s.src); ok {
					sub.Help = help
				}
			}
		}
	default:
		// Unknown calls may still nest parser-building expressions.
		if args != nil {
			s.walk(args)
		}
	}
}

func (s *scan) subcommand(name string) *contract.Subcommand {
	if sub, ok := s.subs[name]; ok {
		return sub
	}
	sub := &contract.Subcommand{Name: name}
	s.subs[name] = sub
	return sub
}

// addFlag translates one add_argument call into a Flag.
func (s *scan) addFlag(subName string, args *sitter.Node) {
	if args == nil {
		return
	}
	sub := s.subcommand(subName)

	flag := contract.Flag{Default: contract.None()}
	var names []string
	for i := 0; i < int(args.NamedChildCount()); i++ {
		a := args.NamedChild(i)
		switch a.Type() {
		case "string":
			if txt, ok := stringText(a, s.src); ok {
				names = append(names, txt)
			}
		case "keyword_argument":
			s.flagKeyword(&flag, a)
		}
	}
	if len(names) == 0 {
		return
	}
	// Prefer the first long option as the canonical name; short aliases
	// and positional names fall back to the first entry.
	flag.Name = names[0]
	for _, n := range names {
		if strings.HasPrefix(n, "--") {
			flag.Name = n
			break
		}
	}
	for i := range sub.Flags {
		if sub.Flags[i].Name == flag.Name {
			return // duplicate declaration, first wins
		}
	}

	if flag.Type == "" && flag.Default.Kind != contract.ValueNone {
		flag.Type = typeOfValue(flag.Default)
	}
	sub.Flags = append(sub.Flags, flag)
}

func (s *scan) flagKeyword(flag *contract.Flag, kw *sitter.Node) {
	nameNode := kw.ChildByFieldName("name")
	valueNode := kw.ChildByFieldName("value")
	if nameNode == nil || valueNode == nil {
		return
	}
	switch s.text(nameNode) {
	case "required":
		flag.Required = valueNode.Type() == "true"
	case "type":
		if valueNode.Type() == "identifier" {
			switch s.text(valueNode) {
			case "str", "int", "float", "bool":
				flag.Type = s.text(valueNode)
			}
		}
	case "default":
		if v, ok := literalValue(valueNode, s.src); ok {
			flag.Default = v
		}
	case "help":
		if txt, ok := stringText(valueNode, s.src); ok {
			flag.Help = txt
		}
	case "action":
		switch txt, _ := stringText(valueNode, s.src); txt {
		case "store_true":
			flag.Type = "bool"
			if flag.Default.Kind == contract.ValueNone {
				flag.Default = contract.BoolValue(false)
			}
		case "store_false":
			flag.Type = "bool"
			if flag.Default.Kind == contract.ValueNone {
				flag.Default = contract.BoolValue(true)
			}
		}
	case "choices":
		flag.Choices = choiceList(valueNode, s.src)
	}
}

// surface flattens collected subcommands, dropping an empty root entry.
func (s *scan) surface() []contract.Subcommand {
	out := make([]contract.Subcommand, 0, len(s.subs))
	for name, sub := range s.subs {
		if name == "" && len(sub.Flags) == 0 && sub.Help == "" {
			continue
		}
		out = append(out, *sub)
	}
	return out
}

// findIfChain detects `if T < a: return "A" / elif T < b: return "B" /
// else: return "D"` zone classification chains and synthesizes a formula
// invariant, mirroring the conservative AST extraction the original
// harness performed.
func (s *scan) findIfChain(body *sitter.Node) {
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if s.chainDone {
			return
		}
		if n.Type() == "if_statement" {
			if s.tryChain(n) {
				return
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(body)
}

func (s *scan) tryChain(n *sitter.Node) bool {
	type arm struct {
		subject   string
		threshold contract.Value
		label     string
	}
	var arms []arm
	var elseLabel string

	cond := n.ChildByFieldName("condition")
	cons := n.ChildByFieldName("consequence")
	subject, th, ok := ltComparison(cond, s.src)
	if !ok {
		return false
	}
	label, ok := returnedString(cons, s.src)
	if !ok {
		return false
	}
	arms = append(arms, arm{subject, th, label})

	for i := 0; i < int(n.NamedChildCount()); i++ {
		alt := n.NamedChild(i)
		switch alt.Type() {
		case "elif_clause":
			subj, th, ok := ltComparison(alt.ChildByFieldName("condition"), s.src)
			if !ok {
				continue
			}
			label, ok := returnedString(alt.ChildByFieldName("consequence"), s.src)
			if !ok {
				continue
			}
			arms = append(arms, arm{subj, th, label})
		case "else_clause":
			if label, ok := returnedString(alt.ChildByFieldName("body"), s.src); ok {
				elseLabel = label
			}
		}
	}

	if len(arms) < 2 {
		return false
	}

	var b strings.Builder
	for i, a := range arms {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s < %s -> %q", a.subject, a.threshold.Canonical(), a.label)
	}
	if elseLabel != "" {
		fmt.Fprintf(&b, "; else -> %q", elseLabel)
	}
	s.addInvariant(contract.Invariant{
		Name:    "zone_if_chain",
		Kind:    contract.InvariantFormula,
		Formula: b.String(),
	})
	s.chainDone = true
	return true
}

// ---------------------------------------------------------------------
// node helpers
// ---------------------------------------------------------------------

// callee resolves the method name and receiver identifier of a call
// target. `argparse.ArgumentParser` yields ("ArgumentParser", "argparse");
// a bare identifier yields (name, "").
func callee(fn *sitter.Node, src []byte) (method, receiver string) {
	switch fn.Type() {
	case "identifier":
		return string(src[fn.StartByte():fn.EndByte()]), ""
	case "attribute":
		attr := fn.ChildByFieldName("attribute")
		obj := fn.ChildByFieldName("object")
		if attr == nil {
			return "", ""
		}
		method = string(src[attr.StartByte():attr.EndByte()])
		if obj != nil && obj.Type() == "identifier" {
			receiver = string(src[obj.StartByte():obj.EndByte()])
		}
		return method, receiver
	}
	return "", ""
}

func firstPositionalString(args *sitter.Node, src []byte) (string, bool) {
	if args == nil {
		return "", false
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		a := args.NamedChild(i)
		if a.Type() == "keyword_argument" {
			continue
		}
		return stringText(a, src)
	}
	return "", false
}

func keywordString(args *sitter.Node, name string, src []byte) (string, bool) {
	if args == nil {
		return "", false
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		a := args.NamedChild(i)
		if a.Type() != "keyword_argument" {
			continue
		}
		kwName := a.ChildByFieldName("name")
		kwValue := a.ChildByFieldName("value")
		if kwName == nil || kwValue == nil {
			continue
		}
		if string(src[kwName.StartByte():kwName.EndByte()]) == name {
			return stringText(kwValue, src)
		}
	}
	return "", false
}

// stringText returns the unquoted content of a Python string literal,
// tolerating r/f/b/u prefixes and triple quotes.
func stringText(n *sitter.Node, src []byte) (string, bool) {
	if n == nil || n.Type() != "string" {
		return "", false
	}
	s := string(src[n.StartByte():n.EndByte()])
	i := 0
	for i < len(s) && s[i] != '"' && s[i] != '\'' {
		i++
	}
	s = s[i:]
	if len(s) >= 6 && (strings.HasPrefix(s, `"""`) || strings.HasPrefix(s, "'''")) {
		return s[3 : len(s)-3], true
	}
	if len(s) >= 2 {
		return s[1 : len(s)-1], true
	}
	return "", false
}

// literalValue parses a scalar Python literal into a Value.
func literalValue(n *sitter.Node, src []byte) (contract.Value, bool) {
	if n == nil {
		return contract.None(), false
	}
	text := string(src[n.StartByte():n.EndByte()])
	switch n.Type() {
	case "integer":
		if i, err := strconv.ParseInt(text, 0, 64); err == nil {
			return contract.IntValue(i), true
		}
	case "float":
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return contract.FloatValue(f), true
		}
	case "true":
		return contract.BoolValue(true), true
	case "false":
		return contract.BoolValue(false), true
	case "none":
		return contract.None(), true
	case "string":
		if s, ok := stringText(n, src); ok {
			return contract.StringValue(s), true
		}
	case "unary_operator":
		if strings.HasPrefix(text, "-") {
			if v, ok := literalValue(n.NamedChild(0), src); ok {
				switch v.Kind {
				case contract.ValueInt:
					return contract.IntValue(-v.Int), true
				case contract.ValueFloat:
					return contract.FloatValue(-v.Float), true
				}
			}
		}
	case "parenthesized_expression":
		return literalValue(n.NamedChild(0), src)
	}
	return contract.None(), false
}

// numericSeries parses a list/tuple of numeric literals.
func numericSeries(n *sitter.Node, src []byte) ([]contract.Value, bool) {
	if n == nil {
		return nil, false
	}
	if n.Type() != "list" && n.Type() != "tuple" {
		return nil, false
	}
	count := int(n.NamedChildCount())
	if count == 0 {
		return nil, false
	}
	out := make([]contract.Value, 0, count)
	for i := 0; i < count; i++ {
		v, ok := literalValue(n.NamedChild(i), src)
		if !ok || (v.Kind != contract.ValueInt && v.Kind != contract.ValueFloat) {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

// choiceList renders choices=(...) entries as canonical strings.
func choiceList(n *sitter.Node, src []byte) []string {
	if n == nil || (n.Type() != "list" && n.Type() != "tuple") {
		return nil
	}
	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if s, ok := stringText(child, src); ok {
			out = append(out, s)
			continue
		}
		if v, ok := literalValue(child, src); ok && v.Kind != contract.ValueNone {
			out = append(out, v.Canonical())
		}
	}
	return out
}

// ltComparison matches `<identifier> < <number>` conditions.
func ltComparison(cond *sitter.Node, src []byte) (string, contract.Value, bool) {
	if cond == nil {
		return "", contract.None(), false
	}
	if cond.Type() == "parenthesized_expression" {
		return ltComparison(cond.NamedChild(0), src)
	}
	if cond.Type() != "comparison_operator" || cond.NamedChildCount() != 2 {
		return "", contract.None(), false
	}
	left := cond.NamedChild(0)
	right := cond.NamedChild(1)
	if left.Type() != "identifier" {
		return "", contract.None(), false
	}
	// The operator token sits between the two operands.
	op := cond.Child(1)
	if op == nil || op.Type() != "<" {
		return "", contract.None(), false
	}
	v, ok := literalValue(right, src)
	if !ok || (v.Kind != contract.ValueInt && v.Kind != contract.ValueFloat) {
		return "", contract.None(), false
	}
	return string(src[left.StartByte():left.EndByte()]), v, true
}

// returnedString matches a block whose first statement is `return "<lit>"`.
func returnedString(block *sitter.Node, src []byte) (string, bool) {
	if block == nil {
		return "", false
	}
	for i := 0; i < int(block.NamedChildCount()); i++ {
		stmt := block.NamedChild(i)
		if stmt.Type() == "comment" {
			continue
		}
		if stmt.Type() != "return_statement" {
			return "", false
		}
		return stringText(stmt.NamedChild(0), src)
	}
	return "", false
}

func typeOfValue(v contract.Value) string {
	switch v.Kind {
	case contract.ValueBool:
		return "bool"
	case contract.ValueInt:
		return "int"
	case contract.ValueFloat:
		return "float"
	case contract.ValueString:
		return "str"
	}
	return ""
}
