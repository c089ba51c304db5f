package compiler

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/mna/wenyan/lang/chunk"
	"github.com/mna/wenyan/lang/interner"
	"github.com/mna/wenyan/lang/numeral"
	"github.com/mna/wenyan/lang/object"
	"github.com/mna/wenyan/lang/scanner"
	"github.com/mna/wenyan/lang/token"
	"github.com/mna/wenyan/lang/value"
)

// FuncKind distinguishes the top-level script from a nested function
// compilation, per spec.md §4.2's "compiler frame" (used to reject
// `乃得` at the top level).
type FuncKind uint8

const (
	FuncKindScript FuncKind = iota
	FuncKindFunction
)

type localVar struct {
	name  string
	depth int
}

// funcState holds per-function compilation state: the function being
// built, its local-variable table, current scope depth, its kind, and a
// link to the enclosing frame. Grounded on spec.md §4.2's "Per-function
// compilation state" paragraph.
type funcState struct {
	enclosing *funcState
	fn        *object.Function
	locals    []localVar
	scopeDepth int
	kind      FuncKind
}

// Compiler is the single-pass, token-driven recursive-descent bytecode
// emitter. It holds current/previous token lookahead and the current
// compiler frame.
type Compiler struct {
	sc        *scanner.Scanner
	interner  *interner.Interner
	functions *object.Table
	errw      io.Writer

	cur, prev       token.Token
	curVal, prevVal token.Value

	hadError  bool
	panicMode bool

	current *funcState
}

// stopSet is a small set of tokens that terminate a block.
type stopSet map[token.Token]bool

var (
	stopYunYun       = stopSet{token.YUN_YUN: true}
	stopElseOrYunYun = stopSet{token.ELSE: true, token.YUN_YUN: true}
	stopFunEnd       = stopSet{token.FUNCTION_END1: true}
)

// Compile compiles src into a top-level Function. Functions defined by
// `吾有一術` are registered in functions as they are compiled. It returns
// (nil, false) if any lexical or compile error was encountered; in that
// case the VM must not be run (spec.md §7 "Propagation policy").
func Compile(src []byte, in *interner.Interner, functions *object.Table, errw io.Writer) (*object.Function, bool) {
	topFn := &object.Function{Chunk: chunk.New()}
	c := &Compiler{
		sc:        scanner.New(src),
		interner:  in,
		functions: functions,
		errw:      errw,
		current:   &funcState{fn: topFn, kind: FuncKindScript},
	}

	c.advance()
	for !c.check(token.EOF) {
		c.statement()
		if c.panicMode {
			c.synchronize()
		}
	}
	c.emitOp(NIL)
	c.emitOp(RETURN)

	if c.hadError {
		return nil, false
	}
	return topFn, true
}

// --- token stream plumbing ---

func (c *Compiler) advance() {
	c.prev, c.prevVal = c.cur, c.curVal
	for {
		c.cur, c.curVal = c.sc.Scan()
		if c.cur != token.ERROR {
			break
		}
		c.errorAt(c.curVal, c.curVal.Raw)
	}
}

func (c *Compiler) check(tok token.Token) bool { return c.cur == tok }

func (c *Compiler) match(tok token.Token) bool {
	if !c.check(tok) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(tok token.Token, msg string) {
	if c.check(tok) {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.curVal, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.prevVal, msg) }

func (c *Compiler) errorAt(val token.Value, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	if c.errw != nil {
		fmt.Fprintf(c.errw, "[line %d] compiler error: %s\n", val.Span.Line, msg)
	}
}

// synchronize consumes tokens until one of the fixed statement-starting
// resync anchors (spec.md §4.2 "Error handling") or EOF.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for !c.check(token.EOF) {
		switch c.cur {
		case token.DECL, token.DECL_SHORT, token.FUN, token.CALL, token.PRINT,
			token.IF, token.FU, token.LOOP, token.FOR, token.BREAK,
			token.ASSIGN_FROM, token.PLUS, token.MINUS, token.STAR, token.INVERT:
			return
		}
		c.advance()
	}
}

// --- bytecode emission ---

func (c *Compiler) curChunk() *chunk.Chunk { return c.current.fn.Chunk }

func (c *Compiler) emitOp(op Opcode) { c.curChunk().WriteByte(byte(op), c.prevVal.Span.Line) }
func (c *Compiler) emitU8(b uint8)   { c.curChunk().WriteByte(b, c.prevVal.Span.Line) }
func (c *Compiler) emitU32(v uint32) { c.curChunk().WriteUint32(v, c.prevVal.Span.Line) }

// emitJumpPlaceholder emits op followed by a 4-byte placeholder and
// returns the offset of that placeholder, to be resolved later by
// patchJump. Used for JUMP, JUMP_IF_FALSE, and RECORD_BREAK, which share
// the same forward-patch arithmetic (spec.md §4.2 "Jump patching").
func (c *Compiler) emitJumpPlaceholder(op Opcode) int {
	c.emitOp(op)
	pos := c.curChunk().Len()
	c.emitU32(0)
	return pos
}

func (c *Compiler) patchJump(pos int) {
	offset := uint32(c.curChunk().Len() - pos - 4)
	c.curChunk().PatchUint32(pos, offset)
}

// emitBackJump emits a LOOP instruction back to loopStart. The VM retreats
// its IP by (offset+1) after reading the operand (spec.md §4.3's LOOP row
// is authoritative for this arithmetic), so offset is the distance from
// loopStart to the byte after the operand, minus one.
func (c *Compiler) emitBackJump(loopStart int) {
	c.emitOp(LOOP)
	pos := c.curChunk().Len()
	c.emitU32(0)
	pcAfterOperand := pos + 4
	offset := uint32(pcAfterOperand - loopStart - 1)
	c.curChunk().PatchUint32(pos, offset)
}

func (c *Compiler) addConstant(v value.Value) uint32 {
	if len(c.curChunk().Constants) >= math.MaxUint32 {
		c.error("too many constants in one chunk")
		return 0
	}
	return c.curChunk().AddConstant(v)
}

func (c *Compiler) internNameConstant(name string) uint32 {
	id := c.interner.Intern(name)
	return c.addConstant(value.StrRef(id))
}

// --- scope and locals ---

func (c *Compiler) beginScope() { c.current.scopeDepth++ }

func (c *Compiler) endScope() {
	c.current.scopeDepth--
	locals := c.current.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > c.current.scopeDepth {
		c.emitOp(POP_LOCAL)
		locals = locals[:len(locals)-1]
	}
	c.current.locals = locals
}

func (c *Compiler) addLocal(name string) int {
	c.current.locals = append(c.current.locals, localVar{name: name, depth: c.current.scopeDepth})
	return len(c.current.locals) - 1
}

// resolveLocal searches only the current function's own locals (no
// upvalue search of enclosing frames, per DESIGN.md's Open Question
// decision to omit closures).
func (c *Compiler) resolveLocal(name string) (int, bool) {
	for i := len(c.current.locals) - 1; i >= 0; i-- {
		if c.current.locals[i].name == name {
			return i, true
		}
	}
	return 0, false
}

// defineVariable names the top of stack (or peek offset) as a variable:
// a global at scope depth 0 (the script's top level), a local otherwise;
// a function body starts at depth 1, so its names are always locals
// (spec.md §4.2's declaration/name-is rule).
func (c *Compiler) defineVariable(name string, peek uint8) {
	if c.current.scopeDepth == 0 {
		idx := c.internNameConstant(name)
		c.emitOp(DEFINE_GLOBAL)
		c.emitU32(idx)
		c.emitU8(peek)
		return
	}
	c.addLocal(name)
	c.emitOp(DEFINE_LOCAL)
	c.emitU8(peek)
}

func (c *Compiler) namedVariable(name string) {
	if slot, ok := c.resolveLocal(name); ok {
		c.emitOp(GET_LOCAL)
		c.emitU32(uint32(slot))
		return
	}
	idx := c.internNameConstant(name)
	c.emitOp(GET_GLOBAL)
	c.emitU32(idx)
}

func (c *Compiler) consumeIdentLiteral() string {
	if !c.check(token.IDENT) {
		c.errorAtCurrent("expected an identifier")
		return ""
	}
	name := c.curVal.Raw
	c.advance()
	return name
}

// --- statements ---

func (c *Compiler) stmts(stop stopSet) {
	for !stop[c.cur] && !c.check(token.EOF) {
		c.statement()
		if c.panicMode {
			c.synchronize()
		}
	}
}

func (c *Compiler) block(stop stopSet) {
	c.beginScope()
	c.stmts(stop)
	c.endScope()
}

func (c *Compiler) statement() {
	switch c.cur {
	case token.PLUS, token.MINUS, token.STAR:
		c.binaryArithmeticStatement()
	case token.INVERT:
		c.invertStatement()
	case token.PRINT:
		c.advance()
		c.emitOp(PRINT)
	case token.ASSIGN_FROM:
		c.assignmentStatement()
	case token.NAME_IS:
		c.nameIsStatement()
	case token.IF:
		c.ifStatement()
	case token.FU:
		c.fuStatement()
	case token.LOOP:
		c.loopStatement()
	case token.FOR:
		c.forStatement()
	case token.BREAK:
		c.advance()
		c.emitOp(BREAK)
	case token.FUN:
		c.funStatement()
	case token.CALL:
		c.callStatement()
	case token.RETURN:
		c.returnStatement()
	case token.DECL, token.DECL_SHORT:
		c.declarationStatement()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) binaryArithmeticStatement() {
	var op Opcode
	switch c.cur {
	case token.PLUS:
		op = ADD
	case token.MINUS:
		op = SUBTRACT
	case token.STAR:
		op = MULTIPLY
	}
	c.advance()
	c.primaryExpression()

	var prep Preposition
	switch {
	case c.match(token.PREP_LEFT):
		prep = PrepLeft
	case c.match(token.PREP_RIGHT):
		prep = PrepRight
	default:
		c.errorAtCurrent("expected 於 or 以")
		return
	}
	c.primaryExpression()
	c.emitOp(op)
	c.emitU8(uint8(prep))
}

func (c *Compiler) invertStatement() {
	c.advance()
	c.expression()
	c.emitOp(INVERT)
}

func (c *Compiler) expressionStatement() {
	c.expression()
}

// fuStatement compiles `夫 <expr>`, optionally followed by a boolean
// connective and a second operand (spec.md §9: a bare `夫 <expr>` with no
// trailing connective is a tolerated no-op).
func (c *Compiler) fuStatement() {
	c.advance()
	c.expression()
	switch {
	case c.match(token.AND):
		c.primaryExpression()
		c.emitOp(AND)
	case c.match(token.OR):
		c.primaryExpression()
		c.emitOp(OR)
	}
}

func (c *Compiler) nameIsStatement() {
	c.advance()
	name := c.consumeIdentLiteral()
	c.defineVariable(name, 0)
	c.emitOp(POP)
}

func (c *Compiler) assignmentStatement() {
	c.advance() // 昔之
	name := c.consumeIdentLiteral()
	c.consume(token.CONJUNCTION, "expected 者")
	c.consume(token.ASSIGN_TO, "expected 今")
	c.expression()
	c.consume(token.SURE, "expected 是矣")

	if slot, ok := c.resolveLocal(name); ok {
		c.emitOp(SET_LOCAL)
		c.emitU32(uint32(slot))
		return
	}
	idx := c.internNameConstant(name)
	c.emitOp(SET_GLOBAL)
	c.emitU32(idx)
}

func (c *Compiler) ifStatement() {
	c.advance() // 若
	c.expression()
	c.consume(token.CONJUNCTION, "expected 者")

	thenPatch := c.emitJumpPlaceholder(JUMP_IF_FALSE)
	c.emitOp(POP)
	c.block(stopElseOrYunYun)

	elsePatch := c.emitJumpPlaceholder(JUMP)
	c.patchJump(thenPatch)
	c.emitOp(POP)

	if c.match(token.ELSE) {
		c.block(stopYunYun)
	}
	c.patchJump(elsePatch)
	c.consume(token.YUN_YUN, "expected 云云")
}

func (c *Compiler) loopStatement() {
	c.advance() // 恆為是
	breakPatch := c.emitJumpPlaceholder(RECORD_BREAK)
	loopStart := c.curChunk().Len()
	c.block(stopYunYun)
	c.emitBackJump(loopStart)
	c.patchJump(breakPatch)
	c.emitOp(DISCARD_BREAK)
	c.consume(token.YUN_YUN, "expected 云云")
}

const hiddenForLoopVar = "inner_for_loop_var"

func (c *Compiler) forStatement() {
	c.advance() // 為是
	c.expression()
	c.consume(token.FOR_MID, "expected 遍")

	c.beginScope()
	breakPatch := c.emitJumpPlaceholder(RECORD_BREAK)
	slot := c.addLocal(hiddenForLoopVar)
	c.emitOp(DEFINE_LOCAL)
	c.emitU8(0)
	c.emitOp(POP)

	loopStart := c.curChunk().Len()
	c.emitOp(GET_LOCAL)
	c.emitU32(uint32(slot))
	c.emitOp(CONSTANT)
	c.emitU32(c.addConstant(value.Number(0)))
	c.emitOp(GREATER)

	exitPatch := c.emitJumpPlaceholder(JUMP_IF_FALSE)
	c.emitOp(POP)
	bodyPatch := c.emitJumpPlaceholder(JUMP)

	decrementStart := c.curChunk().Len()
	c.emitOp(GET_LOCAL)
	c.emitU32(uint32(slot))
	c.emitOp(CONSTANT)
	c.emitU32(c.addConstant(value.Number(1)))
	c.emitOp(SUBTRACT)
	c.emitU8(uint8(PrepRight))
	c.emitOp(SET_LOCAL)
	c.emitU32(uint32(slot))
	c.emitBackJump(loopStart)

	c.patchJump(bodyPatch)
	c.stmts(stopYunYun)
	c.emitBackJump(decrementStart)

	c.patchJump(exitPatch)
	c.emitOp(POP)
	c.patchJump(breakPatch)
	c.emitOp(DISCARD_BREAK)
	c.endScope()
	c.consume(token.YUN_YUN, "expected 云云")
}

func (c *Compiler) declarationStatement() {
	c.advance() // 吾有 / 有
	if !c.check(token.NUMBER) {
		c.errorAtCurrent("expected a number after declaration keyword")
		return
	}
	decStr, err := numeral.ToDecimalString(c.curVal.Raw)
	if err != nil {
		c.errorAtCurrent("invalid numeral: " + err.Error())
		return
	}
	k, err := strconv.Atoi(decStr)
	if err != nil || k < 1 {
		c.errorAtCurrent("invalid declaration count")
		return
	}
	c.advance()

	if !c.check(token.TYPE) {
		c.errorAtCurrent("expected a type particle (數/言/爻)")
	} else {
		c.advance()
	}

	for i := 0; i < k; i++ {
		c.consume(token.IS, "expected 曰 before declared expression")
		c.expression()
	}

	named := 0
	for c.check(token.NAME_IS) {
		c.advance()
		name := c.consumeIdentLiteral()
		peek := uint8(k - 1 - named)
		c.defineVariable(name, peek)
		named++
	}
	if named > 0 {
		for i := 0; i < k; i++ {
			c.emitOp(POP)
		}
	}
}

// funStatement compiles `吾有一術 名之曰 N 欲行是術必先得 曰 x1 曰 x2 … 是術曰
// <body> 是謂 N 之術也`.
func (c *Compiler) funStatement() {
	c.advance() // 吾有一術
	c.consume(token.NAME_IS, "expected 名之曰")
	name := c.consumeIdentLiteral()

	enclosing := c.current
	fn := &object.Function{Name: name, Chunk: chunk.New()}
	c.current = &funcState{enclosing: enclosing, fn: fn, kind: FuncKindFunction}
	c.beginScope()

	var params []string
	if c.match(token.FUNCTION_READY) {
		for c.match(token.IS) {
			params = append(params, c.consumeIdentLiteral())
			fn.Arity++
		}
	}
	c.consume(token.FUNCTION_BODY_BEGIN, "expected 是術曰")

	// parameters are pushed onto the value stack by the caller (CALL); emit
	// the DEFINE_LOCAL instructions that copy them onto the local stack in
	// declaration order (spec.md §3 call frame note).
	for _, p := range params {
		c.addLocal(p)
	}
	for i := 0; i < fn.Arity; i++ {
		c.emitOp(DEFINE_LOCAL)
		c.emitU8(uint8(fn.Arity - 1 - i))
	}

	c.stmts(stopFunEnd)
	c.consume(token.FUNCTION_END1, "expected 是謂")
	repeated := c.consumeIdentLiteral()
	if repeated != name {
		c.error("function closing name does not match its declaration")
	}
	c.consume(token.FUNCTION_END2, "expected 之術也")

	c.emitOp(NIL)
	c.emitOp(RETURN)

	fnID := c.functions.AddFunction(fn)
	c.current = enclosing

	idx := c.addConstant(value.FuncRef(fnID))
	c.emitOp(CONSTANT)
	c.emitU32(idx)
	c.defineVariable(name, 0)
	c.emitOp(POP)
}

// callStatement compiles `施 f 以 a1 a2 …` (spec.md's worked examples also
// use 於 as the argument-list separator; both are accepted, see
// DESIGN.md).
func (c *Compiler) callStatement() {
	c.advance() // 施
	c.primaryExpression() // callee

	if !c.match(token.PREP_RIGHT) && !c.match(token.PREP_LEFT) {
		c.errorAtCurrent("expected 以 or 於")
		return
	}

	var argc uint32
	for c.isArgStart(c.cur) {
		c.primaryExpression()
		argc++
	}
	c.emitOp(CALL)
	c.emitU32(argc)
}

func (c *Compiler) isArgStart(tok token.Token) bool {
	switch tok {
	case token.NUMBER, token.STRING, token.TRUE, token.FALSE, token.IDENT, token.PREV:
		return true
	}
	return false
}

func (c *Compiler) returnStatement() {
	c.advance() // 乃得
	if c.current.kind == FuncKindScript {
		c.error("cannot 乃得 (return) at the top level")
	}
	c.expression()
	c.emitOp(RETURN)
}

// --- expressions ---

// expression compiles a primary expression with an optional trailing
// comparison suffix (spec.md §4.2 "Expression").
func (c *Compiler) expression() {
	c.primaryExpression()

	switch {
	case c.match(token.EQUAL_EQUAL):
		c.primaryExpression()
		c.emitOp(EQUAL_EQUAL)
	case c.match(token.BANG_EQUAL):
		c.primaryExpression()
		c.emitOp(EQUAL_EQUAL)
		c.emitOp(INVERT)
	case c.match(token.GREATER):
		c.primaryExpression()
		c.emitOp(GREATER)
	case c.match(token.LESS):
		c.primaryExpression()
		c.emitOp(LESS)
	case c.match(token.BANG_GREATER):
		c.primaryExpression()
		c.emitOp(GREATER)
		c.emitOp(INVERT)
	case c.match(token.BANG_LESS):
		c.primaryExpression()
		c.emitOp(LESS)
		c.emitOp(INVERT)
	}
}

func (c *Compiler) primaryExpression() {
	switch c.cur {
	case token.NUMBER:
		lit := c.curVal.Raw
		c.advance()
		decStr, err := numeral.ToDecimalString(lit)
		if err != nil {
			c.error("invalid numeral: " + err.Error())
			return
		}
		f, err := strconv.ParseFloat(decStr, 64)
		if err != nil {
			c.error("invalid numeral: " + err.Error())
			return
		}
		idx := c.addConstant(value.Number(f))
		c.emitOp(CONSTANT)
		c.emitU32(idx)

	case token.TRUE:
		c.advance()
		c.emitOp(TRUE)

	case token.FALSE:
		c.advance()
		c.emitOp(FALSE)

	case token.STRING:
		lit := c.curVal.Raw
		c.advance()
		id := c.interner.Intern(lit)
		idx := c.addConstant(value.StrRef(id))
		c.emitOp(CONSTANT)
		c.emitU32(idx)

	case token.IDENT:
		name := c.curVal.Raw
		c.advance()
		c.namedVariable(name)

	case token.PREV:
		// 其: no-op, uses the previous stack top
		c.advance()

	default:
		c.errorAtCurrent("expected an expression")
		c.advance()
	}
}
