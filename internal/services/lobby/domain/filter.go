package domain

import (
	"fmt"
	"strings"

	lobbyerrors "github.com/louisbranch/lobby/internal/platform/errors"
	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Predicate reports whether a session matches a filter.
type Predicate func(Session) bool

func matchAll(Session) bool { return true }

// Filter fields.
const (
	filterFieldID          = "id"
	filterFieldPop         = "pop"
	filterFieldPlayerCount = "player_count"
	filterFieldOpen        = "open"
)

// FilterDeclarations returns the identifiers a session filter may use.
func FilterDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent(filterFieldID, filtering.TypeInt),
		filtering.DeclareIdent(filterFieldPop, filtering.TypeString),
		filtering.DeclareIdent(filterFieldPlayerCount, filtering.TypeInt),
		filtering.DeclareIdent(filterFieldOpen, filtering.TypeBool),
	)
}

// ParseFilter compiles an AIP-160 filter expression into a predicate. An
// empty expression matches every session.
func ParseFilter(filterStr string) (Predicate, error) {
	if strings.TrimSpace(filterStr) == "" {
		return matchAll, nil
	}
	decls, err := FilterDeclarations()
	if err != nil {
		return nil, fmt.Errorf("create declarations: %w", err)
	}
	filter, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return nil, lobbyerrors.Wrap(lobbyerrors.CodeMalformed, "invalid filter", err)
	}
	if filter.CheckedExpr == nil {
		return matchAll, nil
	}
	pred, err := compileExpr(filter.CheckedExpr.Expr)
	if err != nil {
		return nil, lobbyerrors.Wrap(lobbyerrors.CodeMalformed, "unsupported filter", err)
	}
	return pred, nil
}

// Filter returns the sessions matching pred, preserving order.
func (l SessionList) Filter(pred Predicate) SessionList {
	if pred == nil {
		return l
	}
	out := make(SessionList, 0, len(l))
	for _, s := range l {
		if pred(s) {
			out = append(out, s)
		}
	}
	return out
}

func compileExpr(e *expr.Expr) (Predicate, error) {
	if e == nil {
		return matchAll, nil
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return compileCall(kind.CallExpr)
	case *expr.Expr_IdentExpr:
		if kind.IdentExpr.Name != filterFieldOpen {
			return nil, fmt.Errorf("identifier %s is not boolean", kind.IdentExpr.Name)
		}
		return func(s Session) bool { return !s.Full() }, nil
	default:
		return nil, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func compileCall(call *expr.Expr_Call) (Predicate, error) {
	switch call.Function {
	case filtering.FunctionAnd, "_&&_":
		left, right, err := compileBinary(call.Args)
		if err != nil {
			return nil, err
		}
		return func(s Session) bool { return left(s) && right(s) }, nil
	case filtering.FunctionOr, "_||_":
		left, right, err := compileBinary(call.Args)
		if err != nil {
			return nil, err
		}
		return func(s Session) bool { return left(s) || right(s) }, nil
	case filtering.FunctionNot, "!_":
		if len(call.Args) != 1 {
			return nil, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := compileExpr(call.Args[0])
		if err != nil {
			return nil, err
		}
		return func(s Session) bool { return !inner(s) }, nil
	case filtering.FunctionEquals, filtering.FunctionNotEquals,
		filtering.FunctionLessThan, filtering.FunctionLessEquals,
		filtering.FunctionGreaterThan, filtering.FunctionGreaterEquals:
		return compileComparison(call.Function, call.Args)
	default:
		return nil, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func compileBinary(args []*expr.Expr) (Predicate, Predicate, error) {
	if len(args) != 2 {
		return nil, nil, fmt.Errorf("logical operator requires 2 arguments")
	}
	left, err := compileExpr(args[0])
	if err != nil {
		return nil, nil, err
	}
	right, err := compileExpr(args[1])
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func compileComparison(op string, args []*expr.Expr) (Predicate, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("comparison requires 2 arguments")
	}
	ident, ok := args[0].GetExprKind().(*expr.Expr_IdentExpr)
	if !ok {
		return nil, fmt.Errorf("expected identifier on the left of %s", op)
	}
	constant, ok := args[1].GetExprKind().(*expr.Expr_ConstExpr)
	if !ok {
		return nil, fmt.Errorf("expected constant on the right of %s", op)
	}

	switch field := ident.IdentExpr.Name; field {
	case filterFieldID, filterFieldPlayerCount:
		want, ok := constant.ConstExpr.GetConstantKind().(*expr.Constant_Int64Value)
		if !ok {
			return nil, fmt.Errorf("%s must be compared with an integer", field)
		}
		value := func(s Session) int64 { return int64(s.ID) }
		if field == filterFieldPlayerCount {
			value = func(s Session) int64 { return int64(s.Occupied()) }
		}
		cmp, err := intComparator(op)
		if err != nil {
			return nil, err
		}
		return func(s Session) bool { return cmp(value(s), want.Int64Value) }, nil
	case filterFieldPop:
		want, ok := constant.ConstExpr.GetConstantKind().(*expr.Constant_StringValue)
		if !ok {
			return nil, fmt.Errorf("pop must be compared with a string")
		}
		region := NormalizeRegion(want.StringValue)
		switch op {
		case filtering.FunctionEquals:
			return func(s Session) bool { return s.Pop == region }, nil
		case filtering.FunctionNotEquals:
			return func(s Session) bool { return s.Pop != region }, nil
		}
		return nil, fmt.Errorf("pop supports only = and !=")
	case filterFieldOpen:
		want, ok := constant.ConstExpr.GetConstantKind().(*expr.Constant_BoolValue)
		if !ok {
			return nil, fmt.Errorf("open must be compared with a boolean")
		}
		switch op {
		case filtering.FunctionEquals:
			return func(s Session) bool { return !s.Full() == want.BoolValue }, nil
		case filtering.FunctionNotEquals:
			return func(s Session) bool { return !s.Full() != want.BoolValue }, nil
		}
		return nil, fmt.Errorf("open supports only = and !=")
	default:
		return nil, fmt.Errorf("unknown field: %s", field)
	}
}

func intComparator(op string) (func(a, b int64) bool, error) {
	switch op {
	case filtering.FunctionEquals:
		return func(a, b int64) bool { return a == b }, nil
	case filtering.FunctionNotEquals:
		return func(a, b int64) bool { return a != b }, nil
	case filtering.FunctionLessThan:
		return func(a, b int64) bool { return a < b }, nil
	case filtering.FunctionLessEquals:
		return func(a, b int64) bool { return a <= b }, nil
	case filtering.FunctionGreaterThan:
		return func(a, b int64) bool { return a > b }, nil
	case filtering.FunctionGreaterEquals:
		return func(a, b int64) bool { return a >= b }, nil
	default:
		return nil, fmt.Errorf("unsupported comparison: %s", op)
	}
}
