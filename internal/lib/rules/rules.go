// Package rules evaluates the CEL conditions attached to reward modifiers
// and performance bounties.
package rules

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"golang.org/x/sync/singleflight"

	"github.com/deppfellow/partners/internal/model"
)

var ErrInvalidExpression = errors.New("invalid condition expression")

// Fact is the input a condition is evaluated against.
type Fact interface {
	Vars() map[string]any
}

// Evaluator compiles conditions once per distinct expression and caches
// the resulting programs. It is safe for concurrent use.
type Evaluator struct {
	env      *cel.Env
	programs sync.Map
	compiles singleflight.Group
}

// NewRewardEvaluator declares customer, sale and partner as string-keyed
// maps, e.g. `customer.country == "US" && sale.amount >= 10000`.
func NewRewardEvaluator() (*Evaluator, error) {
	mapType := cel.MapType(cel.StringType, cel.DynType)
	return newEvaluator(
		cel.Variable("customer", mapType),
		cel.Variable("sale", mapType),
		cel.Variable("partner", mapType),
	)
}

// NewBountyEvaluator declares the partner totals a performance bounty can
// test, e.g. `conversions >= 10 || sale_amount >= 500000`.
func NewBountyEvaluator() (*Evaluator, error) {
	return newEvaluator(
		cel.Variable("leads", cel.IntType),
		cel.Variable("conversions", cel.IntType),
		cel.Variable("sale_amount", cel.IntType),
		cel.Variable("earnings", cel.IntType),
	)
}

func newEvaluator(opts ...cel.EnvOption) (*Evaluator, error) {
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile checks that expr parses, type-checks and yields a boolean.
func (e *Evaluator) Compile(expr string) error {
	_, err := e.program(expr)
	return err
}

// Evaluate runs expr against fact.
func (e *Evaluator) Evaluate(ctx context.Context, expr string, fact Fact) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.ContextEval(ctx, fact.Vars())
	if err != nil {
		return false, fmt.Errorf("failed to evaluate condition %q: %w", expr, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q did not evaluate to a boolean", ErrInvalidExpression, expr)
	}
	return result, nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}
	if cached, ok := e.programs.Load(expr); ok {
		return cached.(cel.Program), nil
	}

	v, err, _ := e.compiles.Do(expr, func() (any, error) {
		ast, iss := e.env.Compile(expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidExpression, iss.Err())
		}
		if out := ast.OutputType(); !reflect.DeepEqual(out, cel.BoolType) && !reflect.DeepEqual(out, cel.DynType) {
			return nil, fmt.Errorf("%w: %q must evaluate to a boolean", ErrInvalidExpression, expr)
		}

		prg, err := e.env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidExpression, err)
		}
		e.programs.Store(expr, prg)
		return prg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(cel.Program), nil
}

// RewardFact is the event context reward modifiers see.
type RewardFact struct {
	CustomerEmail   string
	CustomerCountry string
	SaleAmount      int64
	SaleCurrency    string
	ProductID       string
	PartnerCountry  string
}

func (f RewardFact) Vars() map[string]any {
	return map[string]any{
		"customer": map[string]any{
			"email":   f.CustomerEmail,
			"country": f.CustomerCountry,
		},
		"sale": map[string]any{
			"amount":     f.SaleAmount,
			"currency":   f.SaleCurrency,
			"product_id": f.ProductID,
		},
		"partner": map[string]any{
			"country": f.PartnerCountry,
		},
	}
}

// BountyFact exposes a partner's totals to performance conditions.
type BountyFact model.PartnerTotals

func (f BountyFact) Vars() map[string]any {
	return map[string]any{
		"leads":       f.Leads,
		"conversions": f.Conversions,
		"sale_amount": f.SaleAmount,
		"earnings":    f.Earnings,
	}
}
