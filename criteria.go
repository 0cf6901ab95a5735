package asyncstep

import (
	"fmt"
	"reflect"
	"strings"
)

// Criterion is a named predicate evaluated against a step result.
type Criterion[T any] interface {
	Description() string
	// Match returns true, nil when value satisfies the criterion,
	// otherwise false and a describer explaining why.
	Match(value T) (bool, MismatchDescriber)
	Validate() error
}

type conditionCriterion[T any] struct {
	description string
	test        func(T) bool
}

// Condition builds a criterion out of a description and a predicate.
// Validation is deferred to step construction, use NewCondition to fail early.
func Condition[T any](description string, test func(T) bool) Criterion[T] {
	return &conditionCriterion[T]{description: description, test: test}
}

func NewCondition[T any](description string, test func(T) bool) (Criterion[T], error) {
	c := &conditionCriterion[T]{description: description, test: test}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *conditionCriterion[T]) Description() string {
	return c.description
}

func (c *conditionCriterion[T]) Match(value T) (bool, MismatchDescriber) {
	if c.test(value) {
		return true, nil
	}
	return false, &CriterionMismatch{Criterion: c.description, Value: value}
}

func (c *conditionCriterion[T]) Validate() error {
	if strings.TrimSpace(c.description) == "" {
		return ErrConfiguration.WithMessage(MsgBlankDescription)
	}
	if c.test == nil {
		return ErrConfiguration.WithMessage(fmt.Sprintf("predicate of criterion %q should be defined", c.description))
	}
	return nil
}

type allOfCriterion[T any] struct {
	criteria []Criterion[T]
}

// AllOf matches when every criterion matches. Evaluation stops at the first
// failing criterion and only its mismatch is reported.
func AllOf[T any](criteria ...Criterion[T]) Criterion[T] {
	return &allOfCriterion[T]{criteria: criteria}
}

func (a *allOfCriterion[T]) Description() string {
	return joinDescriptions(a.criteria, " and ")
}

func (a *allOfCriterion[T]) Match(value T) (bool, MismatchDescriber) {
	for _, c := range a.criteria {
		if ok, mismatch := c.Match(value); !ok {
			return false, mismatch
		}
	}
	return true, nil
}

func (a *allOfCriterion[T]) Validate() error {
	return validateAll(a.criteria)
}

type anyOfCriterion[T any] struct {
	criteria []Criterion[T]
}

// AnyOf matches as soon as one criterion matches. When none does, the mismatch
// enumerates every alternative. AnyOf without criteria always matches.
func AnyOf[T any](criteria ...Criterion[T]) Criterion[T] {
	return &anyOfCriterion[T]{criteria: criteria}
}

func (a *anyOfCriterion[T]) Description() string {
	return joinDescriptions(a.criteria, " or ")
}

func (a *anyOfCriterion[T]) Match(value T) (bool, MismatchDescriber) {
	if len(a.criteria) == 0 {
		return true, nil
	}

	mismatches := make([]MismatchDescriber, 0, len(a.criteria))
	for _, c := range a.criteria {
		ok, mismatch := c.Match(value)
		if ok {
			return true, nil
		}
		mismatches = append(mismatches, mismatch)
	}
	return false, &AnyMismatch{Mismatches: mismatches}
}

func (a *anyOfCriterion[T]) Validate() error {
	return validateAll(a.criteria)
}

type notCriterion[T any] struct {
	criterion Criterion[T]
}

func Not[T any](criterion Criterion[T]) Criterion[T] {
	return &notCriterion[T]{criterion: criterion}
}

func (n *notCriterion[T]) Description() string {
	return fmt.Sprintf("not (%s)", n.criterion.Description())
}

func (n *notCriterion[T]) Match(value T) (bool, MismatchDescriber) {
	if ok, _ := n.criterion.Match(value); ok {
		return false, &CriterionMismatch{Criterion: n.Description(), Value: value}
	}
	return true, nil
}

func (n *notCriterion[T]) Validate() error {
	if n.criterion == nil {
		return ErrConfiguration.WithMessage("negated criterion should be defined")
	}
	return n.criterion.Validate()
}

func joinDescriptions[T any](criteria []Criterion[T], sep string) string {
	descriptions := make([]string, 0, len(criteria))
	for _, c := range criteria {
		descriptions = append(descriptions, c.Description())
	}
	return strings.Join(descriptions, sep)
}

func validateAll[T any](criteria []Criterion[T]) error {
	for i, c := range criteria {
		if c == nil {
			return ErrConfiguration.WithMessage(fmt.Sprintf("criterion at index %d should be defined", i))
		}
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// typeErasedCriterion lets non generic execution options carry typed criteria.
type typeErasedCriterion interface {
	description() string
	accepts(t reflect.Type) bool
	match(value any) (bool, MismatchDescriber)
	validate() error
}

type erasedCriterion[T any] struct {
	criterion Criterion[T]
}

func (e *erasedCriterion[T]) description() string {
	return e.criterion.Description()
}

func (e *erasedCriterion[T]) accepts(t reflect.Type) bool {
	return t.AssignableTo(reflect.TypeFor[T]())
}

func (e *erasedCriterion[T]) match(value any) (bool, MismatchDescriber) {
	var typed T
	if value != nil {
		typed = value.(T)
	}
	return e.criterion.Match(typed)
}

func (e *erasedCriterion[T]) validate() error {
	if e.criterion == nil {
		return ErrConfiguration.WithMessage("criterion should be defined")
	}
	return e.criterion.Validate()
}

type propertyCriterion[T, P any] struct {
	property  string
	get       func(T) P
	criterion Criterion[P]
}

// Property applies criterion to one property of the value, mismatches name the property.
func Property[T, P any](property string, get func(T) P, criterion Criterion[P]) Criterion[T] {
	return &propertyCriterion[T, P]{property: property, get: get, criterion: criterion}
}

func (p *propertyCriterion[T, P]) Description() string {
	return fmt.Sprintf("%s %s", p.property, p.criterion.Description())
}

func (p *propertyCriterion[T, P]) Match(value T) (bool, MismatchDescriber) {
	property := p.get(value)
	if ok, mismatch := p.criterion.Match(property); !ok {
		return false, &PropertyValueMismatch{Property: p.property, Value: property, Mismatch: mismatch}
	}
	return true, nil
}

func (p *propertyCriterion[T, P]) Validate() error {
	if strings.TrimSpace(p.property) == "" {
		return ErrConfiguration.WithMessage(MsgBlankDescription)
	}
	if p.get == nil || p.criterion == nil {
		return ErrConfiguration.WithMessage(fmt.Sprintf("getter and criterion of property %q should be defined", p.property))
	}
	return p.criterion.Validate()
}

type eachCriterion[T any] struct {
	criterion Criterion[T]
}

// Each matches a slice when every item matches, the first failing item is reported.
func Each[T any](criterion Criterion[T]) Criterion[[]T] {
	return &eachCriterion[T]{criterion: criterion}
}

func (e *eachCriterion[T]) Description() string {
	return fmt.Sprintf("each item %s", e.criterion.Description())
}

func (e *eachCriterion[T]) Match(items []T) (bool, MismatchDescriber) {
	for i, item := range items {
		if ok, mismatch := e.criterion.Match(item); !ok {
			return false, &ItemMismatch{Index: i, Item: item, Mismatch: mismatch}
		}
	}
	return true, nil
}

func (e *eachCriterion[T]) Validate() error {
	if e.criterion == nil {
		return ErrConfiguration.WithMessage("item criterion should be defined")
	}
	return e.criterion.Validate()
}
