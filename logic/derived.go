package logic

import (
	"fmt"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"

	"github.com/timzifer/microdash/config"
	"github.com/timzifer/microdash/runtime/values"
)

type binding struct {
	cfg     config.DerivedConfig
	program *vm.Program
	inputs  []values.Key
	target  values.Key
	seen    map[values.Key]uint64
	order   int
}

// Set holds the compiled derived bindings in evaluation order. Bindings feed
// computed keys from other keys; a binding whose input is produced by another
// binding runs after its producer.
type Set struct {
	store    *values.Store
	bindings []*binding
	logger   zerolog.Logger
}

// NewSet compiles the configured bindings against the store. Target keys are
// registered if no widget claimed them yet; input keys must already exist.
// The store must not be sealed.
func NewSet(cfgs []config.DerivedConfig, store *values.Store, logger zerolog.Logger) (*Set, error) {
	bindings := make([]*binding, 0, len(cfgs))
	producers := make(map[values.Key]*binding, len(cfgs))

	for idx, cfg := range cfgs {
		target := values.Key(cfg.Key)
		if existing, ok := producers[target]; ok {
			return nil, fmt.Errorf("derived %s: already produced by %s", cfg.Key, existing.cfg.Key)
		}
		if !store.Has(target) {
			if err := store.Register(target); err != nil {
				return nil, fmt.Errorf("derived %s: %w", cfg.Key, err)
			}
		}
		b := &binding{
			cfg:    cfg,
			target: target,
			seen:   make(map[values.Key]uint64, len(cfg.Inputs)),
			order:  idx,
		}
		for _, input := range cfg.Inputs {
			key := values.Key(input)
			if !store.Has(key) {
				// Inputs are declarations too: a key only the device feeds
				// still needs its slot before the store seals.
				if err := store.Register(key); err != nil {
					return nil, fmt.Errorf("derived %s: input %s: %w", cfg.Key, input, err)
				}
			}
			b.inputs = append(b.inputs, key)
		}
		program, err := expr.Compile(cfg.Expr, expr.Env(map[string]interface{}{}), expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("derived %s: compile: %w", cfg.Key, err)
		}
		b.program = program
		producers[target] = b
		bindings = append(bindings, b)
	}

	ordered, err := topoSort(bindings, producers)
	if err != nil {
		return nil, err
	}

	return &Set{
		store:    store,
		bindings: ordered,
		logger:   logger.With().Str("component", "derived").Logger(),
	}, nil
}

func topoSort(bindings []*binding, producers map[values.Key]*binding) ([]*binding, error) {
	inDegree := make(map[*binding]int, len(bindings))
	edges := make(map[*binding][]*binding, len(bindings))

	for _, b := range bindings {
		for _, input := range b.inputs {
			prod := producers[input]
			if prod == nil || prod == b {
				continue
			}
			edges[prod] = append(edges[prod], b)
			inDegree[b]++
		}
	}

	queue := make([]*binding, 0, len(bindings))
	for _, b := range bindings {
		if inDegree[b] == 0 {
			queue = append(queue, b)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].order < queue[j].order })

	ordered := make([]*binding, 0, len(bindings))
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		ordered = append(ordered, b)
		for _, succ := range edges[b] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
		sort.Slice(queue, func(i, j int) bool { return queue[i].order < queue[j].order })
	}

	if len(ordered) != len(bindings) {
		return nil, fmt.Errorf("derived bindings contain a cycle")
	}
	return ordered, nil
}

// Evaluate runs every binding whose inputs changed since its last run and
// writes the results back to the store. It returns the number of evaluation
// errors. Bindings with unset inputs are skipped silently; they become
// eligible once all inputs carry values.
func (s *Set) Evaluate() int {
	errs := 0
	for _, b := range s.bindings {
		if !b.ready(s.store) {
			continue
		}
		if !b.stale(s.store) {
			continue
		}
		out, err := b.run(s.store)
		if err != nil {
			s.logger.Error().Err(err).Str("key", string(b.target)).Msg("derived evaluation failed")
			errs++
			continue
		}
		v, err := coerce(out, b.cfg.Kind)
		if err != nil {
			s.logger.Error().Err(err).Str("key", string(b.target)).Msg("derived result rejected")
			errs++
			continue
		}
		if _, err := s.store.Set(b.target, v); err != nil {
			s.logger.Error().Err(err).Str("key", string(b.target)).Msg("derived write rejected")
			errs++
			continue
		}
		b.remember(s.store)
	}
	return errs
}

func (b *binding) ready(store *values.Store) bool {
	for _, input := range b.inputs {
		if store.IsUnset(input) {
			return false
		}
	}
	return true
}

func (b *binding) stale(store *values.Store) bool {
	for _, input := range b.inputs {
		if store.Version(input) != b.seen[input] {
			return true
		}
	}
	return false
}

func (b *binding) remember(store *values.Store) {
	for _, input := range b.inputs {
		b.seen[input] = store.Version(input)
	}
}

func (b *binding) run(store *values.Store) (interface{}, error) {
	env := make(map[string]interface{}, len(b.inputs))
	for _, input := range b.inputs {
		v, _ := store.Get(input)
		env[string(input)] = native(v)
	}
	return vm.Run(b.program, env)
}

func native(v values.Value) interface{} {
	switch v.Kind() {
	case values.KindBool:
		b, _ := v.AsBool()
		return b
	case values.KindInt, values.KindEnum:
		i, _ := v.AsInt()
		return i
	case values.KindFloat:
		f, _ := v.AsFloat()
		return f
	case values.KindText:
		t, _ := v.AsText()
		return t
	default:
		return nil
	}
}

func coerce(out interface{}, kind config.ValueKind) (values.Value, error) {
	switch kind {
	case config.ValueKindBool:
		if b, ok := out.(bool); ok {
			return values.Bool(b), nil
		}
	case config.ValueKindInteger, config.ValueKindEnum:
		switch n := out.(type) {
		case int:
			return values.Int(int64(n)), nil
		case int64:
			return values.Int(n), nil
		case float64:
			return values.Int(int64(n)), nil
		}
	case config.ValueKindNumber:
		switch n := out.(type) {
		case float64:
			return values.Float(n), nil
		case int:
			return values.Float(float64(n)), nil
		case int64:
			return values.Float(float64(n)), nil
		}
	case config.ValueKindText:
		if t, ok := out.(string); ok {
			return values.Text(t), nil
		}
	}
	return values.Value{}, fmt.Errorf("result %T does not fit %s", out, kind)
}
