/*
Core assembles the initializable components of the router.

# Module
  - pipeline: ordered list of components, each performing its own subscription setup in Init

# Source
 1. channel handlers, one per venue

# Produce
  - nothing by itself; the composition root drives the event loop after Init
*/
package core

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"sorstream/pkg/exception"
)

// Initializer is a component with a single setup entry point.
type Initializer interface {
	Init(ctx context.Context) error
}

// Pipeline initializes its components in insertion order.
type Pipeline struct {
	components []Initializer
}

func NewPipeline(components ...Initializer) *Pipeline {
	p := &Pipeline{}
	for _, c := range components {
		p.Add(c)
	}
	return p
}

// Add appends c. Nil components are ignored.
func (p *Pipeline) Add(c Initializer) {
	if c == nil {
		return
	}
	p.components = append(p.components, c)
}

func (p *Pipeline) Len() int {
	return len(p.components)
}

// Init stops at the first failing component.
func (p *Pipeline) Init(ctx context.Context) error {
	if p == nil {
		return exception.ErrNilInstance
	}
	for i, c := range p.components {
		if err := c.Init(ctx); err != nil {
			return errors.Wrapf(err, "init component %d", i)
		}
	}
	logs.Infof("pipeline initialized, components=%d", len(p.components))
	return nil
}
