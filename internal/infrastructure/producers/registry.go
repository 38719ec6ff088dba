// Package producers defines the shared Producer contract and the
// Kind-to-Producer dispatch table spanning all seven coverage artifact
// kinds.
package producers

import (
	"fmt"

	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/producers/cobertura"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/producers/gcnogcda"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/producers/gcovtext"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/producers/gocover"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/producers/jacoco"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/producers/lcov"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/producers/llvmprof"
)

// Producer converts one WorkItem into zero or more CoverageRecords. Every
// format-specific package in internal/infrastructure/producers/* implements
// this.
type Producer interface {
	Produce(item coverage.WorkItem) ([]*coverage.Record, error)
}

// Registry dispatches a WorkItem to the Producer registered for its Kind.
type Registry struct {
	producers map[coverage.Kind]Producer
}

// Options configures which external engines the registry's producers use.
type Options struct {
	// LLVM restricts gcno/gcda parsing to the LLVM gcov variant.
	LLVM bool
	// GcovPath overrides the gcov binary used by the gcno/gcda producer.
	GcovPath string
}

// NewRegistry builds the default registry covering all seven work item
// kinds. KindArchiveMember is not registered: discovery re-classifies
// archive members into one of the other kinds, and the items it still
// emits with KindArchiveMember (a .zip nested inside an archive, or a file
// whose content sniffs as a zip) make Produce return an error.
func NewRegistry(opts Options) *Registry {
	gn := gcnogcda.New(opts.LLVM)
	if opts.GcovPath != "" {
		gn.GcovPath = opts.GcovPath
	}

	return &Registry{producers: map[coverage.Kind]Producer{
		coverage.KindGcovIntermediate: gcovtext.New(),
		coverage.KindGcnoGcdaPair:     gn,
		coverage.KindProfrawDirectory: llvmprof.New(),
		coverage.KindLcovInfo:         lcov.New(),
		coverage.KindJacocoXML:        jacoco.New(),
		coverage.KindGoCover:          gocover.New(),
		coverage.KindCoberturaXML:     cobertura.New(),
	}}
}

// Produce dispatches item to the producer registered for its Kind.
func (r *Registry) Produce(item coverage.WorkItem) ([]*coverage.Record, error) {
	p, ok := r.producers[item.Kind]
	if !ok {
		return nil, fmt.Errorf("producers: no producer registered for kind %q", item.Kind)
	}
	records, err := p.Produce(item)
	if err != nil {
		return nil, fmt.Errorf("producers: kind %q: %w", item.Kind, err)
	}
	return records, nil
}
